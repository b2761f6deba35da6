package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestRun(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4}

	var counter int64
	n := 1000

	err := Run(n, func(_ int) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestRun_ResultsByIndex(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3}

	results := make([]int, 50)
	if err := Run(len(results), func(i int) error {
		results[i] = i * i
		return nil
	}, cfg); err != nil {
		t.Fatal(err)
	}

	for i, v := range results {
		if v != i*i {
			t.Errorf("results[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestRun_Sequential(t *testing.T) {
	var order []int
	err := Run(5, func(i int) error {
		order = append(order, i)
		return nil
	}, Sequential())
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("Sequential run out of order: %v", order)
		}
	}
}

func TestRun_SequentialStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := Run(10, func(i int) error {
		calls++
		if i == 2 {
			return boom
		}
		return nil
	}, Sequential())

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls before stopping, got %d", calls)
	}
}

func TestRun_ParallelPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(20, func(i int) error {
		if i == 13 {
			return boom
		}
		return nil
	}, Config{Enabled: true, NumWorkers: 4})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
}
