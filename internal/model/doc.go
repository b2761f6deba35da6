// Package model defines the read-only snapshot of a trained dynamic scene that the
// exporter consumes.
//
// A Model holds the canonical Gaussian point set plus the deformation network:
// a multi-plane feature grid (HexPlane), a shared trunk MLP and five decoder
// heads. Optional sub-structures are nil pointers; nothing is discovered by
// probing.
//
// Tensors are referenced, never copied or mutated, so a Model can be exported
// while the source keeps it alive elsewhere.
package model
