// Package serialization writes and reads the flat tensor files of an asset bundle.
//
// Every tensor is stored as its own headerless file:
//
//	<name>.raw    float32 elements, little-endian, row-major (C order)
//
// The shape needed to interpret a file lives in the bundle manifest, so the file
// length is always product(shape) * 4 bytes regardless of the source precision.
//
// Example usage:
//
//	w, err := serialization.NewRawWriter(dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	desc, err := w.Write("positions", positions)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(desc.File, desc.Shape) // positions.raw [N 3]
//
//	values, err := serialization.ReadRaw(filepath.Join(dir, desc.File), desc.Shape)
//
// The package also carries a SafeTensors writer used to produce checkpoint
// fixtures that the loader package consumes.
package serialization
