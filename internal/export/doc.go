// Package export writes a frozen dynamic Gaussian scene as a runtime asset bundle.
//
// A bundle is a directory holding one float32 .raw file per tensor plus the
// deformation_network.json manifest describing every file:
//
//	out/
//	  positions.raw scales.raw rotations.raw opacities.raw sh_dc.raw sh_rest.raw
//	  plane_xy.raw ... plane_zt.raw            (present planes only)
//	  feature_out_<i>_weight.raw / _bias.raw   (weight-bearing trunk layers)
//	  <head>_<i>_weight.raw / _bias.raw        (weight-bearing head layers)
//	  deformation_network.json
//
// The exporter is stateless between calls. A manifest from an earlier export is
// removed before any blob is written and the new one is written last, so its
// presence marks a complete export.
//
// Example usage:
//
//	e := export.New("out", export.WithLogger(logger))
//	m, err := e.Export(scene)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(m.NumGaussians)
package export
