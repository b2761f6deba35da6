// Package loader reads trained dynamic-scene checkpoints into a model.Model.
//
// Checkpoints are SafeTensors files holding a flat state dict. Several files
// may be given (for example the point cloud and the deformation network saved
// separately); their tensor tables and metadata are merged.
//
// Recognized keys:
//
//	_xyz _scaling _rotation _opacity _features_dc _features_rest
//	deformation_net.grid.grids.0.<k>          k = 0..5 (xy xz yz xt yt zt)
//	deformation_net.grid.aabb
//	deformation_net.feature_out.<i>.weight|bias
//	deformation_net.<head>.<i>.weight|bias    head = pos_deform, ...
//
// Layer indices follow the training-time sequential module, so a gap in the
// indices marks a parameter-free activation stage.
//
// Example:
//
//	m, err := loader.Load([]string{"point_cloud.safetensors", "deformation.safetensors"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(m.Points.Count())
package loader
