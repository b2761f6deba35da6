// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package splat exports dynamic Gaussian scenes as runtime asset bundles.
//
// # Overview
//
// A Model holds the canonical Gaussian attributes (positions, scales,
// rotations, opacities and SH coefficients) and an optional deformation
// network (a multi-plane feature grid plus a decoder trunk and heads). Export
// writes each tensor as a flat float32 .raw file and describes them in
// deformation_network.json.
//
// # Basic Usage
//
//	m := &splat.Model{SHDegree: 3}
//	m.Points.Positions, _ = tensor.FromFloat32(tensor.Shape{n, 3}, xyz)
//	// ... remaining attributes
//
//	doc, err := splat.Export(m, "out", splat.WithLogger(slog.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := splat.Verify("out")
//	if err != nil || !report.OK() {
//	    log.Fatal("bundle is broken")
//	}
//
// # Errors
//
// Missing attributes wrap ErrMandatoryTensorMissing, inconsistent point counts
// wrap ErrPointCountMismatch and malformed decoder layers wrap ErrLayerShape.
// A failed export never writes the manifest.
package splat
