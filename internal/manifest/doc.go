// Package manifest defines the JSON document that describes an exported bundle.
//
// The manifest is the only contract between the exporter and a runtime: it lists
// every tensor file with its shape, the decoder layout, the grid bounding box and
// the network shape descriptor. A runtime must honor these rules:
//
//   - Gaussian attributes are raw: apply sigmoid to opacities, exp to scales and
//     normalize rotations.
//   - A plane missing from "hexplane" means no coupling between that axis pair.
//   - Trunk and head layers are indexed among weight-bearing layers only;
//     activation placement follows from "network_config".
//   - A layer without bias_shape/bias_file has an all-zero bias.
//
// Objects keep a stable key order (vocabulary order for planes, attributes and
// heads) so that identical exports produce identical documents.
package manifest
