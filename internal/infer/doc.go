package infer

// Package infer runs pretrained YOLOv8 detection and instance segmentation
// models exported to ONNX through OpenCV's DNN module. Frames are
// letterboxed to the network input, the raw output tensors are decoded in Go,
// overlapping boxes are suppressed per class and results are mapped back to
// frame coordinates. Models are loaded lazily and cached per task by the
// Registry.
