// Package nodes provides the built-in processing nodes: motion gating,
// object detection, region cropping, OCR, and annotation drawing.
//
// Each node declares the fields it provides; dependency edges between
// nodes are wired at graph construction. Nodes run sequentially on the
// pipeline goroutine and are free to keep per-instance state (the motion
// node keeps the previous frame) without locking.
package nodes
