// Package camflow is a camera-side computer-vision pipeline framework.
//
// # Philosophy
//
// "Drop frames, never queue. Latency > Completeness."
//
// A pipeline is a directed acyclic graph of processing nodes (motion
// detection, object detection, cropping, OCR, ...) fed by a frame source
// and drained by sinks (display, durable storage, event emission). The
// same user-authored pipeline runs unchanged on a development desktop and
// on a resource-constrained edge device: the framework selects the capture
// backend and the model-execution backend from an environment descriptor,
// never from runtime type inspection.
//
// # Data Contract
//
// FramePacket is the unit of work. It is created exactly once per captured
// frame, flows through exactly one graph traversal, and is then discarded.
// Nodes extend the packet (append detections, attach crops, set flags) but
// never remove fields written by an upstream node. The image buffer is
// shared by reference under an immutability contract: a node that wants to
// draw on the image must Clone() it first, so that nodes running later in
// the traversal (OCR, storage) still see the unmodified capture.
//
// # Scheduling
//
// A Graph is compiled once. Compile detects cycles, resolves which nodes
// are ancestors of the fields the attached sinks request, and caches a
// topological order restricted to that ancestor set. Nodes off every
// requested path are never invoked. Per-frame execution reuses the cached
// order; nothing is re-derived at frame rate.
//
// # Real-Time Contract
//
// The Runner keeps at most one in-flight frame. Capture publishes into a
// single-slot mailbox with overwrite semantics: if a new frame is ready
// before the previous traversal finished, the older frame is superseded,
// not queued. Slow sink I/O (SQLite writes, JPEG files) runs on dedicated
// workers with bounded buffers so it can never stall the capture loop.
//
// # Basic Usage
//
//	desc := env.Probe()
//	src, err := source.Open(desc, srcCfg)
//	provider := infer.NewProvider(desc, inferCfg)
//	plates, err := provider.Detector("plates")
//
//	g := camflow.NewGraph()
//	g.Add(nodes.NewMotion(nodes.MotionConfig{}))
//	detect := nodes.NewDetect("plates", plates)
//	g.Add(detect)
//	g.Add(nodes.NewCrop(nodes.CropConfig{}))
//	g.Connect(detect.Name(), "crop")
//	g.Attach(storageSink) // requests FieldMotion, FieldDetections
//	g.Attach(webSink)     // requests FieldImage
//
//	plan, err := g.Compile()
//	runner := camflow.NewRunner(plan, src, camflow.RunnerOptions{})
//	err = runner.Run(ctx)
//
// # Error Model
//
// Construction-time errors are fatal and surface before any capture
// starts: *CycleError, *UnknownFieldError (graph), *SourceUnavailableError
// (capture device), *infer.ModelArtifactMissingError (model resolution).
// Per-frame node failures are recovered locally: the packet is marked
// dropped, the failure is logged with the node name and frame ID, and the
// loop continues with the next captured frame. A dropped packet still
// reaches the sinks, which skip display/persistence but may count it.
package camflow
