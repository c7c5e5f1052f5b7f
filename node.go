package camflow

// Field names a packet field that a node produces and a sink can request.
// Fields are the currency of dependency resolution: sinks declare the
// fields they need, Compile prunes the graph to the ancestors of the nodes
// providing them.
type Field string

const (
	// FieldImage is provided by ingestion itself; every packet carries it.
	FieldImage Field = "image"
	// FieldMotion is the motion-activity flag.
	FieldMotion Field = "motion"
	// FieldDetections is the standardized detection list.
	FieldDetections Field = "detections"
	// FieldRegions is the list of crops derived from detections.
	FieldRegions Field = "regions"
	// FieldOCR is the extracted text list, index-aligned with regions.
	FieldOCR Field = "ocr"
	// FieldAnnotated is the display copy with detections drawn on it.
	FieldAnnotated Field = "annotated"
)

// Node is a single processing step with a stable identity.
//
// Name() must be unique within a graph and stable across runs: it is used
// for topological ordering, failure accounting and backend-selection keys.
// Provides() declares the packet fields the node writes; it may be nil for
// pure pass-through transforms.
//
// Process extends the packet in place. It must not remove fields written
// upstream and must not mutate packet.Image (see Image contract). An error
// return marks the frame dropped; it never halts the capture loop.
type Node interface {
	Name() string
	Provides() []Field
	Process(p *FramePacket) error
}

// Sink is a terminal consumer of finished packets.
//
// Requests() declares which fields the sink needs; Compile uses the union
// of all attached sinks' requests to prune the graph. Consume is called
// for every finished packet, including dropped ones: a sink receiving a
// packet with Drop set performs no display/persistence work but may still
// update internal counters.
type Sink interface {
	Name() string
	Requests() []Field
	Consume(p *FramePacket) error
	Close() error
}
