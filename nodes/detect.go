package nodes

import (
	"github.com/visiona/camflow"
	"github.com/visiona/camflow/infer"
)

// Detect runs an object detector over the full frame and fills the
// detection list. The detector is resolved by the inference provider for
// the current environment; the node is backend-agnostic.
type Detect struct {
	name     string
	detector infer.Detector
}

// NewDetect wraps a resolved detector as a node. The node name carries
// the logical model name so log lines attribute failures to the model.
func NewDetect(model string, det infer.Detector) *Detect {
	return &Detect{name: "detect:" + model, detector: det}
}

func (d *Detect) Name() string              { return d.name }
func (d *Detect) Provides() []camflow.Field { return []camflow.Field{camflow.FieldDetections} }

func (d *Detect) Process(pkt *camflow.FramePacket) error {
	dets, err := d.detector.Detect(pkt.Image)
	if err != nil {
		return err
	}
	pkt.Detections = dets
	return nil
}

// Close releases the underlying detector.
func (d *Detect) Close() error { return d.detector.Close() }
