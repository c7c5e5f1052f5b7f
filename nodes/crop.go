package nodes

import (
	"github.com/visiona/camflow"
)

// CropConfig tunes region extraction.
type CropConfig struct {
	// Convention is the coordinate convention detections arrive in.
	Convention camflow.CoordConvention
	// Pad expands each box by a fraction of its size on every side
	// before cropping. Useful for OCR, which reads better with margin.
	Pad float64
}

// Crop extracts one image region per detection. Regions keep the index
// of the detection they came from so downstream consumers can join them
// back.
type Crop struct {
	cfg CropConfig
}

// NewCrop creates a crop node.
func NewCrop(cfg CropConfig) *Crop { return &Crop{cfg: cfg} }

func (c *Crop) Name() string              { return "crop" }
func (c *Crop) Provides() []camflow.Field { return []camflow.Field{camflow.FieldRegions} }

func (c *Crop) Process(pkt *camflow.FramePacket) error {
	if len(pkt.Detections) == 0 {
		pkt.Regions = nil
		return nil
	}

	regions := make([]camflow.Region, 0, len(pkt.Detections))
	for i, det := range pkt.Detections {
		box := det.Box
		if c.cfg.Convention == camflow.CoordNormalized {
			box = box.ToPixels(pkt.Image.Width, pkt.Image.Height)
		}
		if c.cfg.Pad > 0 {
			px := box.Width() * c.cfg.Pad
			py := box.Height() * c.cfg.Pad
			box = camflow.Rect{X1: box.X1 - px, Y1: box.Y1 - py, X2: box.X2 + px, Y2: box.Y2 + py}
		}

		img := pkt.Image.Crop(box)
		if img.Width == 0 || img.Height == 0 {
			continue
		}
		regions = append(regions, camflow.Region{Image: img, DetectionIndex: i})
	}

	pkt.Regions = regions
	return nil
}
