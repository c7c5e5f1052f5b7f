package nodes

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/visiona/camflow"
)

// MotionConfig tunes frame differencing.
type MotionConfig struct {
	// PixelThreshold is the per-pixel intensity delta that counts as
	// changed. Zero means 25.
	PixelThreshold float32
	// MinChangedPixels is how many changed pixels constitute motion.
	// Zero means 500.
	MinChangedPixels int
	// GateDrop marks still frames with Drop=true so drop-aware sinks
	// skip them. Downstream nodes still run.
	GateDrop bool
}

// Motion detects frame-to-frame change by grayscale differencing against
// the previous frame. The first frame never reports motion.
type Motion struct {
	cfg  MotionConfig
	prev gocv.Mat
	has  bool
}

// NewMotion creates a motion node.
func NewMotion(cfg MotionConfig) *Motion {
	if cfg.PixelThreshold == 0 {
		cfg.PixelThreshold = 25
	}
	if cfg.MinChangedPixels == 0 {
		cfg.MinChangedPixels = 500
	}
	return &Motion{cfg: cfg, prev: gocv.NewMat()}
}

func (m *Motion) Name() string              { return "motion" }
func (m *Motion) Provides() []camflow.Field { return []camflow.Field{camflow.FieldMotion} }

func (m *Motion) Process(pkt *camflow.FramePacket) error {
	mat, err := gocv.NewMatFromBytes(pkt.Image.Height, pkt.Image.Width, gocv.MatTypeCV8UC3, pkt.Image.Data)
	if err != nil {
		return err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(21, 21), 0, 0, gocv.BorderDefault)

	if !m.has {
		m.prev.Close()
		m.prev = gray.Clone()
		m.has = true
		pkt.Motion = false
		if m.cfg.GateDrop {
			pkt.Drop = true
		}
		return nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(m.prev, gray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, m.cfg.PixelThreshold, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(thresh)

	m.prev.Close()
	m.prev = gray.Clone()

	pkt.Motion = changed >= m.cfg.MinChangedPixels
	if m.cfg.GateDrop && !pkt.Motion {
		pkt.Drop = true
	}
	return nil
}

// Close releases the retained previous frame.
func (m *Motion) Close() error {
	return m.prev.Close()
}
