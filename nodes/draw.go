package nodes

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/visiona/camflow"
)

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	labelColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Draw renders detection boxes and labels onto a copy of the frame. The
// captured image is never touched; sinks that want the overlay read the
// annotated field.
type Draw struct {
	conv camflow.CoordConvention
}

// NewDraw creates a draw node for detections in the given convention.
func NewDraw(conv camflow.CoordConvention) *Draw { return &Draw{conv: conv} }

func (d *Draw) Name() string              { return "draw" }
func (d *Draw) Provides() []camflow.Field { return []camflow.Field{camflow.FieldAnnotated} }

func (d *Draw) Process(pkt *camflow.FramePacket) error {
	annotated := pkt.Image.Clone()
	if len(pkt.Detections) == 0 {
		pkt.Annotated = annotated
		return nil
	}

	mat, err := gocv.NewMatFromBytes(annotated.Height, annotated.Width, gocv.MatTypeCV8UC3, annotated.Data)
	if err != nil {
		return err
	}
	defer mat.Close()

	for _, det := range pkt.Detections {
		box := det.Box
		if d.conv == camflow.CoordNormalized {
			box = box.ToPixels(annotated.Width, annotated.Height)
		}
		r := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
		gocv.Rectangle(&mat, r, boxColor, 2)

		label := det.Label
		if label == "" {
			label = fmt.Sprintf("class %d", det.ClassID)
		}
		text := fmt.Sprintf("%s %.0f%%", label, det.Confidence*100)
		org := image.Pt(r.Min.X, r.Min.Y-6)
		if org.Y < 12 {
			org.Y = r.Min.Y + 14
		}
		gocv.PutText(&mat, text, org, gocv.FontHersheySimplex, 0.5, labelColor, 1)
	}

	// NewMatFromBytes copies, so read the drawn pixels back out.
	drawn, err := mat.ToBytes()
	if err != nil {
		return err
	}
	copy(annotated.Data, drawn)
	pkt.Annotated = annotated
	return nil
}
