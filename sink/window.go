package sink

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/visiona/camflow"
)

// Window shows frames in a desktop window via OpenCV highgui. Only
// useful on desktop targets with a display; embedded deployments use the
// web sink instead.
type Window struct {
	win       *gocv.Window
	annotated bool
}

// NewWindow opens the display window. Set annotated to show the drawn
// overlay when present.
func NewWindow(title string, annotated bool) *Window {
	return &Window{win: gocv.NewWindow(title), annotated: annotated}
}

func (w *Window) Name() string { return "window" }

func (w *Window) Requests() []camflow.Field {
	if w.annotated {
		return []camflow.Field{camflow.FieldAnnotated}
	}
	return nil
}

func (w *Window) Consume(pkt *camflow.FramePacket) error {
	if pkt.Drop {
		return nil
	}

	img := pkt.Image
	if w.annotated && pkt.Annotated != nil {
		img = pkt.Annotated
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Data)
	if err != nil {
		return fmt.Errorf("window: wrap frame %d: %w", pkt.ID, err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	w.win.WaitKey(1)
	return nil
}

func (w *Window) Close() error { return w.win.Close() }
