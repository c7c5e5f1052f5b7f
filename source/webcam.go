package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/visiona/camflow"
)

// Webcam captures from a local camera via OpenCV (desktop variant).
type Webcam struct {
	device int
	cap    *gocv.VideoCapture
	mat    gocv.Mat
}

// OpenWebcam opens the camera at the given index. Failure to open the
// device is a *camflow.SourceUnavailableError raised here, at construction.
func OpenWebcam(device int) (*Webcam, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, &camflow.SourceUnavailableError{
			Backend: "webcam",
			Device:  strconv.Itoa(device),
			Err:     err,
		}
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, &camflow.SourceUnavailableError{
			Backend: "webcam",
			Device:  strconv.Itoa(device),
			Err:     errors.New("device could not be opened"),
		}
	}
	return &Webcam{device: device, cap: cap, mat: gocv.NewMat()}, nil
}

// Next grabs one frame. The Mat is reused between reads; the returned
// Image owns a copy of the pixels, honoring the packet buffer contract.
func (w *Webcam) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, time.Time{}, fmt.Errorf("webcam %d: read failed", w.device)
	}
	ts := time.Now()

	data, err := w.mat.ToBytes()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("webcam %d: copy frame: %w", w.device, err)
	}
	return &camflow.Image{
		Data:   data,
		Width:  w.mat.Cols(),
		Height: w.mat.Rows(),
		Stride: w.mat.Cols() * 3,
	}, ts, nil
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	w.mat.Close()
	return w.cap.Close()
}
