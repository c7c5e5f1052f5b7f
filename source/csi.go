package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/camflow"
)

// CSIConfig parameterizes the embedded camera-bus capture.
type CSIConfig struct {
	Width  int
	Height int
	FPS    float64
}

// CSI captures from the camera bus of a single-board computer through a
// GStreamer pipeline:
//
//	libcamerasrc → videoconvert → capsfilter(BGR,WxH@fps) → appsink
//
// The appsink keeps only the latest buffer (max-buffers=1, drop=true), so
// backpressure starts at the kernel edge: stale frames are discarded
// before they ever reach Go. One copy happens per frame, out of the
// mapped GStreamer buffer into the Go heap, after which the buffer is
// immutable per the packet contract.
type CSI struct {
	cfg      CSIConfig
	pipeline *gst.Pipeline
	frames   chan csiFrame
	dropped  uint64
}

type csiFrame struct {
	data []byte
	ts   time.Time
}

// OpenCSI builds and starts the capture pipeline. Unavailable GStreamer
// elements or a failure to reach PLAYING state surface here as a
// *camflow.SourceUnavailableError, not on the first read.
func OpenCSI(cfg CSIConfig) (*CSI, error) {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	if cfg.FPS == 0 {
		cfg.FPS = 15
	}

	gst.Init(nil)

	s := &CSI{cfg: cfg, frames: make(chan csiFrame, 1)}
	if err := s.buildPipeline(); err != nil {
		return nil, &camflow.SourceUnavailableError{Backend: "csi", Device: "libcamerasrc", Err: err}
	}
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, &camflow.SourceUnavailableError{Backend: "csi", Device: "libcamerasrc", Err: err}
	}
	return s, nil
}

func (s *CSI) buildPipeline() error {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	src, err := gst.NewElement("libcamerasrc")
	if err != nil {
		return fmt.Errorf("create libcamerasrc: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("create videoconvert: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=BGR,width=%d,height=%d,framerate=%d/1",
		s.cfg.Width, s.cfg.Height, int(s.cfg.FPS))
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only latest frame
	appsink.SetProperty("drop", true)     // drop old frames

	pipeline.AddMany(src, converter, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("link pipeline elements: %w", err)
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	s.pipeline = pipeline
	return nil
}

// onNewSample copies the mapped buffer and offers it to the frame channel
// non-blocking. A full channel means the consumer is mid-read; the frame
// is dropped, never queued.
func (s *CSI) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	raw := mapInfo.Bytes()
	if len(raw) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	buffer.Unmap()

	select {
	case s.frames <- csiFrame{data: data, ts: time.Now()}:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
	return gst.FlowOK
}

// Next blocks until the pipeline delivers a frame. Live capture never
// returns camflow.ErrSourceExhausted.
func (s *CSI) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	select {
	case <-ctx.Done():
		return nil, time.Time{}, ctx.Err()
	case f := <-s.frames:
		return &camflow.Image{
			Data:   f.data,
			Width:  s.cfg.Width,
			Height: s.cfg.Height,
			Stride: s.cfg.Width * 3,
		}, f.ts, nil
	}
}

// Dropped reports frames discarded at the appsink boundary.
func (s *CSI) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

// Close stops the pipeline and releases camera resources.
func (s *CSI) Close() error {
	if s.pipeline != nil {
		if err := s.pipeline.SetState(gst.StateNull); err != nil {
			return fmt.Errorf("stop csi pipeline: %w", err)
		}
	}
	return nil
}
