package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/config"
	"github.com/visiona/camflow/env"
	"github.com/visiona/camflow/infer"
	"github.com/visiona/camflow/nodes"
	"github.com/visiona/camflow/sink"
	"github.com/visiona/camflow/source"
)

// app owns everything the daemon wires together: the probed environment,
// the frame source, the compiled plan and its runner, and the closers
// that must run at shutdown in reverse construction order.
type app struct {
	cfg    *config.Config
	desc   env.Descriptor
	src    camflow.FrameSource
	runner *camflow.Runner
	logger *slog.Logger

	closers []io.Closer
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	desc := env.Probe()
	switch cfg.Environment {
	case "desktop":
		desc.Platform = env.Desktop
	case "embedded":
		desc.Platform = env.Embedded
	}
	a.desc = desc
	logger.Info("environment resolved",
		"platform", desc.Platform,
		"arch", desc.Arch,
		"csi", desc.HasCSI,
		"accelerator", desc.Accelerator,
	)

	src, err := source.Open(desc, source.Config{
		Kind:        source.Kind(cfg.Source.Kind),
		Device:      cfg.Source.Device,
		Directory:   cfg.Source.Directory,
		Loop:        cfg.Source.Loop,
		JournalPath: cfg.Source.Journal,
		Width:       cfg.Source.Width,
		Height:      cfg.Source.Height,
		FPS:         float64(cfg.Source.FPS),
	})
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	a.src = src
	a.closers = append(a.closers, src)

	graph, err := a.buildGraph()
	if err != nil {
		a.closeAll()
		return nil, err
	}
	if err := a.attachSinks(graph); err != nil {
		a.closeAll()
		return nil, err
	}

	plan, err := graph.Compile()
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	for _, n := range plan.Order() {
		logger.Debug("pipeline node scheduled", "node", n.Name())
	}

	a.runner = camflow.NewRunner(plan, src, camflow.RunnerOptions{Logger: logger})
	return a, nil
}

func (a *app) convention() camflow.CoordConvention {
	if a.cfg.Coords == "normalized" {
		return camflow.CoordNormalized
	}
	return camflow.CoordPixel
}

// buildGraph assembles the enabled nodes and their dependency edges.
func (a *app) buildGraph() (*camflow.Graph, error) {
	p := a.cfg.Pipeline
	g := camflow.NewGraph()

	if p.Motion.Enabled {
		motion := nodes.NewMotion(nodes.MotionConfig{
			PixelThreshold:   float32(p.Motion.PixelThreshold),
			MinChangedPixels: p.Motion.MinChangedPixels,
			GateDrop:         p.Motion.GateDrop,
		})
		if err := g.Add(motion); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, motion)
	}

	var detectName string
	if p.Detect.Enabled {
		provider := infer.NewProvider(a.desc, infer.Config{
			ModelDir:      a.cfg.Models.Dir,
			Convention:    a.convention(),
			MinConfidence: a.cfg.Models.Confidence,
			Labels:        a.cfg.Models.Labels,
		})
		det, err := provider.Detector(a.cfg.Models.Detector)
		if err != nil {
			return nil, fmt.Errorf("load detector: %w", err)
		}
		node := nodes.NewDetect(a.cfg.Models.Detector, det)
		if err := g.Add(node); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, node)
		detectName = node.Name()
	}

	if p.Crop.Enabled {
		crop := nodes.NewCrop(nodes.CropConfig{Convention: a.convention(), Pad: p.Crop.Pad})
		if err := g.Add(crop); err != nil {
			return nil, err
		}
		g.Connect(detectName, crop.Name())
	}

	if p.OCR.Enabled {
		ocr, err := nodes.NewOCR(nodes.OCRConfig{
			Language:  p.OCR.Language,
			Whitelist: p.OCR.Whitelist,
			Classes:   p.OCR.Classes,
		})
		if err != nil {
			return nil, err
		}
		if err := g.Add(ocr); err != nil {
			ocr.Close()
			return nil, err
		}
		a.closers = append(a.closers, ocr)
		g.Connect("crop", ocr.Name())
	}

	if p.Draw.Enabled {
		draw := nodes.NewDraw(a.convention())
		if err := g.Add(draw); err != nil {
			return nil, err
		}
		g.Connect(detectName, draw.Name())
	}

	return g, nil
}

// sinkFields intersects a sink's candidate fields with what the enabled
// nodes provide, so a sink never requests a field the pipeline cannot
// produce. Key to keeping the default config compiling: storage wants
// OCR text when the OCR node runs, but must not demand it otherwise.
func sinkFields(produced []camflow.Field, candidates ...camflow.Field) []camflow.Field {
	var fields []camflow.Field
	for _, c := range candidates {
		for _, p := range produced {
			if c == p {
				fields = append(fields, c)
				break
			}
		}
	}
	return fields
}

// attachSinks constructs the enabled sinks and attaches them. Sinks are
// also registered as closers so shutdown flushes their queues.
func (a *app) attachSinks(g *camflow.Graph) error {
	s := a.cfg.Sinks
	produced := a.cfg.Pipeline.Fields()

	if s.Window.Enabled {
		win := sink.NewWindow(s.Window.Title, s.Window.Annotated)
		g.Attach(win)
		a.closers = append(a.closers, win)
	}
	if s.Web.Enabled {
		web, err := sink.NewWeb(sink.WebConfig{
			Addr:        s.Web.Addr,
			Annotated:   s.Web.Annotated,
			JPEGQuality: s.Web.JPEGQuality,
			Fields:      sinkFields(produced, camflow.FieldDetections),
		}, a.logger)
		if err != nil {
			return err
		}
		g.Attach(web)
		a.closers = append(a.closers, web)
	}
	if s.MQTT.Enabled {
		mq, err := sink.NewMQTT(sink.MQTTConfig{
			Broker:      s.MQTT.Broker,
			ClientID:    a.cfg.InstanceID,
			TopicPrefix: s.MQTT.TopicPrefix,
			QoS:         s.MQTT.QoS,
			SkipStill:   s.MQTT.SkipStill,
			Fields:      sinkFields(produced, camflow.FieldMotion, camflow.FieldDetections, camflow.FieldOCR),
		}, a.logger)
		if err != nil {
			return err
		}
		g.Attach(mq)
		a.closers = append(a.closers, mq)
	}
	if s.Storage.Enabled {
		st, err := sink.NewStorage(sink.StorageConfig{
			Path:        s.Storage.Path,
			QueueSize:   s.Storage.QueueSize,
			SaveJPEG:    s.Storage.SaveJPEG,
			JPEGQuality: s.Storage.JPEGQuality,
			SkipStill:   s.Storage.SkipStill,
			Fields:      sinkFields(produced, camflow.FieldMotion, camflow.FieldDetections, camflow.FieldOCR),
		}, a.logger)
		if err != nil {
			return err
		}
		g.Attach(st)
		a.closers = append(a.closers, st)
	}
	if s.Journal.Enabled {
		jr, err := sink.NewJournal(sink.JournalConfig{
			Path:        s.Journal.Path,
			SaveJPEG:    s.Journal.SaveJPEG,
			JPEGQuality: s.Journal.JPEGQuality,
			SkipStill:   s.Journal.SkipStill,
			Fields:      sinkFields(produced, camflow.FieldMotion, camflow.FieldDetections, camflow.FieldOCR),
		})
		if err != nil {
			return err
		}
		g.Attach(jr)
		a.closers = append(a.closers, jr)
	}

	return nil
}

// run performs the optional warmup, then blocks in the runner until the
// context is cancelled or the source is exhausted.
func (a *app) run(ctx context.Context) error {
	if d := time.Duration(a.cfg.WarmupDurationS) * time.Second; d > 0 {
		a.logger.Info("warming up source", "duration", d)
		stats, err := a.runner.Warmup(ctx, d)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		a.logger.Info("warmup complete",
			"frames", stats.FramesReceived,
			"fps_mean", stats.FPSMean,
			"fps_stddev", stats.FPSStdDev,
			"stable", stats.IsStable,
		)
		if !stats.IsStable {
			a.logger.Warn("source is unstable, continuing anyway")
		}
	}

	return a.runner.Run(ctx)
}

// shutdown closes everything in reverse construction order.
func (a *app) shutdown() {
	stats := a.runner.Stats()
	a.logger.Info("pipeline stopping",
		"frames_captured", stats.FramesCaptured,
		"frames_processed", stats.FramesProcessed,
		"frames_dropped", stats.FramesDropped,
		"frames_superseded", stats.FramesSuperseded,
	)
	a.closeAll()
}

func (a *app) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
