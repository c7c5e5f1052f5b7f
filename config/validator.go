package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}
	if cfg.WarmupDurationS < 0 {
		return fmt.Errorf("warmup_duration_s must be >= 0")
	}

	switch cfg.Environment {
	case "", "auto", "desktop", "embedded":
	default:
		return fmt.Errorf("environment must be auto, desktop or embedded, got %q", cfg.Environment)
	}

	switch cfg.Coords {
	case "":
		cfg.Coords = "pixel"
	case "pixel", "normalized":
	default:
		return fmt.Errorf("coords must be pixel or normalized, got %q", cfg.Coords)
	}

	if err := validateSource(&cfg.Source); err != nil {
		return err
	}

	if cfg.Pipeline.Detect.Enabled {
		if cfg.Models.Dir == "" {
			return fmt.Errorf("models.dir is required when detection is enabled")
		}
		if cfg.Models.Detector == "" {
			return fmt.Errorf("models.detector is required when detection is enabled")
		}
		if cfg.Models.Confidence < 0 || cfg.Models.Confidence > 1 {
			return fmt.Errorf("models.confidence must be in [0,1], got %v", cfg.Models.Confidence)
		}
	}
	if cfg.Pipeline.Crop.Enabled && !cfg.Pipeline.Detect.Enabled {
		return fmt.Errorf("pipeline.crop requires pipeline.detect")
	}
	if cfg.Pipeline.OCR.Enabled && !cfg.Pipeline.Crop.Enabled {
		return fmt.Errorf("pipeline.ocr requires pipeline.crop")
	}
	if cfg.Pipeline.Draw.Enabled && !cfg.Pipeline.Detect.Enabled {
		return fmt.Errorf("pipeline.draw requires pipeline.detect")
	}

	if err := validateSinks(cfg); err != nil {
		return err
	}

	return nil
}

func validateSource(src *SourceConfig) error {
	switch src.Kind {
	case "", "auto":
		src.Kind = "auto"
	case "webcam", "csi", "synthetic":
	case "replay":
		if src.Directory == "" {
			return fmt.Errorf("source.directory is required for replay source")
		}
	case "journal":
		if src.Journal == "" {
			return fmt.Errorf("source.journal is required for journal source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", src.Kind)
	}

	if src.Width < 0 || src.Height < 0 || src.FPS < 0 {
		return fmt.Errorf("source dimensions and fps must be >= 0")
	}
	return nil
}

func validateSinks(cfg *Config) error {
	s := &cfg.Sinks

	if !s.Window.Enabled && !s.Web.Enabled && !s.MQTT.Enabled && !s.Storage.Enabled && !s.Journal.Enabled {
		return fmt.Errorf("at least one sink must be enabled")
	}

	if s.Window.Enabled && s.Window.Title == "" {
		s.Window.Title = "camflow " + cfg.InstanceID
	}
	if s.Web.Enabled && s.Web.Addr == "" {
		s.Web.Addr = ":8080"
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			return fmt.Errorf("sinks.mqtt.broker is required")
		}
		if s.MQTT.TopicPrefix == "" {
			s.MQTT.TopicPrefix = fmt.Sprintf("camflow/%s", cfg.InstanceID)
		}
		if s.MQTT.QoS > 2 {
			return fmt.Errorf("sinks.mqtt.qos must be 0, 1 or 2")
		}
	}
	if s.Storage.Enabled {
		if s.Storage.Path == "" {
			return fmt.Errorf("sinks.storage.path is required")
		}
		if s.Storage.QueueSize < 0 {
			return fmt.Errorf("sinks.storage.queue_size must be >= 0")
		}
	}
	if s.Journal.Enabled && s.Journal.Path == "" {
		return fmt.Errorf("sinks.journal.path is required")
	}

	// Annotated output needs the draw node.
	if (s.Window.Enabled && s.Window.Annotated || s.Web.Enabled && s.Web.Annotated) && !cfg.Pipeline.Draw.Enabled {
		return fmt.Errorf("annotated sinks require pipeline.draw")
	}

	// skip_still filters on the motion flag; without the motion node the
	// flag is never set and every frame would be skipped.
	if (s.MQTT.Enabled && s.MQTT.SkipStill ||
		s.Storage.Enabled && s.Storage.SkipStill ||
		s.Journal.Enabled && s.Journal.SkipStill) && !cfg.Pipeline.Motion.Enabled {
		return fmt.Errorf("skip_still sinks require pipeline.motion")
	}

	return nil
}
