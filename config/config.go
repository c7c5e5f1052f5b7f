// Package config loads and validates the pipeline configuration from
// YAML, with a .env overlay for per-host secrets like the broker address.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/visiona/camflow"
)

// Config is the complete camflow configuration.
type Config struct {
	InstanceID       string `yaml:"instance_id"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	// Environment forces the platform instead of probing: "auto",
	// "desktop" or "embedded".
	Environment string `yaml:"environment"`
	// Coords is the pipeline-wide coordinate convention: "pixel" or
	// "normalized".
	Coords          string         `yaml:"coords"`
	WarmupDurationS int            `yaml:"warmup_duration_s"`
	Source          SourceConfig   `yaml:"source"`
	Models          ModelsConfig   `yaml:"models"`
	Pipeline        PipelineConfig `yaml:"pipeline"`
	Sinks           SinksConfig    `yaml:"sinks"`
}

// SourceConfig selects and tunes the frame source.
type SourceConfig struct {
	Kind      string `yaml:"kind"` // auto, webcam, csi, replay, journal, synthetic
	Device    int    `yaml:"device"`
	Directory string `yaml:"directory"`
	Journal   string `yaml:"journal"`
	Loop      bool   `yaml:"loop"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	FPS       int    `yaml:"fps"`
}

// ModelsConfig locates model artifacts and names the active detector.
type ModelsConfig struct {
	Dir        string         `yaml:"dir"`
	Detector   string         `yaml:"detector"`
	Confidence float64        `yaml:"confidence"`
	Labels     map[int]string `yaml:"labels"`
}

// PipelineConfig enables and tunes the built-in nodes.
type PipelineConfig struct {
	Motion MotionConfig `yaml:"motion"`
	Detect ToggleConfig `yaml:"detect"`
	Crop   CropConfig   `yaml:"crop"`
	OCR    OCRConfig    `yaml:"ocr"`
	Draw   ToggleConfig `yaml:"draw"`
}

// Fields lists the packet fields the enabled nodes will provide. Sinks
// must request only fields from this set or the graph will not compile.
func (p PipelineConfig) Fields() []camflow.Field {
	var fields []camflow.Field
	if p.Motion.Enabled {
		fields = append(fields, camflow.FieldMotion)
	}
	if p.Detect.Enabled {
		fields = append(fields, camflow.FieldDetections)
	}
	if p.Crop.Enabled {
		fields = append(fields, camflow.FieldRegions)
	}
	if p.OCR.Enabled {
		fields = append(fields, camflow.FieldOCR)
	}
	if p.Draw.Enabled {
		fields = append(fields, camflow.FieldAnnotated)
	}
	return fields
}

// ToggleConfig is a node with no tunables.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MotionConfig tunes the motion node.
type MotionConfig struct {
	Enabled          bool `yaml:"enabled"`
	GateDrop         bool `yaml:"gate_drop"`
	PixelThreshold   int  `yaml:"pixel_threshold"`
	MinChangedPixels int  `yaml:"min_changed_pixels"`
}

// CropConfig tunes the crop node.
type CropConfig struct {
	Enabled bool    `yaml:"enabled"`
	Pad     float64 `yaml:"pad"`
}

// OCRConfig tunes the OCR node.
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Language  string `yaml:"language"`
	Whitelist string `yaml:"whitelist"`
	Classes   []int  `yaml:"classes"`
}

// SinksConfig enables and tunes the built-in sinks.
type SinksConfig struct {
	Window  WindowSinkConfig  `yaml:"window"`
	Web     WebSinkConfig     `yaml:"web"`
	MQTT    MQTTSinkConfig    `yaml:"mqtt"`
	Storage StorageSinkConfig `yaml:"storage"`
	Journal JournalSinkConfig `yaml:"journal"`
}

// WindowSinkConfig tunes the desktop window sink.
type WindowSinkConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Title     string `yaml:"title"`
	Annotated bool   `yaml:"annotated"`
}

// WebSinkConfig tunes the web preview sink.
type WebSinkConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	Annotated   bool   `yaml:"annotated"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// MQTTSinkConfig tunes the MQTT event sink.
type MQTTSinkConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	SkipStill   bool   `yaml:"skip_still"`
}

// StorageSinkConfig tunes the sqlite sink.
type StorageSinkConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	QueueSize   int    `yaml:"queue_size"`
	SaveJPEG    bool   `yaml:"save_jpeg"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	SkipStill   bool   `yaml:"skip_still"`
}

// JournalSinkConfig tunes the msgpack journal sink.
type JournalSinkConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	SaveJPEG    bool   `yaml:"save_jpeg"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	SkipStill   bool   `yaml:"skip_still"`
}

// Load reads and parses a YAML configuration file. A .env file next to
// the working directory, when present, overlays host-specific values
// before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Best effort; absence of a .env file is the common case.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv overlays host-specific environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CAMFLOW_INSTANCE_ID"); v != "" {
		cfg.InstanceID = v
	}
	if v := os.Getenv("CAMFLOW_MQTT_BROKER"); v != "" {
		cfg.Sinks.MQTT.Broker = v
	}
	if v := os.Getenv("CAMFLOW_WEB_ADDR"); v != "" {
		cfg.Sinks.Web.Addr = v
	}
	if v := os.Getenv("CAMFLOW_MODEL_DIR"); v != "" {
		cfg.Models.Dir = v
	}
}
