package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
instance_id: cam-01
source:
  kind: synthetic
  width: 64
  height: 48
  fps: 10
models:
  dir: ./models
  detector: wildlife
  confidence: 0.5
pipeline:
  detect:
    enabled: true
sinks:
  web:
    enabled: true
`

// TestLoadFillsDefaults validates defaulting: shutdown timeout, coords
// convention and the web listen address.
func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Equal(t, "cam-01", cfg.InstanceID)
	require.Equal(t, 5, cfg.ShutdownTimeoutS)
	require.Equal(t, "pixel", cfg.Coords)
	require.Equal(t, ":8080", cfg.Sinks.Web.Addr)
}

// TestLoadRejectsInvalid validates the failure modes an operator is most
// likely to hit.
func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing instance id",
			body: `
sinks:
  web:
    enabled: true
`,
			want: "instance_id",
		},
		{
			name: "bad instance id",
			body: `
instance_id: "CAM 01"
sinks:
  web:
    enabled: true
`,
			want: "instance_id",
		},
		{
			name: "no sinks",
			body: `
instance_id: cam-01
`,
			want: "sink",
		},
		{
			name: "detect without model",
			body: `
instance_id: cam-01
pipeline:
  detect:
    enabled: true
sinks:
  web:
    enabled: true
`,
			want: "models.dir",
		},
		{
			name: "ocr without crop",
			body: `
instance_id: cam-01
models:
  dir: ./models
  detector: wildlife
pipeline:
  detect:
    enabled: true
  ocr:
    enabled: true
sinks:
  web:
    enabled: true
`,
			want: "ocr",
		},
		{
			name: "annotated sink without draw",
			body: `
instance_id: cam-01
sinks:
  web:
    enabled: true
    annotated: true
`,
			want: "draw",
		},
		{
			name: "replay without directory",
			body: `
instance_id: cam-01
source:
  kind: replay
sinks:
  web:
    enabled: true
`,
			want: "source.directory",
		},
		{
			name: "skip_still sink without motion",
			body: `
instance_id: cam-01
sinks:
  storage:
    enabled: true
    path: camflow.db
    skip_still: true
`,
			want: "motion",
		},
		{
			name: "unknown coords",
			body: `
instance_id: cam-01
coords: polar
sinks:
  web:
    enabled: true
`,
			want: "coords",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

// TestPipelineFields validates the enabled-nodes-to-fields mapping sinks
// are wired from: disabled nodes must not surface their fields, or a sink
// would request something the graph cannot provide.
func TestPipelineFields(t *testing.T) {
	p := config.PipelineConfig{
		Motion: config.MotionConfig{Enabled: true},
		Detect: config.ToggleConfig{Enabled: true},
		Draw:   config.ToggleConfig{Enabled: true},
	}
	require.ElementsMatch(t,
		[]camflow.Field{camflow.FieldMotion, camflow.FieldDetections, camflow.FieldAnnotated},
		p.Fields())
	require.NotContains(t, p.Fields(), camflow.FieldOCR)

	require.Empty(t, config.PipelineConfig{}.Fields())
}

// TestEnvOverlay validates that host environment variables override the
// file.
func TestEnvOverlay(t *testing.T) {
	t.Setenv("CAMFLOW_INSTANCE_ID", "cam-override")
	t.Setenv("CAMFLOW_WEB_ADDR", ":9999")

	cfg, err := config.Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	require.Equal(t, "cam-override", cfg.InstanceID)
	require.Equal(t, ":9999", cfg.Sinks.Web.Addr)
}
