package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
)

// Replay reads images from a directory in sorted filename order. It is
// the deterministic test source: N images yield exactly N successful reads
// followed by camflow.ErrSourceExhausted, on every run, unless Loop is
// set. Decoding is pure Go, so replay works on any host.
type Replay struct {
	dir   string
	files []string
	loop  bool
	idx   int
}

var replayExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// OpenReplay lists the directory and validates it has at least one image.
// A missing or empty directory is a *camflow.SourceUnavailableError at
// construction time.
func OpenReplay(dir string, loop bool) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &camflow.SourceUnavailableError{Backend: "replay", Device: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, &camflow.SourceUnavailableError{
			Backend: "replay",
			Device:  dir,
			Err:     errors.New("no images in directory"),
		}
	}
	sort.Strings(files)

	return &Replay{dir: dir, files: files, loop: loop}, nil
}

// Next decodes the next image. The timestamp is the read instant; replay
// makes no attempt to reproduce original capture pacing.
func (r *Replay) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if r.idx >= len(r.files) {
		if !r.loop {
			return nil, time.Time{}, camflow.ErrSourceExhausted
		}
		r.idx = 0
	}

	path := r.files[r.idx]
	r.idx++
	img, err := imgcodec.DecodeFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return img, time.Now(), nil
}

// Reset restarts the replay from the first image.
func (r *Replay) Reset() { r.idx = 0 }

// Len returns the number of images in the replay set.
func (r *Replay) Len() int { return len(r.files) }

// Close implements camflow.FrameSource. Replay holds no resources.
func (r *Replay) Close() error { return nil }
