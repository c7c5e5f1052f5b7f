package source

import (
	"context"
	"time"

	"github.com/visiona/camflow"
)

// Synthetic generates frames with a bouncing ball, paced at a target FPS.
// It needs no hardware and never exhausts: useful for demos, soak tests
// and exercising the full pipeline on machines without a camera.
type Synthetic struct {
	width, height int
	interval      time.Duration

	x, y   int
	vx, vy int
	radius int

	last time.Time
}

// NewSynthetic creates a generator. Zero dimensions default to 640x480,
// zero FPS to 15.
func NewSynthetic(width, height int, fps float64) *Synthetic {
	if width == 0 {
		width = 640
	}
	if height == 0 {
		height = 480
	}
	if fps == 0 {
		fps = 15
	}
	return &Synthetic{
		width:    width,
		height:   height,
		interval: time.Duration(float64(time.Second) / fps),
		x:        width / 2,
		y:        height / 2,
		vx:       6,
		vy:       6,
		radius:   30,
	}
}

// Next advances the animation and returns the rendered frame, sleeping as
// needed to hold the target FPS.
func (s *Synthetic) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	if !s.last.IsZero() {
		wait := s.interval - time.Since(s.last)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, time.Time{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	s.last = time.Now()

	s.step()
	return s.render(), s.last, nil
}

func (s *Synthetic) step() {
	s.x += s.vx
	s.y += s.vy
	if s.x-s.radius <= 0 || s.x+s.radius >= s.width {
		s.vx = -s.vx
		s.x = clamp(s.x, s.radius, s.width-s.radius)
	}
	if s.y-s.radius <= 0 || s.y+s.radius >= s.height {
		s.vy = -s.vy
		s.y = clamp(s.y, s.radius, s.height-s.radius)
	}
}

// render draws a filled red circle on black, BGR24.
func (s *Synthetic) render() *camflow.Image {
	stride := s.width * 3
	data := make([]byte, stride*s.height)
	r2 := s.radius * s.radius
	for y := s.y - s.radius; y <= s.y+s.radius; y++ {
		if y < 0 || y >= s.height {
			continue
		}
		dy := y - s.y
		for x := s.x - s.radius; x <= s.x+s.radius; x++ {
			if x < 0 || x >= s.width {
				continue
			}
			dx := x - s.x
			if dx*dx+dy*dy <= r2 {
				off := y*stride + x*3
				data[off+2] = 0xff // red channel in BGR
			}
		}
	}
	return &camflow.Image{Data: data, Width: s.width, Height: s.height, Stride: stride}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Close implements camflow.FrameSource.
func (s *Synthetic) Close() error { return nil }
