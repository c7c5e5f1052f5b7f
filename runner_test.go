package camflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
)

// fakeSource produces n small frames, then reports exhaustion. With
// infinite=true it never exhausts and paces itself so cancellation tests
// terminate promptly.
type fakeSource struct {
	n        int
	infinite bool
	produced int
	closed   bool
}

func (f *fakeSource) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	if ctx.Err() != nil {
		return nil, time.Time{}, ctx.Err()
	}
	if !f.infinite && f.produced >= f.n {
		return nil, time.Time{}, camflow.ErrSourceExhausted
	}
	if f.infinite {
		time.Sleep(time.Millisecond)
	}
	f.produced++
	img := &camflow.Image{Data: make([]byte, 4*4*3), Width: 4, Height: 4, Stride: 12}
	return img, time.Now(), nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func compile(t *testing.T, nodes []camflow.Node, sinks ...camflow.Sink) *camflow.Plan {
	t.Helper()
	g := camflow.NewGraph()
	for _, n := range nodes {
		require.NoError(t, g.Add(n))
	}
	for _, s := range sinks {
		g.Attach(s)
	}
	plan, err := g.Compile()
	require.NoError(t, err)
	return plan
}

// TestRunnerDeliversInCaptureOrder validates frame identity and ordering:
// IDs observed by a sink are strictly increasing, and the final frame is
// always delivered (latest-wins never starves the newest frame).
func TestRunnerDeliversInCaptureOrder(t *testing.T) {
	src := &fakeSource{n: 10}
	out := &stubSink{name: "out", requests: []camflow.Field{camflow.FieldImage}}
	plan := compile(t, nil, out)

	r := camflow.NewRunner(plan, src, camflow.RunnerOptions{})
	require.NoError(t, r.Run(context.Background()))

	require.NotEmpty(t, out.packets)
	var last uint64
	for _, pkt := range out.packets {
		require.Greater(t, pkt.ID, last)
		require.NotEmpty(t, pkt.TraceID)
		last = pkt.ID
	}
	require.Equal(t, uint64(10), last)

	stats := r.Stats()
	require.Equal(t, uint64(10), stats.FramesCaptured)
	require.Equal(t, stats.FramesCaptured, stats.FramesProcessed+stats.FramesSuperseded)
}

// TestRunnerNodeFailureDropsFrameAndContinues validates per-frame error
// containment: a failing node marks the packet dropped, the failure is
// counted, and the loop keeps consuming frames. Dropped packets still
// reach sinks.
func TestRunnerNodeFailureDropsFrameAndContinues(t *testing.T) {
	src := &fakeSource{n: 5}
	bad := &stubNode{name: "bad", provides: []camflow.Field{camflow.FieldMotion}, fail: errBoom}
	out := &stubSink{name: "out", requests: []camflow.Field{camflow.FieldMotion}}
	plan := compile(t, []camflow.Node{bad}, out)

	r := camflow.NewRunner(plan, src, camflow.RunnerOptions{})
	require.NoError(t, r.Run(context.Background()))

	require.NotEmpty(t, out.packets)
	for _, pkt := range out.packets {
		require.True(t, pkt.Drop)
	}

	stats := r.Stats()
	require.Equal(t, stats.FramesProcessed, stats.FramesDropped)
	require.Equal(t, stats.FramesProcessed, stats.NodeFailures["bad"])
}

// TestRunnerNodeFailureStopsTraversal validates that a failure on an
// upstream node prevents its dependents from running on that frame.
func TestRunnerNodeFailureStopsTraversal(t *testing.T) {
	src := &fakeSource{n: 3}
	first := &stubNode{name: "first", provides: []camflow.Field{camflow.FieldDetections}, fail: errBoom}
	second := &stubNode{name: "second", provides: []camflow.Field{camflow.FieldRegions}}
	out := &stubSink{name: "out", requests: []camflow.Field{camflow.FieldRegions}}

	g := camflow.NewGraph()
	require.NoError(t, g.Add(first))
	require.NoError(t, g.Add(second))
	g.Connect("first", "second")
	g.Attach(out)
	plan, err := g.Compile()
	require.NoError(t, err)

	r := camflow.NewRunner(plan, src, camflow.RunnerOptions{})
	require.NoError(t, r.Run(context.Background()))

	require.Greater(t, first.calls, 0)
	require.Zero(t, second.calls)
}

// TestRunnerSinkFailureIsNotFatal validates that a failing sink does not
// abort the run or starve other sinks.
func TestRunnerSinkFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{n: 5}
	bad := &stubSink{name: "bad", requests: []camflow.Field{camflow.FieldImage}, fail: errBoom}
	good := &stubSink{name: "good", requests: []camflow.Field{camflow.FieldImage}}
	plan := compile(t, nil, bad, good)

	r := camflow.NewRunner(plan, src, camflow.RunnerOptions{})
	require.NoError(t, r.Run(context.Background()))

	require.NotEmpty(t, bad.packets)
	require.Equal(t, len(bad.packets), len(good.packets))
}

// TestRunnerContextCancellation validates that cancelling the context
// stops an endless source.
func TestRunnerContextCancellation(t *testing.T) {
	src := &fakeSource{infinite: true}
	out := &stubSink{name: "out", requests: []camflow.Field{camflow.FieldImage}}
	plan := compile(t, nil, out)

	ctx, cancel := context.WithCancel(context.Background())
	r := camflow.NewRunner(plan, src, camflow.RunnerOptions{})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}
