package camflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/camflow/internal/warmup"
)

// RunnerOptions tunes a Runner. The zero value is usable.
type RunnerOptions struct {
	// Logger receives per-frame failure logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// RunnerStats is a snapshot of runner operational state.
type RunnerStats struct {
	// FramesCaptured counts packets created at ingestion.
	FramesCaptured uint64
	// FramesProcessed counts packets that completed a graph traversal.
	FramesProcessed uint64
	// FramesDropped counts processed packets that ended with Drop set.
	FramesDropped uint64
	// FramesSuperseded counts packets overwritten in the mailbox before
	// the processing loop consumed them. Superseded frames are expected
	// whenever node execution is slower than capture; they are the
	// backpressure policy working, not an error.
	FramesSuperseded uint64
	// NodeFailures maps node name to recovered per-frame failure count.
	NodeFailures map[string]uint64
}

// Runner drives one pipeline: it pulls frames from a FrameSource, wraps
// each into a FramePacket, walks the compiled Plan, and hands finished
// packets to the sinks.
//
// Concurrency model: one capture goroutine, one processing loop, joined by
// a single-slot mailbox. Node execution is sequential; concurrency exists
// only to keep capture decoupled from traversal and slow I/O off the
// critical path (sinks bring their own workers).
type Runner struct {
	plan *Plan
	src  FrameSource
	log  *slog.Logger

	mb     *mailbox
	nextID uint64

	framesCaptured  uint64
	framesProcessed uint64
	framesDropped   uint64

	failMu   sync.Mutex
	failures map[string]uint64
}

// NewRunner creates a Runner for a compiled plan and a frame source.
func NewRunner(plan *Plan, src FrameSource, opts RunnerOptions) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		plan:     plan,
		src:      src,
		log:      log,
		mb:       newMailbox(),
		failures: make(map[string]uint64),
	}
}

// Warmup consumes frames for the given duration without running the graph
// and reports FPS stability statistics. Call it between source start and
// Run to verify the stream before inference begins.
func (r *Runner) Warmup(ctx context.Context, duration time.Duration) (*warmup.Stats, error) {
	deadline := time.Now().Add(duration)
	var times []time.Time
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_, ts, err := r.src.Next(ctx)
		if err != nil {
			return nil, err
		}
		times = append(times, ts)
	}
	return warmup.Calculate(times, duration), nil
}

// Run blocks until the source is exhausted or the context is cancelled.
//
// Per-frame failures never abort the loop: a node error marks the packet
// dropped, is logged with the node name and frame ID, and the loop moves
// on to the next captured frame.
func (r *Runner) Run(ctx context.Context) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer r.mb.Close()
		r.captureLoop(ctx)
	}()

	for {
		pkt := r.mb.Take()
		if pkt == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		r.process(pkt)
		r.deliver(pkt)
	}

	cancel()
	wg.Wait()
	return parent.Err()
}

// Stats returns a snapshot of runner counters.
func (r *Runner) Stats() RunnerStats {
	r.failMu.Lock()
	failures := make(map[string]uint64, len(r.failures))
	for k, v := range r.failures {
		failures[k] = v
	}
	r.failMu.Unlock()

	return RunnerStats{
		FramesCaptured:   atomic.LoadUint64(&r.framesCaptured),
		FramesProcessed:  atomic.LoadUint64(&r.framesProcessed),
		FramesDropped:    atomic.LoadUint64(&r.framesDropped),
		FramesSuperseded: r.mb.Superseded(),
		NodeFailures:     failures,
	}
}

// captureLoop pulls frames and publishes packets into the mailbox. Frames
// are processed in capture order; IDs observed downstream are strictly
// increasing because this is the only writer.
func (r *Runner) captureLoop(ctx context.Context) {
	for {
		img, ts, err := r.src.Next(ctx)
		switch {
		case err == nil:
		case err == ErrSourceExhausted:
			r.log.Info("source exhausted, stopping capture",
				"frames_captured", atomic.LoadUint64(&r.framesCaptured))
			return
		case ctx.Err() != nil:
			return
		default:
			// Transient capture failure: one bad read must not halt
			// the camera loop.
			r.log.Warn("capture failed, retrying", "error", err)
			continue
		}

		id := atomic.AddUint64(&r.nextID, 1)
		atomic.AddUint64(&r.framesCaptured, 1)
		r.mb.Put(&FramePacket{
			ID:        id,
			Timestamp: ts,
			TraceID:   uuid.New().String(),
			Image:     img,
		})
	}
}

// process walks the cached topological order. A node failure stops the
// traversal for this packet and marks it dropped. A Drop flag set by a
// node itself does not stop the traversal; sinks decide what to skip.
func (r *Runner) process(pkt *FramePacket) {
	for _, n := range r.plan.order {
		if err := n.Process(pkt); err != nil {
			pkt.Drop = true
			r.failMu.Lock()
			r.failures[n.Name()]++
			r.failMu.Unlock()
			r.log.Error("node failed, dropping frame",
				"node", n.Name(),
				"frame_id", pkt.ID,
				"trace_id", pkt.TraceID,
				"error", err,
			)
			break
		}
	}
	atomic.AddUint64(&r.framesProcessed, 1)
	if pkt.Drop {
		atomic.AddUint64(&r.framesDropped, 1)
	}
}

// deliver hands the packet to every sink. Dropped packets are delivered
// too; the Sink contract says what to do with them. Sink errors are logged
// and never fatal.
func (r *Runner) deliver(pkt *FramePacket) {
	for _, s := range r.plan.sinks {
		if err := s.Consume(pkt); err != nil {
			r.log.Error("sink failed",
				"sink", s.Name(),
				"frame_id", pkt.ID,
				"error", err,
			)
		}
	}
}
