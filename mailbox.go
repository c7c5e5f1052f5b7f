package camflow

import (
	"sync"
	"sync/atomic"
)

// mailbox is a single-slot, latest-value-wins handoff between the capture
// loop and the processing loop.
//
// Semantics:
//   - Put never blocks: a new packet overwrites an unconsumed one, and the
//     superseded counter is incremented. Frames are dropped, never queued.
//   - Take blocks until a packet is available (sync.Cond, no busy-wait)
//     and returns nil after Close once the slot is drained.
//
// This is what keeps the Runner at "at most one in-flight frame": the slot
// holds the newest captured packet and nothing else.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slot   *FramePacket // nil = consumed, non-nil = unconsumed
	closed bool

	superseded uint64 // atomic; packets overwritten before consumption
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put offers a packet, overwriting any unconsumed one. Safe after Close
// (the packet is silently discarded).
func (m *mailbox) Put(p *FramePacket) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.slot != nil {
		atomic.AddUint64(&m.superseded, 1)
	}
	m.slot = p
	m.cond.Signal()
	m.mu.Unlock()
}

// Take blocks until a packet is available or the mailbox is closed and
// drained, in which case it returns nil.
func (m *mailbox) Take() *FramePacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.slot == nil && !m.closed {
		m.cond.Wait()
	}
	p := m.slot
	m.slot = nil
	return p
}

// Close wakes any blocked Take. A packet already in the slot is still
// delivered before Take starts returning nil.
func (m *mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Superseded reports how many packets were overwritten before consumption.
func (m *mailbox) Superseded() uint64 {
	return atomic.LoadUint64(&m.superseded)
}
