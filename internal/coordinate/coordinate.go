// Package coordinate holds the shared, process-scoped state that glues
// the rotator and compressor workers together: the append-vs-rotate
// flag, the generation-namespace lock, the watcher fence, the
// compression-ready signal, and per-stream pending-compression
// bookkeeping.
package coordinate

import (
	"sync"

	"go.uber.org/atomic"
)

// StreamState is the per-stream bookkeeping mutated only while holding
// a Coordinator's generation lock.
type StreamState struct {
	TerminalPath    string
	PendingCompress bool
}

// Coordinator is the single instance of the coordination layer shared by
// a daemon's rotator and compressor goroutines.
type Coordinator struct {
	// ZipActive is read by the rotator (without blocking) to choose
	// append-vs-rotate, and set/cleared by the compressor around its
	// packaging work.
	ZipActive atomic.Bool

	// generationLock serializes every mutation of the generation
	// namespace: renames, removes, opens-for-append, creates.
	generationLock sync.Mutex

	// watcherGate is taken around event dispatch and briefly by the
	// compressor's post-compression direct shift, so the two never
	// interleave.
	watcherGate sync.Mutex

	// ready carries one stream index per newly-terminal generation; a
	// buffered channel used purely as a counting signal between the
	// rotator and compressor goroutines.
	ready chan int

	mu     sync.Mutex
	states []*StreamState
}

// New constructs a Coordinator for a registry of size n streams.
func New(n int) *Coordinator {
	states := make([]*StreamState, n)
	for i := range states {
		states[i] = &StreamState{}
	}
	return &Coordinator{
		ready:  make(chan int, n*4),
		states: states,
	}
}

// Lock acquires the generation-namespace lock. Callers must Unlock on
// every exit path.
func (c *Coordinator) Lock() { c.generationLock.Lock() }

// Unlock releases the generation-namespace lock.
func (c *Coordinator) Unlock() { c.generationLock.Unlock() }

// FenceWatcher acquires the watcher gate, used around dispatch and by
// the compressor's settle-after-compress direct shift.
func (c *Coordinator) FenceWatcher() { c.watcherGate.Lock() }

// UnfenceWatcher releases the watcher gate.
func (c *Coordinator) UnfenceWatcher() { c.watcherGate.Unlock() }

// State returns the bookkeeping struct for stream id. The caller must
// hold the generation lock before reading or writing its fields.
func (c *Coordinator) State(id int) *StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// SignalCompression posts one compression-ready unit for stream id. Must
// be called after releasing the generation lock (never while held), so
// the compressor can acquire it without contention from the poster.
func (c *Coordinator) SignalCompression(id int) {
	c.ready <- id
}

// WaitCompression blocks until a stream id is ready for compression, or
// the channel is closed (shutdown), in which case ok is false.
func (c *Coordinator) WaitCompression() (id int, ok bool) {
	id, ok = <-c.ready
	return id, ok
}

// Close shuts down the compression-ready channel, unblocking any
// WaitCompression call and signalling the compressor worker to return.
func (c *Coordinator) Close() {
	close(c.ready)
}
