package sensor

import "sync"

// NoMarker is the marker value meaning no stimulus is displayed.
const NoMarker = 0

// Accumulator buffers the entries tagged with the currently armed marker.
//
// Ingest is called from the source delivery goroutine; Arm, Disarm and Drain
// from the scheduler goroutine. The lock covers only buffer mutation.
type Accumulator struct {
	mu     sync.Mutex
	armed  int
	buffer []Entry
}

// NewAccumulator creates a disarmed accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Arm starts collecting entries tagged marker and discards anything buffered
// for a previous marker.
func (a *Accumulator) Arm(marker int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = marker
	a.buffer = nil
}

// Disarm stops collecting. Buffered entries stay until Drain.
func (a *Accumulator) Disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = NoMarker
}

// Armed returns the marker being collected, or NoMarker.
func (a *Accumulator) Armed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.armed
}

// Ingest appends the entries whose marker matches the armed marker.
func (a *Accumulator) Ingest(entries []Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.armed == NoMarker {
		return
	}
	for _, e := range entries {
		if e.Marker == a.armed {
			a.buffer = append(a.buffer, e)
		}
	}
}

// Drain returns the buffered entries and clears the buffer.
func (a *Accumulator) Drain() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.buffer
	a.buffer = nil
	return out
}

// OnData implements Listener.
func (a *Accumulator) OnData(batch []Entry) { a.Ingest(batch) }

// OnConnect implements Listener.
func (a *Accumulator) OnConnect() {}

// OnDisconnect implements Listener.
func (a *Accumulator) OnDisconnect() {}
