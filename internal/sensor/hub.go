package sensor

import (
	"sync"
	"time"
)

// Hub fans tagged batches out to listeners. Sources embed it and feed it raw
// samples through Deliver.
type Hub struct {
	mu        sync.RWMutex
	listeners []Listener

	markerMu    sync.Mutex
	marker      int
	markerSetAt time.Time

	now func() time.Time
}

// NewHub creates a hub using the wall clock.
func NewHub() *Hub {
	return &Hub{now: time.Now}
}

// AddListener registers l. Adding the same listener twice delivers twice.
func (h *Hub) AddListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// RemoveListener unregisters the first registration of l.
func (h *Hub) RemoveListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return
		}
	}
}

// SetMarker sets the marker stamped on subsequent entries.
func (h *Hub) SetMarker(m int) {
	h.markerMu.Lock()
	defer h.markerMu.Unlock()
	h.marker = m
	h.markerSetAt = h.now()
}

// Marker returns the current marker.
func (h *Hub) Marker() int {
	h.markerMu.Lock()
	defer h.markerMu.Unlock()
	return h.marker
}

// Tag stamps samples with the current marker and relative time.
// Relative time is measured from the sample timestamp when present, else from
// the arrival time.
func (h *Hub) Tag(samples []Sample) []Entry {
	h.markerMu.Lock()
	marker, setAt := h.marker, h.markerSetAt
	h.markerMu.Unlock()

	arrived := h.now()
	out := make([]Entry, len(samples))
	for i, s := range samples {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = arrived
		}
		rel := 0.0
		if !setAt.IsZero() {
			rel = float64(ts.Sub(setAt)) / float64(time.Millisecond)
		}
		out[i] = Entry{
			Timestamp:         ts,
			RelativeTimestamp: rel,
			Channels:          s.Channels,
			Marker:            marker,
			Motion:            s.Motion,
			GyroX:             s.GyroX,
			GyroY:             s.GyroY,
		}
	}
	return out
}

// Deliver tags samples and hands the batch to every listener.
func (h *Hub) Deliver(samples []Sample) {
	if len(samples) == 0 {
		return
	}
	batch := h.Tag(samples)
	for _, l := range h.snapshot() {
		l.OnData(batch)
	}
}

// Connected notifies listeners that the stream is live.
func (h *Hub) Connected() {
	for _, l := range h.snapshot() {
		l.OnConnect()
	}
}

// Disconnected notifies listeners that the stream dropped.
func (h *Hub) Disconnected() {
	for _, l := range h.snapshot() {
		l.OnDisconnect()
	}
}

func (h *Hub) snapshot() []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Listener, len(h.listeners))
	copy(out, h.listeners)
	return out
}
