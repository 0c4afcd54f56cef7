package sensor

import "sync/atomic"

// ConnectionWatcher tracks the connection state reported by a Source.
type ConnectionWatcher struct {
	connected atomic.Bool
	dropped   atomic.Int64
	onChange  func(connected bool)
}

// NewConnectionWatcher creates a watcher with the given initial state.
// onChange, if not nil, is invoked on every reported transition.
func NewConnectionWatcher(initial bool, onChange func(connected bool)) *ConnectionWatcher {
	w := &ConnectionWatcher{onChange: onChange}
	w.connected.Store(initial)
	return w
}

// Connected reports the last known state.
func (w *ConnectionWatcher) Connected() bool {
	return w.connected.Load()
}

// Disconnects returns how many disconnects were observed.
func (w *ConnectionWatcher) Disconnects() int64 {
	return w.dropped.Load()
}

// OnData implements Listener.
func (w *ConnectionWatcher) OnData([]Entry) {}

// OnConnect implements Listener.
func (w *ConnectionWatcher) OnConnect() {
	if !w.connected.Swap(true) && w.onChange != nil {
		w.onChange(true)
	}
}

// OnDisconnect implements Listener.
func (w *ConnectionWatcher) OnDisconnect() {
	if w.connected.Swap(false) {
		w.dropped.Add(1)
		if w.onChange != nil {
			w.onChange(false)
		}
	}
}
