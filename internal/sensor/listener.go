package sensor

// Listener receives stream events from a Source.
//
// Callbacks run on the source's delivery goroutine and must return quickly.
// Listener values are compared with == on removal, so implementations should
// use pointer receivers.
type Listener interface {
	OnData(batch []Entry)
	OnConnect()
	OnDisconnect()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
// Register it by pointer.
type ListenerFuncs struct {
	Data       func(batch []Entry)
	Connect    func()
	Disconnect func()
}

// OnData implements Listener.
func (f *ListenerFuncs) OnData(batch []Entry) {
	if f.Data != nil {
		f.Data(batch)
	}
}

// OnConnect implements Listener.
func (f *ListenerFuncs) OnConnect() {
	if f.Connect != nil {
		f.Connect()
	}
}

// OnDisconnect implements Listener.
func (f *ListenerFuncs) OnDisconnect() {
	if f.Disconnect != nil {
		f.Disconnect()
	}
}

// Source is a tagged biosignal stream.
type Source interface {
	AddListener(l Listener)
	RemoveListener(l Listener)
	// SetMarker tags subsequent entries with m and restarts relative time.
	SetMarker(m int)
	Marker() int
}
