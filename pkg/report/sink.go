package report

// Sink receives reports. Implementations must not block the caller for
// long and handle their own failures.
type Sink interface {
	Publish(r Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Report)

// Publish calls f(r).
func (f SinkFunc) Publish(r Report) { f(r) }

// Multi fans a report out to several sinks in order. Nil entries are
// skipped.
type Multi []Sink

// Publish forwards r to each sink.
func (m Multi) Publish(r Report) {
	for _, s := range m {
		if s != nil {
			s.Publish(r)
		}
	}
}

// EndedOnly forwards only reports of ended sessions.
func EndedOnly(s Sink) Sink {
	return SinkFunc(func(r Report) {
		if r.Event == EventEnd {
			s.Publish(r)
		}
	})
}
