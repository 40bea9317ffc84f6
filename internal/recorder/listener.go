package recorder

import "time"

// Listener receives session events. Callbacks are invoked synchronously in
// event order from session goroutines; implementations must return quickly
// and must not call back into the session.
type Listener interface {
	// RecordingStarted fires once capture is running. path is the file the
	// session will persist to on stop.
	RecordingStarted(path string)
	// RecordingStopped fires after the session returns to idle. path is
	// empty when no file was written.
	RecordingStopped(path string, duration time.Duration)
	// RecordingError delivers capture faults that occur off the control
	// path. The session never panics across this boundary.
	RecordingError(err error)
	// AudioChunk streams each captured chunk as raw S16LE bytes, enabling
	// live visualization or forwarding before the file is complete.
	AudioChunk(chunk []byte)
}

// Subscribe registers a listener for session events.
func (s *Session) Subscribe(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Unsubscribe removes a previously registered listener. Comparison is by
// interface identity.
func (s *Session) Unsubscribe(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for i, reg := range s.listeners {
		if reg == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Session) snapshotListeners() []Listener {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	out := make([]Listener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

func (s *Session) notifyStarted(path string) {
	for _, l := range s.snapshotListeners() {
		l.RecordingStarted(path)
	}
}

func (s *Session) notifyStopped(path string, d time.Duration) {
	for _, l := range s.snapshotListeners() {
		l.RecordingStopped(path, d)
	}
}

func (s *Session) notifyError(err error) {
	for _, l := range s.snapshotListeners() {
		l.RecordingError(err)
	}
}

func (s *Session) notifyChunk(chunk []byte) {
	for _, l := range s.snapshotListeners() {
		l.AudioChunk(chunk)
	}
}
