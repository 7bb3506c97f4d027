package trigger

// Signal is the run-now request shared between the control surface and the
// scheduler. Raising is idempotent until the scheduler consumes or clears it.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise sets the request. It never blocks.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C is ready while a request is pending. Receiving consumes it.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Pending reports whether a request is waiting to be consumed.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}

// Clear drops a pending request and reports whether there was one.
func (s *Signal) Clear() bool {
	return s.consume()
}

func (s *Signal) consume() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Personal.AI order the ending
