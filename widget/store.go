package widget

import "sync"

// store is the per-widget state cell. Transitions and their notifications
// are serialized on notifyMu; once close returns no further notification
// runs. Reads only take mu, so a notification may call back into status or
// current. A notification must not call close.
type store[T any] struct {
	notifyMu sync.Mutex

	mu    sync.Mutex
	state State
	value *T

	notify func(from, to State, value *T)
}

func newStore[T any](notify func(from, to State, value *T)) *store[T] {
	if notify == nil {
		notify = func(State, State, *T) {}
	}

	return &store[T]{notify: notify}
}

// begin moves Uninitialized to Loading.
func (s *store[T]) begin() error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateUninitialized:
	default:
		s.mu.Unlock()
		return ErrAlreadyMounted
	}

	s.state = StateLoading
	s.mu.Unlock()

	s.notify(StateUninitialized, StateLoading, nil)
	return nil
}

// update applies fn while Loading or Displaying. fn sees the previous value
// (nil while Loading) and reports whether its result should be kept.
func (s *store[T]) update(fn func(prev *T) (T, bool)) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.state != StateLoading && s.state != StateDisplaying {
		s.mu.Unlock()
		return false
	}

	var prev *T
	if s.value != nil {
		cp := *s.value
		prev = &cp
	}

	next, ok := fn(prev)
	if !ok {
		s.mu.Unlock()
		return false
	}

	from := s.state
	s.state = StateDisplaying
	s.value = &next
	s.mu.Unlock()

	out := next
	s.notify(from, StateDisplaying, &out)
	return true
}

// close moves any state to Closed and drops the value. It reports whether
// this call performed the transition.
func (s *store[T]) close() bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.state
	if from == StateClosed {
		s.mu.Unlock()
		return false
	}

	s.state = StateClosed
	s.value = nil
	s.mu.Unlock()

	s.notify(from, StateClosed, nil)
	return true
}

func (s *store[T]) status() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// current returns a copy of the value and true only while Displaying.
func (s *store[T]) current() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.state != StateDisplaying || s.value == nil {
		return zero, false
	}

	return *s.value, true
}
