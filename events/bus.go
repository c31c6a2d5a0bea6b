// Package events is the in-process fan-out used by widgets and channels to
// report lifecycle changes. Slow subscribers drop events rather than block
// emitters; drops are counted.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed    = errors.New("events: bus closed")
	ErrWaitTimeout  = errors.New("events: waiter timed out")
	ErrWaitCanceled = errors.New("events: waiter canceled")
)

type Predicate func(Event) bool

// subscriber is either a long-lived subscription or a one-shot waiter. A
// waiter is removed and closed after its first match.
type subscriber struct {
	ch      chan Event
	filter  Predicate
	oneShot bool
	dropped atomic.Uint64
}

func (s *subscriber) matches(evt Event) bool {
	return s.filter == nil || s.filter(evt)
}

type Subscription struct {
	C      <-chan Event
	sub    *subscriber
	cancel func()
	once   sync.Once
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}

	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Dropped reports how many events were discarded because C was full.
func (s *Subscription) Dropped() uint64 {
	if s == nil || s.sub == nil {
		return 0
	}

	return s.sub.dropped.Load()
}

// Next blocks for the next event on the subscription.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	select {
	case evt, ok := <-s.C:
		if !ok {
			return nil, ErrBusClosed
		}

		return evt, nil
	case <-ctx.Done():
		return nil, ctxErr(ctx)
	}
}

type Bus struct {
	mu      sync.Mutex
	closed  bool
	nextID  uint64
	subs    map[uint64]*subscriber
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

func (b *Bus) Subscribe(buffer int) (*Subscription, error) {
	return b.SubscribeFunc(buffer, nil)
}

// SubscribeFunc is Subscribe restricted to events matching filter. A nil
// filter matches everything.
func (b *Bus) SubscribeFunc(buffer int, filter Predicate) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 1
	}

	id, sub, err := b.add(&subscriber{ch: make(chan Event, buffer), filter: filter})
	if err != nil {
		return nil, err
	}

	return &Subscription{
		C:      sub.ch,
		sub:    sub,
		cancel: func() { b.remove(id) },
	}, nil
}

func (b *Bus) Emit(evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	for id, sub := range b.subs {
		if !sub.matches(evt) {
			continue
		}

		if sub.oneShot {
			// Waiters have a one-slot buffer that is never filled twice.
			sub.ch <- evt
			delete(b.subs, id)
			close(sub.ch)
			continue
		}

		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}

	return nil
}

// WaitFor blocks until an event matching pred is emitted after the call.
func (b *Bus) WaitFor(ctx context.Context, pred Predicate) (Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id, w, err := b.add(&subscriber{ch: make(chan Event, 1), filter: pred, oneShot: true})
	if err != nil {
		return nil, err
	}

	select {
	case evt, ok := <-w.ch:
		if ok {
			return evt, nil
		}

		if b.IsClosed() {
			return nil, ErrBusClosed
		}

		return nil, ErrWaitCanceled
	case <-ctx.Done():
		b.remove(id)
		return nil, ctxErr(ctx)
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *Bus) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// Dropped is the total number of events discarded across all subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) add(sub *subscriber) (uint64, *subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	return id, sub, nil
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}

	delete(b.subs, id)
	close(sub.ch)
}

func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}

	return ErrWaitCanceled
}
