package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/lanyard"
	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/presence"
	"github.com/ceskypane/statuscard/render"
)

const (
	sourceFetch = "fetch"
	sourcePush  = "push"
)

type PresenceFetcher interface {
	Presence(ctx context.Context, userID string) (presence.Snapshot, error)
}

// PresenceChannel is the push side. *lanyard.Channel satisfies it.
type PresenceChannel interface {
	Subscribe(ctx context.Context, userID string) error
	Close(ctx context.Context) error
}

// ChannelFactory builds the push channel for one widget, wired to deliver
// snapshots to dispatcher.
type ChannelFactory func(dispatcher lanyard.Dispatcher) PresenceChannel

type PresenceConfig struct {
	UserID  string
	Fetcher PresenceFetcher
	// NewChannel is optional. Without it the widget only fetches once.
	NewChannel ChannelFactory
	Bus        *events.Bus
	Logger     logging.Logger
	// OnChange runs after every transition, one call at a time. It must
	// not call Unmount.
	OnChange func(state State, snapshot *presence.Snapshot)
	Now      func() time.Time
}

// PresenceWidget keeps the latest snapshot for one chat identity.
type PresenceWidget struct {
	cfg    PresenceConfig
	log    logging.Logger
	store  *store[presence.Snapshot]
	pushed bool // only touched inside store.update

	mu      sync.Mutex
	cancel  context.CancelFunc
	channel PresenceChannel
	wg      sync.WaitGroup
}

func NewPresenceWidget(cfg PresenceConfig) (*PresenceWidget, error) {
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	if cfg.UserID == "" {
		return nil, ErrMissingSubject
	}

	if cfg.Fetcher == nil {
		return nil, ErrMissingSource
	}

	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	w := &PresenceWidget{
		cfg: cfg,
		log: logging.WithFields(cfg.Logger, logging.F("widget", "presence"), logging.F("user_id", cfg.UserID)),
	}
	w.store = newStore(w.transition)

	return w, nil
}

// Mount moves the widget to Loading, starts the initial fetch in the
// background and subscribes the push channel. It does not wait for either.
func (w *PresenceWidget) Mount(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.begin(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.fetch(runCtx)

	if w.cfg.NewChannel == nil {
		return nil
	}

	channel := w.cfg.NewChannel(lanyard.DispatcherFunc(w.Dispatch))
	if err := channel.Subscribe(runCtx, w.cfg.UserID); err != nil {
		w.log.Warn("presence channel subscribe failed, continuing without push", logging.F("error", err.Error()))
		return nil
	}

	w.channel = channel
	return nil
}

// Unmount cancels the fetch, closes the channel and its keep-alive, and
// waits for all of it. No OnChange call happens after it returns. Calling
// it again is a no-op.
func (w *PresenceWidget) Unmount(ctx context.Context) error {
	w.store.close()

	w.mu.Lock()
	cancel := w.cancel
	channel := w.channel
	w.cancel = nil
	w.channel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var closeErr error
	if channel != nil {
		closeErr = channel.Close(ctx)
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	return closeErr
}

// Dispatch replaces the snapshot wholesale with a pushed one. Pushes that
// arrive outside Loading or Displaying are dropped.
func (w *PresenceWidget) Dispatch(_ context.Context, snapshot presence.Snapshot) {
	accepted := w.store.update(func(*presence.Snapshot) (presence.Snapshot, bool) {
		w.pushed = true
		return snapshot, true
	})

	if !accepted {
		return
	}

	w.log.Debug("presence pushed", logging.F("status", string(snapshot.Status)))
	w.emit(events.PresenceUpdated{Base: w.base(), UserID: w.cfg.UserID, Status: string(snapshot.Status), Source: sourcePush})
}

func (w *PresenceWidget) State() State {
	return w.store.status()
}

// Snapshot returns the latest snapshot while Displaying.
func (w *PresenceWidget) Snapshot() (presence.Snapshot, bool) {
	return w.store.current()
}

// View returns the card only while Displaying; otherwise nothing is shown.
func (w *PresenceWidget) View() (render.PresenceCard, bool) {
	snapshot, ok := w.store.current()
	if !ok {
		return render.PresenceCard{}, false
	}

	return render.NewPresenceCard(&snapshot)
}

func (w *PresenceWidget) fetch(ctx context.Context) {
	defer w.wg.Done()

	snapshot, err := w.cfg.Fetcher.Presence(ctx, w.cfg.UserID)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		w.log.Warn("presence fetch failed", logging.F("error", err.Error()))
		w.emit(events.PresenceFetchFailed{Base: w.base(), UserID: w.cfg.UserID, Err: err})
		return
	}

	accepted := w.store.update(func(*presence.Snapshot) (presence.Snapshot, bool) {
		if w.pushed {
			return presence.Snapshot{}, false
		}

		return snapshot, true
	})

	if !accepted {
		if w.store.status() != StateClosed {
			w.log.Debug("presence fetch result discarded as stale")
		}

		return
	}

	w.log.Info("presence fetched", logging.F("status", string(snapshot.Status)))
	w.emit(events.PresenceUpdated{Base: w.base(), UserID: w.cfg.UserID, Status: string(snapshot.Status), Source: sourceFetch})
}

func (w *PresenceWidget) transition(from, to State, snapshot *presence.Snapshot) {
	w.emit(events.WidgetStateChanged{
		Base:    w.base(),
		Widget:  "presence",
		Subject: w.cfg.UserID,
		From:    from.String(),
		To:      to.String(),
	})

	if w.cfg.OnChange != nil {
		w.cfg.OnChange(to, snapshot)
	}
}

func (w *PresenceWidget) emit(evt events.Event) {
	_ = w.cfg.Bus.Emit(evt)
}

func (w *PresenceWidget) base() events.Base {
	return events.Base{At: w.cfg.Now().UTC()}
}
