package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/github"
	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/render"
)

type ProfileFetcher interface {
	Profile(ctx context.Context, login string) (github.Profile, error)
}

type ProfileConfig struct {
	Login    string
	Fetcher  ProfileFetcher
	Bus      *events.Bus
	Logger   logging.Logger
	OnChange func(state State, profile *github.Profile)
	Now      func() time.Time
}

// ProfileWidget fetches a public code-hosting profile once at mount.
type ProfileWidget struct {
	cfg   ProfileConfig
	log   logging.Logger
	store *store[github.Profile]

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProfileWidget(cfg ProfileConfig) (*ProfileWidget, error) {
	cfg.Login = strings.TrimPrefix(strings.TrimSpace(cfg.Login), "@")
	if cfg.Login == "" {
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

	w := &ProfileWidget{
		cfg: cfg,
		log: logging.WithFields(cfg.Logger, logging.F("widget", "profile"), logging.F("login", cfg.Login)),
	}
	w.store = newStore(w.transition)

	return w, nil
}

func (w *ProfileWidget) Mount(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.begin(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.fetch(runCtx)

	return nil
}

// Unmount cancels an in-flight fetch and waits for it.
func (w *ProfileWidget) Unmount(ctx context.Context) error {
	w.store.close()

	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
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
		return nil
	}
}

func (w *ProfileWidget) State() State {
	return w.store.status()
}

func (w *ProfileWidget) Profile() (github.Profile, bool) {
	return w.store.current()
}

func (w *ProfileWidget) View() (render.ProfileCard, bool) {
	profile, ok := w.store.current()
	if !ok {
		return render.ProfileCard{}, false
	}

	return render.NewProfileCard(&profile)
}

func (w *ProfileWidget) fetch(ctx context.Context) {
	defer w.wg.Done()

	profile, err := w.cfg.Fetcher.Profile(ctx, w.cfg.Login)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		w.log.Warn("profile fetch failed", logging.F("error", err.Error()))
		w.emit(events.ProfileFetchFailed{Base: w.base(), Login: w.cfg.Login, Err: err})
		return
	}

	if !w.store.update(func(*github.Profile) (github.Profile, bool) { return profile, true }) {
		return
	}

	w.log.Info("profile loaded")
	w.emit(events.ProfileLoaded{Base: w.base(), Login: profile.Login})
}

func (w *ProfileWidget) transition(from, to State, profile *github.Profile) {
	w.emit(events.WidgetStateChanged{
		Base:    w.base(),
		Widget:  "profile",
		Subject: w.cfg.Login,
		From:    from.String(),
		To:      to.String(),
	})

	if w.cfg.OnChange != nil {
		w.cfg.OnChange(to, profile)
	}
}

func (w *ProfileWidget) emit(evt events.Event) {
	_ = w.cfg.Bus.Emit(evt)
}

func (w *ProfileWidget) base() events.Base {
	return events.Base{At: w.cfg.Now().UTC()}
}
