package widget

import (
	"context"
	"errors"
	"testing"

	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/github"
)

type fakeProfileFetcher struct {
	profile github.Profile
	err     error
	release chan struct{}
	logins  chan string
}

func (f *fakeProfileFetcher) Profile(ctx context.Context, login string) (github.Profile, error) {
	if f.logins != nil {
		f.logins <- login
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return github.Profile{}, ctx.Err()
		}
	}

	return f.profile, f.err
}

func TestProfileWidgetDisplaysProfile(t *testing.T) {
	bus := events.NewBus()
	loaded := subscribe(t, bus, events.IsName(events.EventProfileLoaded))
	fetcher := &fakeProfileFetcher{
		profile: github.Profile{Login: "octocat", AvatarURL: "https://avatars/1", HTMLURL: "https://github.com/octocat"},
		logins:  make(chan string, 1),
	}

	w, err := NewProfileWidget(ProfileConfig{Login: "@octocat", Fetcher: fetcher, Bus: bus})
	if err != nil {
		t.Fatalf("new widget: %v", err)
	}

	if err := w.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer w.Unmount(context.Background())

	if login := <-fetcher.logins; login != "octocat" {
		t.Fatalf("expected login without @, got %q", login)
	}

	nextEvent(t, loaded)

	card, ok := w.View()
	if !ok {
		t.Fatalf("expected card")
	}

	if card.Handle() != "@octocat" || card.URL != "https://github.com/octocat" || card.AvatarURL != "https://avatars/1" {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestProfileWidgetFailureStaysLoading(t *testing.T) {
	bus := events.NewBus()
	failed := subscribe(t, bus, events.IsName(events.EventProfileFetchFailed))

	w, err := NewProfileWidget(ProfileConfig{Login: "ghost", Fetcher: &fakeProfileFetcher{err: github.ErrNotFound}, Bus: bus})
	if err != nil {
		t.Fatalf("new widget: %v", err)
	}

	if err := w.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer w.Unmount(context.Background())

	evt := nextEvent(t, failed).(events.ProfileFetchFailed)
	if !errors.Is(evt.Err, github.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", evt.Err)
	}

	if w.State() != StateLoading {
		t.Fatalf("expected loading, got %s", w.State())
	}

	if _, ok := w.View(); ok {
		t.Fatalf("expected no card")
	}
}

func TestProfileWidgetUnmountCancelsFetch(t *testing.T) {
	var changes []State
	fetcher := &fakeProfileFetcher{release: make(chan struct{})}

	w, err := NewProfileWidget(ProfileConfig{
		Login:    "octocat",
		Fetcher:  fetcher,
		OnChange: func(state State, _ *github.Profile) { changes = append(changes, state) },
	})
	if err != nil {
		t.Fatalf("new widget: %v", err)
	}

	if err := w.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}

	if err := w.Unmount(context.Background()); err != nil {
		t.Fatalf("unmount: %v", err)
	}

	if len(changes) != 2 || changes[0] != StateLoading || changes[1] != StateClosed {
		t.Fatalf("expected loading then closed, got %v", changes)
	}

	if err := w.Mount(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNewProfileWidgetValidation(t *testing.T) {
	if _, err := NewProfileWidget(ProfileConfig{Login: "@", Fetcher: &fakeProfileFetcher{}}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}

	if _, err := NewProfileWidget(ProfileConfig{Login: "octocat"}); !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}
