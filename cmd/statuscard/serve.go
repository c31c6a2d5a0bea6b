package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ceskypane/statuscard/github"
	"github.com/ceskypane/statuscard/lanyard"
	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/render"
	"github.com/ceskypane/statuscard/widget"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// cardServer renders card fragments. Every request does its own fetch; no
// widget state is shared between requests.
type cardServer struct {
	presence widget.PresenceFetcher
	profiles widget.ProfileFetcher
	log      logging.Logger
}

func (s *cardServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cards/discord/{id}", s.discordCard)
	mux.HandleFunc("GET /cards/github/{login}", s.githubCard)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (s *cardServer) discordCard(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	snapshot, err := s.presence.Presence(r.Context(), id)
	if err != nil {
		s.fail(w, "discord", id, err, errors.Is(err, lanyard.ErrUnknownUser) || errors.Is(err, lanyard.ErrMissingUserID))
		return
	}

	card, _ := render.NewPresenceCard(&snapshot)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if err := render.WritePresenceHTML(w, card); err != nil {
		s.log.Error("write presence card", logging.F("user_id", id), logging.F("error", err.Error()))
	}
}

func (s *cardServer) githubCard(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimSpace(r.PathValue("login"))

	profile, err := s.profiles.Profile(r.Context(), login)
	if err != nil {
		s.fail(w, "github", login, err, errors.Is(err, github.ErrNotFound) || errors.Is(err, github.ErrMissingLogin))
		return
	}

	card, _ := render.NewProfileCard(&profile)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := render.WriteProfileHTML(w, card); err != nil {
		s.log.Error("write profile card", logging.F("login", login), logging.F("error", err.Error()))
	}
}

// fail answers with an empty body: a card with no data renders nothing.
func (s *cardServer) fail(w http.ResponseWriter, kind, subject string, err error, notFound bool) {
	status := http.StatusBadGateway
	if notFound {
		status = http.StatusNotFound
	}

	s.log.Warn("card fetch failed",
		logging.F("card", kind),
		logging.F("subject", subject),
		logging.F("status", status),
		logging.F("error", err.Error()),
	)

	w.WriteHeader(status)
}

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTML card fragments over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &http.Server{
				Addr: pick(addr, a.cfg.Serve.Addr),
				Handler: (&cardServer{
					presence: a.lanyardClient(),
					profiles: a.githubClient(),
					log:      a.log,
				}).routes(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				a.log.Info("serving cards", logging.F("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				return nil
			})

			g.Go(func() error {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
