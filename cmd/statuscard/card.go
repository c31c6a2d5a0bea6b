package main

import (
	"errors"
	"fmt"

	"github.com/ceskypane/statuscard/github"
	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/presence"
	"github.com/ceskypane/statuscard/render"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errNoSubjects = errors.New("nothing to show: set a discord user id or a github login")

func newCardCmd(a *app) *cobra.Command {
	var userID, login string

	cmd := &cobra.Command{
		Use:   "card",
		Short: "Fetch both cards once and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = pick(userID, a.cfg.Discord.UserID)
			login = pick(login, a.cfg.GitHub.Login)
			if userID == "" && login == "" {
				return errNoSubjects
			}

			var (
				snapshot *presence.Snapshot
				profile  *github.Profile
			)

			g, ctx := errgroup.WithContext(cmd.Context())

			if userID != "" {
				g.Go(func() error {
					s, err := a.lanyardClient().Presence(ctx, userID)
					if err != nil {
						return fmt.Errorf("discord card: %w", err)
					}

					snapshot = &s
					return nil
				})
			}

			if login != "" {
				g.Go(func() error {
					p, err := a.githubClient().Profile(ctx, login)
					if err != nil {
						return fmt.Errorf("github card: %w", err)
					}

					profile = &p
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			term := render.NewTerminal()
			out := cmd.OutOrStdout()

			if card, ok := render.NewPresenceCard(snapshot); ok {
				fmt.Fprintln(out, term.Presence(card))
			}

			if card, ok := render.NewProfileCard(profile); ok {
				fmt.Fprintln(out, term.Profile(card))
			}

			a.log.Debug("cards rendered", logging.F("user_id", userID), logging.F("login", login))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "discord user id (overrides config)")
	cmd.Flags().StringVar(&login, "login", "", "github login (overrides config)")

	return cmd
}
