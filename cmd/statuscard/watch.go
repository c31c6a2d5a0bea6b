package main

import (
	"context"
	"errors"
	"time"

	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/presence"
	"github.com/ceskypane/statuscard/render"
	"github.com/ceskypane/statuscard/widget"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const unmountTimeout = 5 * time.Second

type presenceMsg struct {
	state widget.State
	card  render.PresenceCard
	ok    bool
}

type mountErrMsg struct {
	err error
}

// watchModel draws the latest presence card. The widget feeds it through
// Program.Send from its change callback.
type watchModel struct {
	term    *render.Terminal
	subject string
	mount   func() error

	state widget.State
	card  render.PresenceCard
	ok    bool
	err   error
}

func newWatchModel(subject string, mount func() error) watchModel {
	return watchModel{
		term:    render.NewTerminal(),
		subject: subject,
		mount:   mount,
	}
}

func (m watchModel) Init() tea.Cmd {
	if m.mount == nil {
		return nil
	}

	mount := m.mount
	return func() tea.Msg {
		if err := mount(); err != nil {
			return mountErrMsg{err: err}
		}

		return nil
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case presenceMsg:
		m.state = msg.state
		m.card = msg.card
		m.ok = msg.ok
	case mountErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n"
	}

	body := m.term.Loading(m.subject)
	if m.ok {
		body = m.term.Presence(m.card)
	}

	return body + "\n\n" + m.state.String() + " · q to quit\n"
}

func newWatchCmd(a *app) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live presence card until quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = pick(userID, a.cfg.Discord.UserID)
			if userID == "" {
				return errors.New("a discord user id is required")
			}

			var program *tea.Program

			w, err := widget.NewPresenceWidget(widget.PresenceConfig{
				UserID:     userID,
				Fetcher:    a.lanyardClient(),
				NewChannel: a.channelFactory(),
				Bus:        a.bus,
				Logger:     a.log,
				OnChange: func(state widget.State, snapshot *presence.Snapshot) {
					card, ok := render.NewPresenceCard(snapshot)
					program.Send(presenceMsg{state: state, card: card, ok: ok})
				},
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			model := newWatchModel(userID, func() error { return w.Mount(ctx) })
			program = tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(cmd.OutOrStdout()))

			final, runErr := program.Run()

			// The program has stopped reading messages, so Send returns
			// immediately from here on.
			unmountCtx, cancel := context.WithTimeout(context.Background(), unmountTimeout)
			defer cancel()

			if err := w.Unmount(unmountCtx); err != nil {
				a.log.Warn("presence widget unmount failed", logging.F("error", err.Error()))
			}

			if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
				return runErr
			}

			if m, ok := final.(watchModel); ok && m.err != nil {
				return m.err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "discord user id (overrides config)")

	return cmd
}
