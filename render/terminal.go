package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const cardWidth = 40

type Terminal struct {
	frame  lipgloss.Style
	title  lipgloss.Style
	muted  lipgloss.Style
	link   lipgloss.Style
	header lipgloss.Style
}

func NewTerminal() *Terminal {
	return &Terminal{
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3f4147")).
			Padding(0, 1).
			Width(cardWidth),
		title:  lipgloss.NewStyle().Bold(true),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOffline)),
		link:   lipgloss.NewStyle().Underline(true),
		header: lipgloss.NewStyle().Foreground(lipgloss.Color("#b5bac1")),
	}
}

func (t *Terminal) Presence(c PresenceCard) string {
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.StatusColor)).Render("●")

	lines := []string{
		t.title.Render("DISCORD") + "  " + t.header.Render(c.DisplayName),
		dot + " " + c.Subtitle(),
	}

	if c.CustomStatus != "" {
		lines = append(lines, t.muted.Render(c.CustomStatus))
	}

	if c.Music != nil {
		lines = append(lines,
			"",
			t.muted.Render("Listening to Spotify"),
			"♪ "+c.Music.Song,
			"by "+c.Music.Artist,
			t.muted.Render("art: "+c.Music.AlbumArtURL),
		)
	}

	lines = append(lines, t.link.Render(c.ProfileURL))

	return t.frame.Render(strings.Join(lines, "\n"))
}

func (t *Terminal) Profile(c ProfileCard) string {
	lines := []string{
		t.title.Render("GITHUB") + "  " + t.header.Render(c.Handle()),
	}

	if c.Name != "" {
		lines = append(lines, c.Name)
	}

	lines = append(lines,
		t.muted.Render(fmt.Sprintf("%d repos · %d followers", c.PublicRepos, c.Followers)),
		t.link.Render(c.URL),
	)

	return t.frame.Render(strings.Join(lines, "\n"))
}

// Loading is drawn by the live view before the first snapshot arrives.
func (t *Terminal) Loading(subject string) string {
	return t.muted.Render("waiting for " + subject + "…")
}
