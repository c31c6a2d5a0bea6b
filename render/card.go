// Package render turns presence snapshots and profiles into card view models
// and draws them for the terminal (lipgloss) or as HTML fragments.
package render

import (
	"github.com/ceskypane/statuscard/github"
	"github.com/ceskypane/statuscard/presence"
)

const (
	ColorOnline  = "#23a55a"
	ColorIdle    = "#f0b232"
	ColorBusy    = "#f23f43"
	ColorOffline = "#80848e"

	// Accent colors used for the link-through chevron.
	AccentDiscord = "#5865F2"
	AccentGitHub  = "#238636"
)

var statusColors = map[presence.Status]string{
	presence.StatusOnline:  ColorOnline,
	presence.StatusIdle:    ColorIdle,
	presence.StatusBusy:    ColorBusy,
	presence.StatusOffline: ColorOffline,
}

var statusLabels = map[presence.Status]string{
	presence.StatusOnline:  "Online",
	presence.StatusIdle:    "Idle",
	presence.StatusBusy:    "Do Not Disturb",
	presence.StatusOffline: "Offline",
}

// StatusColor maps a status onto the fixed color table; unknown values get
// the offline color.
func StatusColor(s presence.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}

	return ColorOffline
}

func StatusLabel(s presence.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}

	return statusLabels[presence.StatusOffline]
}

type MusicView struct {
	Song        string
	Artist      string
	Album       string
	AlbumArtURL string
	TrackURL    string
}

type PresenceCard struct {
	UserID           string
	DisplayName      string
	AvatarURL        string
	ProfileURL       string
	Status           presence.Status
	StatusLabel      string
	StatusColor      string
	Activity         string
	ActivityImageURL string
	CustomStatus     string
	Music            *MusicView
}

// Subtitle is the status line: the label, then the playing activity if any.
func (c PresenceCard) Subtitle() string {
	if c.Activity == "" {
		return c.StatusLabel
	}

	return c.StatusLabel + " - " + c.Activity
}

// NewPresenceCard returns false for a nil snapshot: nothing is rendered
// until data exists.
func NewPresenceCard(s *presence.Snapshot) (PresenceCard, bool) {
	if s == nil {
		return PresenceCard{}, false
	}

	card := PresenceCard{
		UserID:      s.User.ID,
		DisplayName: s.User.DisplayName(),
		AvatarURL:   s.User.AvatarURL(),
		ProfileURL:  s.User.ProfileURL(),
		Status:      s.Status,
		StatusLabel: StatusLabel(s.Status),
		StatusColor: StatusColor(s.Status),
	}

	if a := s.PlayingActivity(); a != nil {
		card.Activity = a.Name
		card.ActivityImageURL = a.ImageURL()
	}

	if cs := s.CustomStatus(); cs != nil {
		card.CustomStatus = cs.State
	}

	if m := s.Music(); m != nil {
		card.Music = &MusicView{
			Song:        m.Song,
			Artist:      m.Artist,
			Album:       m.Album,
			AlbumArtURL: m.AlbumArtURL,
			TrackURL:    m.TrackURL(),
		}
	}

	return card, true
}

type ProfileCard struct {
	Login       string
	Name        string
	AvatarURL   string
	URL         string
	Bio         string
	PublicRepos int
	Followers   int
}

func (c ProfileCard) Handle() string {
	return "@" + c.Login
}

func NewProfileCard(p *github.Profile) (ProfileCard, bool) {
	if p == nil {
		return ProfileCard{}, false
	}

	url := p.HTMLURL
	if url == "" {
		url = "https://github.com/" + p.Login
	}

	return ProfileCard{
		Login:       p.Login,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		URL:         url,
		Bio:         p.Bio,
		PublicRepos: p.PublicRepos,
		Followers:   p.Followers,
	}, true
}
