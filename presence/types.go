// Package presence holds the snapshot model for a tracked chat identity as
// delivered by the presence service, both over REST and the push channel.
package presence

import (
	"errors"
	"time"
)

var ErrMalformedSnapshot = errors.New("presence: malformed snapshot")

type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusBusy    Status = "dnd"
	StatusOffline Status = "offline"
)

func (s Status) Known() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusBusy, StatusOffline:
		return true
	default:
		return false
	}
}

type ActivityKind int

const (
	ActivityPlaying   ActivityKind = 0
	ActivityStreaming ActivityKind = 1
	ActivityListening ActivityKind = 2
	ActivityWatching  ActivityKind = 3
	ActivityCustom    ActivityKind = 4
	ActivityCompeting ActivityKind = 5
)

type User struct {
	ID            string `json:"id" yaml:"id"`
	Username      string `json:"username" yaml:"username"`
	GlobalName    string `json:"global_name,omitempty" yaml:"global_name,omitempty"`
	Avatar        string `json:"avatar" yaml:"avatar"`
	Discriminator string `json:"discriminator" yaml:"discriminator"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty" yaml:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty" yaml:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty" yaml:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty" yaml:"small_text,omitempty"`
}

type Activity struct {
	Name          string       `json:"name" yaml:"name"`
	Kind          ActivityKind `json:"type" yaml:"type"`
	State         string       `json:"state,omitempty" yaml:"state,omitempty"`
	Details       string       `json:"details,omitempty" yaml:"details,omitempty"`
	Assets        *Assets      `json:"assets,omitempty" yaml:"assets,omitempty"`
	ApplicationID string       `json:"application_id,omitempty" yaml:"application_id,omitempty"`
}

// Timestamps are unix milliseconds.
type Timestamps struct {
	Start int64 `json:"start" yaml:"start"`
	End   int64 `json:"end" yaml:"end"`
}

type Spotify struct {
	TrackID     string     `json:"track_id" yaml:"track_id"`
	Timestamps  Timestamps `json:"timestamps" yaml:"timestamps"`
	Song        string     `json:"song" yaml:"song"`
	Artist      string     `json:"artist" yaml:"artist"`
	Album       string     `json:"album" yaml:"album"`
	AlbumArtURL string     `json:"album_art_url" yaml:"album_art_url"`
}

// Snapshot is the full status record for one identity. Updates replace it
// wholesale; there is no field-level merge.
type Snapshot struct {
	User               User       `json:"discord_user" yaml:"discord_user"`
	Status             Status     `json:"discord_status" yaml:"discord_status"`
	Activities         []Activity `json:"activities" yaml:"activities"`
	ListeningToSpotify bool       `json:"listening_to_spotify" yaml:"listening_to_spotify"`
	Spotify            *Spotify   `json:"spotify,omitempty" yaml:"spotify,omitempty"`
}

// Validate rejects payloads that decoded but do not identify a user.
func (s Snapshot) Validate() error {
	if s.User.ID == "" {
		return ErrMalformedSnapshot
	}

	return nil
}

func (s Snapshot) activity(kind ActivityKind) *Activity {
	for i := range s.Activities {
		if s.Activities[i].Kind == kind {
			a := s.Activities[i]
			return &a
		}
	}

	return nil
}

// PlayingActivity returns the first "playing" activity, if any.
func (s Snapshot) PlayingActivity() *Activity {
	return s.activity(ActivityPlaying)
}

func (s Snapshot) CustomStatus() *Activity {
	return s.activity(ActivityCustom)
}

// Music returns the playback descriptor only while the listening flag is set.
func (s Snapshot) Music() *Spotify {
	if !s.ListeningToSpotify || s.Spotify == nil {
		return nil
	}

	m := *s.Spotify
	return &m
}

func (t Timestamps) StartTime() time.Time {
	if t.Start <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(t.Start).UTC()
}

func (t Timestamps) EndTime() time.Time {
	if t.End <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(t.End).UTC()
}

// Progress reports how far playback is at now, clamped to [0, 1]. It is 0
// when the track has no usable bounds.
func (t Timestamps) Progress(now time.Time) float64 {
	start, end := t.StartTime(), t.EndTime()
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0
	}

	p := float64(now.Sub(start)) / float64(end.Sub(start))
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
