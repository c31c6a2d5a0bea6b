package events

import "time"

type Name string

const (
	EventWidgetStateChanged Name = "widget.state_changed"

	EventPresenceUpdated     Name = "presence.updated"
	EventPresenceFetchFailed Name = "presence.fetch_failed"

	EventProfileLoaded      Name = "profile.loaded"
	EventProfileFetchFailed Name = "profile.fetch_failed"

	EventChannelConnected    Name = "channel.connected"
	EventChannelDisconnected Name = "channel.disconnected"
	EventChannelReconnecting Name = "channel.reconnecting"
	EventChannelError        Name = "channel.error"
	EventChannelFrame        Name = "channel.frame"
	EventChannelHello        Name = "channel.hello"
	EventChannelIgnored      Name = "channel.ignored"
	EventHeartbeatSent       Name = "channel.heartbeat_sent"
)

type Event interface {
	Name() Name
	Timestamp() time.Time
}

type Base struct {
	At time.Time
}

func (b Base) Timestamp() time.Time {
	return b.At
}

// WidgetStateChanged is emitted on every widget lifecycle transition.
type WidgetStateChanged struct {
	Base
	Widget  string
	Subject string
	From    string
	To      string
}

func (e WidgetStateChanged) Name() Name {
	return EventWidgetStateChanged
}

// Source is "fetch" for the initial REST snapshot and "push" for channel dispatches.
type PresenceUpdated struct {
	Base
	UserID string
	Status string
	Source string
}

func (e PresenceUpdated) Name() Name {
	return EventPresenceUpdated
}

type PresenceFetchFailed struct {
	Base
	UserID string
	Err    error
}

func (e PresenceFetchFailed) Name() Name {
	return EventPresenceFetchFailed
}

type ProfileLoaded struct {
	Base
	Login string
}

func (e ProfileLoaded) Name() Name {
	return EventProfileLoaded
}

type ProfileFetchFailed struct {
	Base
	Login string
	Err   error
}

func (e ProfileFetchFailed) Name() Name {
	return EventProfileFetchFailed
}

type ChannelConnected struct {
	Base
	Endpoint string
	UserID   string
}

func (e ChannelConnected) Name() Name {
	return EventChannelConnected
}

type ChannelDisconnected struct {
	Base
	UserID string
	Err    error
}

func (e ChannelDisconnected) Name() Name {
	return EventChannelDisconnected
}

type ChannelReconnecting struct {
	Base
	UserID  string
	Attempt int
	Delay   time.Duration
	Err     error
}

func (e ChannelReconnecting) Name() Name {
	return EventChannelReconnecting
}

type ChannelError struct {
	Base
	UserID string
	Err    error
	Fatal  bool
}

func (e ChannelError) Name() Name {
	return EventChannelError
}

type ChannelFrame struct {
	Base
	Op      int
	Type    string
	Payload string
}

func (e ChannelFrame) Name() Name {
	return EventChannelFrame
}

type ChannelHello struct {
	Base
	HeartbeatInterval time.Duration
}

func (e ChannelHello) Name() Name {
	return EventChannelHello
}

// ChannelIgnored reports a frame that was dropped without touching widget state.
type ChannelIgnored struct {
	Base
	Op  int
	Raw string
	Err error
}

func (e ChannelIgnored) Name() Name {
	return EventChannelIgnored
}

type HeartbeatSent struct {
	Base
	UserID string
}

func (e HeartbeatSent) Name() Name {
	return EventHeartbeatSent
}
