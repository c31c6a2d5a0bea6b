package lanyard

import (
	"context"
	"net/http"
	"time"

	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/presence"
)

// Dispatcher receives every accepted snapshot in arrival order.
type Dispatcher interface {
	Dispatch(ctx context.Context, snapshot presence.Snapshot)
}

type DispatcherFunc func(ctx context.Context, snapshot presence.Snapshot)

func (f DispatcherFunc) Dispatch(ctx context.Context, snapshot presence.Snapshot) {
	f(ctx, snapshot)
}

type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, *http.Response, error)
}

// Ticker is the keep-alive clock. Tests substitute a manual ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type ChannelConfig struct {
	Endpoint      string
	UserAgent     string
	WriteBuffer   int
	ReadDeadline  time.Duration
	WriteDeadline time.Duration

	// Reconnect enables the backoff supervisor. When false a dropped
	// connection ends the channel.
	Reconnect            bool
	MinReconnectDelay    time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int

	NewTicker TickerFunc
	Logger    logging.Logger
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time {
	return t.t.C
}

func (t *timeTicker) Stop() {
	t.t.Stop()
}
