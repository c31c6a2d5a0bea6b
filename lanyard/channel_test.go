package lanyard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/presence"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

type fakeConn struct {
	readCh    chan []byte
	writeCh   chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh:  make(chan []byte, 8),
		writeCh: make(chan []byte, 32),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closeCh:
		return 0, nil, errors.New("closed")
	case payload := <-c.readCh:
		return websocket.TextMessage, payload, nil
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closeCh:
		return errors.New("closed")
	case c.writeCh <- append([]byte(nil), data...):
		return nil
	}
}

func (c *fakeConn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})

	return nil
}

func (c *fakeConn) nextWrite(t *testing.T) string {
	t.Helper()

	select {
	case raw := <-c.writeCh:
		return string(raw)
	case <-time.After(time.Second):
		t.Fatalf("expected a client frame")
		return ""
	}
}

type fakeDialer struct {
	mu        sync.Mutex
	attempts  int
	failUntil int
	conns     []*fakeConn
}

func (d *fakeDialer) DialContext(_ context.Context, _ string, _ http.Header) (Conn, *http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts++
	if d.attempts <= d.failUntil {
		return nil, nil, errors.New("dial failed")
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil, nil
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.attempts
}

func (d *fakeDialer) waitConn(t *testing.T, idx int) *fakeConn {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		if len(d.conns) > idx {
			conn := d.conns[idx]
			d.mu.Unlock()
			return conn
		}
		d.mu.Unlock()

		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("connection %d was not dialed", idx)
	return nil
}

type manualTicker struct {
	interval time.Duration
	ch       chan time.Time
	stops    atomic.Int32
}

func (m *manualTicker) C() <-chan time.Time {
	return m.ch
}

func (m *manualTicker) Stop() {
	m.stops.Add(1)
}

type manualClock struct {
	created chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{created: make(chan *manualTicker, 4)}
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	tk := &manualTicker{interval: d, ch: make(chan time.Time, 1)}
	c.created <- tk
	return tk
}

func (c *manualClock) next(t *testing.T) *manualTicker {
	t.Helper()

	select {
	case tk := <-c.created:
		return tk
	case <-time.After(time.Second):
		t.Fatalf("expected a ticker to be created")
		return nil
	}
}

type recordingDispatcher struct {
	mu        sync.Mutex
	snapshots []presence.Snapshot
	notify    chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{notify: make(chan struct{}, 8)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, snapshot presence.Snapshot) {
	d.mu.Lock()
	d.snapshots = append(d.snapshots, snapshot)
	d.mu.Unlock()

	d.notify <- struct{}{}
}

func (d *recordingDispatcher) wait(t *testing.T) {
	t.Helper()

	select {
	case <-d.notify:
	case <-time.After(time.Second):
		t.Fatalf("expected a dispatch")
	}
}

func (d *recordingDispatcher) Snapshots() []presence.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]presence.Snapshot(nil), d.snapshots...)
}

func TestChannelSubscribesThenHeartbeatsOnHelloCadence(t *testing.T) {
	dialer := &fakeDialer{}
	clock := newManualClock()
	bus := events.NewBus()

	ch := NewChannel(ChannelConfig{NewTicker: clock.NewTicker}, bus, nil, dialer)

	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn := dialer.waitConn(t, 0)
	if got := conn.nextWrite(t); got != `{"op":2,"d":{"subscribe_to_id":"u1"}}` {
		t.Fatalf("first frame must subscribe, got %s", got)
	}

	conn.readCh <- []byte(`{"op":1,"d":{"heartbeat_interval":30000}}`)

	tk := clock.next(t)
	if tk.interval != 30*time.Second {
		t.Fatalf("unexpected heartbeat interval: %s", tk.interval)
	}

	for i := 0; i < 3; i++ {
		tk.ch <- time.Now()
		if got := conn.nextWrite(t); got != `{"op":3}` {
			t.Fatalf("tick %d: expected heartbeat, got %s", i, got)
		}
	}

	if err := ch.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if n := tk.stops.Load(); n != 1 {
		t.Fatalf("expected ticker stopped exactly once, got %d", n)
	}

	if ch.Running() {
		t.Fatalf("channel must not be running after close")
	}
}

func TestChannelSecondHelloReplacesTicker(t *testing.T) {
	dialer := &fakeDialer{}
	clock := newManualClock()

	ch := NewChannel(ChannelConfig{NewTicker: clock.NewTicker}, nil, nil, dialer)
	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn := dialer.waitConn(t, 0)
	_ = conn.nextWrite(t)

	conn.readCh <- []byte(`{"op":1,"d":{"heartbeat_interval":30000}}`)
	first := clock.next(t)

	conn.readCh <- []byte(`{"op":1,"d":{"heartbeat_interval":41250}}`)
	second := clock.next(t)

	if second.interval != 41250*time.Millisecond {
		t.Fatalf("unexpected replacement interval: %s", second.interval)
	}

	if err := ch.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if first.stops.Load() != 1 || second.stops.Load() != 1 {
		t.Fatalf("expected each ticker stopped once, got first=%d second=%d", first.stops.Load(), second.stops.Load())
	}
}

func TestChannelDispatchesInArrivalOrderAndIgnoresBadFrames(t *testing.T) {
	dialer := &fakeDialer{}
	bus := events.NewBus()
	ignored, err := bus.SubscribeFunc(8, events.IsName(events.EventChannelIgnored))
	if err != nil {
		t.Fatalf("subscribe bus: %v", err)
	}
	defer ignored.Cancel()

	dispatcher := newRecordingDispatcher()
	ch := NewChannel(ChannelConfig{}, bus, dispatcher, dialer)
	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer ch.Close(context.Background())

	conn := dialer.waitConn(t, 0)
	_ = conn.nextWrite(t)

	conn.readCh <- []byte(`{"op":0,"t":"INIT_STATE","d":{"discord_user":{"id":"u1"},"discord_status":"online","activities":[]}}`)
	dispatcher.wait(t)

	conn.readCh <- []byte(`{"op":9,"d":{}}`)
	assertIgnored(t, ignored.C, ErrUnknownOpcode)

	conn.readCh <- []byte(`{"op":0,"d":{"discord_status":"dnd"}}`)
	assertIgnored(t, ignored.C, ErrMalformedPayload)

	conn.readCh <- []byte(`garbage`)
	assertIgnored(t, ignored.C, ErrMalformedPayload)

	conn.readCh <- []byte(`{"op":0,"t":"PRESENCE_UPDATE","d":{"discord_user":{"id":"u1"},"discord_status":"idle","activities":[]}}`)
	dispatcher.wait(t)

	got := dispatcher.Snapshots()
	if len(got) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(got))
	}

	if got[0].Status != presence.StatusOnline || got[1].Status != presence.StatusIdle {
		t.Fatalf("dispatches out of order: %s, %s", got[0].Status, got[1].Status)
	}

	if !ch.Running() {
		t.Fatalf("bad frames must not close the channel")
	}
}

func TestChannelWithoutReconnectStopsOnDrop(t *testing.T) {
	dialer := &fakeDialer{}
	bus := events.NewBus()
	errs, err := bus.SubscribeFunc(4, events.IsName(events.EventChannelError))
	if err != nil {
		t.Fatalf("subscribe bus: %v", err)
	}
	defer errs.Cancel()

	ch := NewChannel(ChannelConfig{}, bus, nil, dialer)
	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn := dialer.waitConn(t, 0)
	_ = conn.nextWrite(t)
	_ = conn.Close()

	evt := nextEvent(t, errs.C)
	if !evt.(events.ChannelError).Fatal {
		t.Fatalf("expected fatal channel error without reconnect")
	}

	waitStopped(t, ch)

	if dialer.Attempts() != 1 {
		t.Fatalf("expected no redial, got %d attempts", dialer.Attempts())
	}
}

func TestChannelReconnectsWithBackoffWhenEnabled(t *testing.T) {
	dialer := &fakeDialer{failUntil: 2}
	bus := events.NewBus()
	connected, err := bus.SubscribeFunc(4, events.IsName(events.EventChannelConnected))
	if err != nil {
		t.Fatalf("subscribe bus: %v", err)
	}
	defer connected.Cancel()

	ch := NewChannel(ChannelConfig{Reconnect: true, MinReconnectDelay: time.Millisecond, MaxReconnectDelay: time.Millisecond}, bus, nil, dialer)
	ch.after = firedAfter

	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = nextEvent(t, connected.C)

	if dialer.Attempts() != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", dialer.Attempts())
	}

	if err := ch.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestChannelReconnectBudgetExhausted(t *testing.T) {
	dialer := &fakeDialer{failUntil: 100}
	bus := events.NewBus()
	fatal, err := bus.SubscribeFunc(4, func(evt events.Event) bool {
		e, ok := evt.(events.ChannelError)
		return ok && e.Fatal
	})
	if err != nil {
		t.Fatalf("subscribe bus: %v", err)
	}
	defer fatal.Cancel()

	ch := NewChannel(ChannelConfig{Reconnect: true, MaxReconnectAttempts: 2, MinReconnectDelay: time.Millisecond, MaxReconnectDelay: time.Millisecond}, bus, nil, dialer)
	ch.after = firedAfter

	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	evt := nextEvent(t, fatal.C)
	if !errors.Is(evt.(events.ChannelError).Err, ErrReconnectBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", evt.(events.ChannelError).Err)
	}

	waitStopped(t, ch)

	if dialer.Attempts() != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", dialer.Attempts())
	}
}

func TestChannelCloseDuringReconnectDelayLeavesNoGoroutines(t *testing.T) {
	baseline := goleak.IgnoreCurrent()

	dialer := &fakeDialer{failUntil: 100}
	bus := events.NewBus()
	reconnecting, err := bus.SubscribeFunc(4, events.IsName(events.EventChannelReconnecting))
	if err != nil {
		t.Fatalf("subscribe bus: %v", err)
	}
	defer reconnecting.Cancel()

	ch := NewChannel(ChannelConfig{Reconnect: true, MinReconnectDelay: 5 * time.Second, MaxReconnectDelay: 5 * time.Second}, bus, nil, dialer)

	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	evt := nextEvent(t, reconnecting.C).(events.ChannelReconnecting)
	if evt.Delay != 5*time.Second {
		t.Fatalf("expected 5s reconnect delay, got %s", evt.Delay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := ch.Close(ctx); err != nil {
		t.Fatalf("close during reconnect delay: %v", err)
	}

	if ch.Running() {
		t.Fatalf("expected channel stopped after close")
	}

	goleak.VerifyNone(t, baseline)
}

func TestChannelSubscribeValidation(t *testing.T) {
	ch := NewChannel(ChannelConfig{}, nil, nil, &fakeDialer{})

	if err := ch.Subscribe(context.Background(), " "); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}

	if err := ch.Close(context.Background()); err != nil {
		t.Fatalf("close of idle channel: %v", err)
	}
}

func TestChannelOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverErr := make(chan error, 1)
	heartbeats := make(chan struct{}, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			serverErr <- err
			return
		}

		var init struct {
			Op int `json:"op"`
			D  struct {
				SubscribeToID string `json:"subscribe_to_id"`
			} `json:"d"`
		}
		if err := json.Unmarshal(payload, &init); err != nil || init.Op != 2 || init.D.SubscribeToID != "u1" {
			serverErr <- errors.New("unexpected subscribe frame: " + string(payload))
			return
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":1,"d":{"heartbeat_interval":10}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":0,"t":"INIT_STATE","d":{"discord_user":{"id":"u1"},"discord_status":"online","activities":[]}}`))

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if strings.Contains(string(payload), `"op":3`) {
				select {
				case heartbeats <- struct{}{}:
				default:
				}
			}
		}
	}))
	defer srv.Close()

	dispatcher := newRecordingDispatcher()
	ch := NewChannel(ChannelConfig{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil, dispatcher, nil)

	if err := ch.Subscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	dispatcher.wait(t)

	for i := 0; i < 2; i++ {
		select {
		case <-heartbeats:
		case err := <-serverErr:
			t.Fatalf("server: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected heartbeat %d", i)
		}
	}

	if err := ch.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func assertIgnored(t *testing.T, ch <-chan events.Event, want error) {
	t.Helper()

	select {
	case evt := <-ch:
		ignored, ok := evt.(events.ChannelIgnored)
		if !ok {
			t.Fatalf("expected ChannelIgnored, got %T", evt)
		}

		if !errors.Is(ignored.Err, want) {
			t.Fatalf("expected %v, got %v", want, ignored.Err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected ignored frame event")
	}
}

func waitStopped(t *testing.T, ch *Channel) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for ch.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("channel did not stop")
		}

		time.Sleep(2 * time.Millisecond)
	}
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()

	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatalf("expected event")
		return nil
	}
}

// firedAfter is a reconnect clock whose delays elapse immediately.
func firedAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}
