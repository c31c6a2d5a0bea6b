package lanyard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ceskypane/statuscard/events"
	"github.com/ceskypane/statuscard/internal/backoff"
	"github.com/ceskypane/statuscard/logging"
	"github.com/gorilla/websocket"
)

type outboundFrame struct {
	payload   []byte
	heartbeat bool
}

// Channel is one push subscription. Frames are read by a single goroutine,
// so dispatches reach the Dispatcher strictly in arrival order.
type Channel struct {
	cfg        ChannelConfig
	bus        *events.Bus
	dispatcher Dispatcher
	dialer     Dialer
	after      backoff.After
	logger     logging.Logger

	sendCh chan outboundFrame

	mu      sync.Mutex
	conn    Conn
	userID  string
	running bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func NewChannel(cfg ChannelConfig, bus *events.Bus, dispatcher Dispatcher, dialer Dialer) *Channel {
	if bus == nil {
		bus = events.NewBus()
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSocketURL
	}

	if cfg.WriteBuffer <= 0 {
		cfg.WriteBuffer = 16
	}

	if cfg.MinReconnectDelay <= 0 {
		cfg.MinReconnectDelay = 500 * time.Millisecond
	}

	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}

	if cfg.MaxReconnectDelay < cfg.MinReconnectDelay {
		cfg.MaxReconnectDelay = cfg.MinReconnectDelay
	}

	if cfg.NewTicker == nil {
		cfg.NewTicker = newTimeTicker
	}

	if dialer == nil {
		dialer = &gorillaDialer{dialer: websocket.DefaultDialer}
	}

	return &Channel{
		cfg:        cfg,
		bus:        bus,
		dispatcher: dispatcher,
		dialer:     dialer,
		logger:     logging.With(cfg.Logger),
		sendCh:     make(chan outboundFrame, cfg.WriteBuffer),
	}
}

// Subscribe starts the channel for userID and returns without waiting for
// the connection. The subscribe frame is the first frame written on every
// connection.
func (c *Channel) Subscribe(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		if c.userID != userID {
			return fmt.Errorf("lanyard: channel already subscribed to %s", c.userID)
		}

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.userID = userID
	c.running = true

	c.wg.Add(1)
	go c.supervisor(runCtx, userID)
	c.logger.Info("lanyard channel started", logging.F("endpoint", c.cfg.Endpoint), logging.F("user_id", userID))

	return nil
}

// Close tears the channel down and waits for every goroutine it started,
// including the keep-alive ticker, to finish.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	running := c.running
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if running {
		c.logger.Info("lanyard channel close requested")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *Channel) supervisor(ctx context.Context, userID string) {
	defer c.wg.Done()
	defer c.markStopped()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		err := c.connectAndRun(ctx, userID)
		if ctx.Err() != nil {
			return
		}

		if !c.cfg.Reconnect {
			if err != nil {
				c.emit(events.ChannelError{Base: c.base(), UserID: userID, Err: err, Fatal: true})
			}

			return
		}

		if err == nil {
			failures = 0
			continue
		}

		failures++
		delay := backoff.Exponential(failures-1, c.cfg.MinReconnectDelay, c.cfg.MaxReconnectDelay)

		if c.cfg.MaxReconnectAttempts > 0 && failures > c.cfg.MaxReconnectAttempts {
			reconnectErr := fmt.Errorf("%w: attempts=%d last_error=%v", ErrReconnectBudgetExceeded, failures-1, err)
			c.logger.Error("lanyard reconnect budget exhausted",
				logging.F("attempts", failures-1),
				logging.F("error", err.Error()),
			)
			c.emit(events.ChannelError{Base: c.base(), UserID: userID, Err: reconnectErr, Fatal: true})
			return
		}

		c.logger.Warn("lanyard channel dropped, scheduling reconnect",
			logging.F("attempt", failures),
			logging.F("delay", delay.String()),
			logging.F("error", err.Error()),
		)

		c.emit(events.ChannelReconnecting{Base: c.base(), UserID: userID, Attempt: failures, Delay: delay, Err: err})

		if !backoff.Wait(ctx, delay, c.after) {
			return
		}
	}
}

func (c *Channel) connectAndRun(ctx context.Context, userID string) error {
	headers := http.Header{}
	if c.cfg.UserAgent != "" {
		headers.Set("User-Agent", c.cfg.UserAgent)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, headers)
	if err != nil {
		return err
	}

	c.drainQueue()

	initFrame, err := EncodeInitialize(userID)
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := c.writeFrame(conn, initFrame); err != nil {
		_ = conn.Close()
		return err
	}

	c.setConn(conn)
	c.logger.Info("lanyard channel connected", logging.F("endpoint", c.cfg.Endpoint), logging.F("user_id", userID))
	c.emit(events.ChannelConnected{Base: c.base(), Endpoint: c.cfg.Endpoint, UserID: userID})

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	intervals := make(chan time.Duration, 1)

	var loops sync.WaitGroup
	loops.Add(3)
	go func() {
		defer loops.Done()
		c.readLoop(loopCtx, conn, intervals, errCh)
	}()
	go func() {
		defer loops.Done()
		c.writeLoop(loopCtx, conn, userID, errCh)
	}()
	go func() {
		defer loops.Done()
		c.keepAliveLoop(loopCtx, intervals, errCh)
	}()

	err = <-errCh
	cancel()
	_ = conn.Close()
	loops.Wait()
	c.clearConn(conn)

	if errors.Is(err, context.Canceled) {
		err = nil
	}

	c.emit(events.ChannelDisconnected{Base: c.base(), UserID: userID, Err: err})
	if err != nil {
		c.logger.Warn("lanyard channel disconnected", logging.F("error", err.Error()))
	} else {
		c.logger.Info("lanyard channel disconnected")
	}

	return err
}

func (c *Channel) readLoop(ctx context.Context, conn Conn, intervals chan time.Duration, errCh chan<- error) {
	for {
		if c.cfg.ReadDeadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadDeadline))
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}

		frame, err := DecodeFrame(payload)
		if err != nil {
			c.ignore(-1, payload, err)
			continue
		}

		c.emit(events.ChannelFrame{Base: c.base(), Op: int(frame.Op), Type: frame.Type, Payload: string(payload)})

		switch frame.Op {
		case OpEvent:
			snapshot, err := frame.Snapshot()
			if err != nil {
				c.ignore(frame.Op, payload, err)
				continue
			}

			if c.dispatcher != nil {
				c.dispatcher.Dispatch(ctx, snapshot)
			}
		case OpHello:
			hello, err := frame.Hello()
			if err != nil {
				c.ignore(frame.Op, payload, err)
				continue
			}

			c.logger.Debug("lanyard hello received", logging.F("heartbeat_interval", hello.Interval().String()))
			c.emit(events.ChannelHello{Base: c.base(), HeartbeatInterval: hello.Interval()})

			// Only this goroutine sends on intervals, so after draining the
			// buffered slot the send cannot block.
			select {
			case <-intervals:
			default:
			}
			intervals <- hello.Interval()
		default:
			c.ignore(frame.Op, payload, fmt.Errorf("%w: %d", ErrUnknownOpcode, int(frame.Op)))
		}
	}
}

func (c *Channel) writeLoop(ctx context.Context, conn Conn, userID string, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		case msg := <-c.sendCh:
			if err := c.writeFrame(conn, msg.payload); err != nil {
				errCh <- err
				return
			}

			if msg.heartbeat {
				c.emit(events.HeartbeatSent{Base: c.base(), UserID: userID})
			}
		}
	}
}

// keepAliveLoop owns the heartbeat ticker. A later hello replaces the
// running ticker; every ticker created here is stopped exactly once.
func (c *Channel) keepAliveLoop(ctx context.Context, intervals <-chan time.Duration, errCh chan<- error) {
	var (
		ticker Ticker
		tick   <-chan time.Time
	)

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-intervals:
			if ticker != nil {
				ticker.Stop()
			}

			ticker = c.cfg.NewTicker(d)
			tick = ticker.C()
		case <-tick:
			select {
			case <-ctx.Done():
				return
			case c.sendCh <- outboundFrame{payload: EncodeHeartbeat(), heartbeat: true}:
			default:
				errCh <- fmt.Errorf("lanyard: heartbeat queue is full")
				return
			}
		}
	}
}

func (c *Channel) writeFrame(conn Conn, frame []byte) error {
	if c.cfg.WriteDeadline > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteDeadline))
	}

	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Channel) drainQueue() {
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

func (c *Channel) ignore(op Opcode, payload []byte, err error) {
	level := c.logger.Warn
	if errors.Is(err, ErrUnknownOpcode) {
		level = c.logger.Debug
	}

	level("lanyard frame ignored", logging.F("op", int(op)), logging.F("error", err.Error()))
	c.emit(events.ChannelIgnored{Base: c.base(), Op: int(op), Raw: string(payload), Err: err})
}

func (c *Channel) setConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
}

func (c *Channel) clearConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
}

func (c *Channel) markStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("lanyard channel stopped")
}

func (c *Channel) emit(evt events.Event) {
	_ = c.bus.Emit(evt)
}

func (c *Channel) base() events.Base {
	return events.Base{At: time.Now().UTC()}
}

type gorillaDialer struct {
	dialer *websocket.Dialer
}

func (d *gorillaDialer) DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, *http.Response, error) {
	c, resp, err := d.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, resp, err
	}

	return &gorillaConn{conn: c}, resp, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *gorillaConn) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

func (c *gorillaConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *gorillaConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
