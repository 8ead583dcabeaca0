package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Request is a JSON-RPC request sent to the browser-side relay.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response is a JSON-RPC response (or inbound request) from the relay.
// Method is non-empty only for peer-initiated messages.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a relay response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FrameConn is one established channel to the relay, already speaking whole
// frames. The socket implementation applies the length-prefix discipline;
// the WebSocket implementation maps frames onto messages.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
}

// Dialer establishes a FrameConn to the relay.
type Dialer func(ctx context.Context) (FrameConn, error)

// Options tune a Conn. Zero values select the defaults.
type Options struct {
	ReconnectDelay time.Duration // fixed delay between attempts, default 2s
	CallTimeout    time.Duration // per-request timeout, default 30s
	MaxFrameBytes  int

	// OnConnect and OnDisconnect observe channel state changes, for
	// telemetry. Either may be nil.
	OnConnect    func()
	OnDisconnect func(err error)
}

// Conn is the reconnecting connection to the browser-side relay. Outbound
// requests are correlated through a pending map; on disconnect every pending
// request is rejected immediately and a reconnect is scheduled after a fixed
// delay, repeating indefinitely. There is no backoff growth and no retry
// cap: the relay endpoint is local and either comes back or the process is
// shut down.
type Conn struct {
	dial    Dialer
	opts    Options
	pending *pendingSet
	logger  *logrus.Logger

	mu      sync.RWMutex
	current FrameConn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConn creates a relay connection. Start must be called before Call.
func NewConn(dial Dialer, opts Options, logger *logrus.Logger) *Conn {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		dial:    dial,
		opts:    opts,
		pending: newPendingSet(),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the connect/read loop in the background.
func (c *Conn) Start() {
	go c.run()
}

// Close tears the connection down and rejects anything still pending.
func (c *Conn) Close() {
	c.cancel()

	c.mu.Lock()
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
	c.mu.Unlock()

	c.pending.failAll(fmt.Errorf("relay connection closed"))
	<-c.done
}

// Connected reports whether a channel to the relay is currently established.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Pending reports the number of in-flight outbound requests.
func (c *Conn) Pending() int {
	return c.pending.size()
}

// Call sends a request to the relay and waits for the matching response.
// It fails with a timeout error when no response arrives within the
// configured window, and the pending entry is removed so a late response is
// dropped. A JSON-RPC error from the relay is returned as a Go error.
func (c *Conn) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.RLock()
	fc := c.current
	c.mu.RUnlock()

	if fc == nil {
		return nil, fmt.Errorf("relay not connected")
	}

	call := c.pending.add()

	req := Request{JSONRPC: "2.0", ID: call.id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		c.pending.remove(call.id)
		return nil, fmt.Errorf("failed to marshal relay request: %w", err)
	}

	c.writeMu.Lock()
	err = fc.WriteFrame(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.pending.remove(call.id)
		return nil, fmt.Errorf("failed to send relay request: %w", err)
	}

	timer := time.NewTimer(c.opts.CallTimeout)
	defer timer.Stop()

	select {
	case outcome := <-call.ch:
		if outcome.err != nil {
			return nil, outcome.err
		}
		if outcome.resp.Error != nil {
			return nil, fmt.Errorf("relay error %d: %s", outcome.resp.Error.Code, outcome.resp.Error.Message)
		}
		return outcome.resp.Result, nil
	case <-timer.C:
		c.pending.remove(call.id)
		return nil, fmt.Errorf("relay request %d timed out after %s", call.id, c.opts.CallTimeout)
	case <-ctx.Done():
		c.pending.remove(call.id)
		return nil, ctx.Err()
	}
}

// run is the connect loop: dial, read until the channel dies, reject
// pending, wait the fixed delay, repeat.
func (c *Conn) run() {
	defer close(c.done)

	for {
		if c.ctx.Err() != nil {
			return
		}

		fc, err := c.dial(c.ctx)
		if err != nil {
			c.logger.Debugf("Relay connect failed: %v", err)
			if !c.sleep() {
				return
			}
			continue
		}

		c.mu.Lock()
		c.current = fc
		c.mu.Unlock()

		c.logger.Info("Relay connected")
		if c.opts.OnConnect != nil {
			c.opts.OnConnect()
		}

		readErr := c.readLoop(fc)

		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		fc.Close()

		c.pending.failAll(fmt.Errorf("relay disconnected: %v", readErr))

		if c.ctx.Err() != nil {
			return
		}

		c.logger.Warnf("Relay disconnected: %v", readErr)
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(readErr)
		}

		if !c.sleep() {
			return
		}
	}
}

func (c *Conn) sleep() bool {
	select {
	case <-time.After(c.opts.ReconnectDelay):
		return true
	case <-c.ctx.Done():
		return false
	}
}

// readLoop pulls frames off the channel until it errors. Malformed frames
// are logged and dropped; the channel is not torn down for a single bad
// frame.
func (c *Conn) readLoop(fc FrameConn) error {
	for {
		frame, err := fc.ReadFrame()
		if err != nil {
			return err
		}
		c.handleFrame(frame)
	}
}

func (c *Conn) handleFrame(frame []byte) {
	var msg Response
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.Warnf("Dropping malformed relay frame: %v", err)
		return
	}

	if msg.Method != "" {
		c.handlePeerMessage(&msg)
		return
	}

	if !c.pending.resolve(msg.ID, &msg) {
		c.logger.Debugf("Dropping relay response with unknown id %d", msg.ID)
	}
}

// handlePeerMessage answers relay-initiated traffic. Only ping is
// meaningful; everything else is dropped.
func (c *Conn) handlePeerMessage(msg *Response) {
	if msg.Method != "ping" {
		c.logger.Debugf("Dropping unsolicited relay message: %s", msg.Method)
		return
	}

	c.mu.RLock()
	fc := c.current
	c.mu.RUnlock()
	if fc == nil {
		return
	}

	pong, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      msg.ID,
		"result":  map[string]string{"status": "ok"},
	})

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := fc.WriteFrame(pong); err != nil {
		c.logger.Debugf("Failed to answer relay ping: %v", err)
	}
}

// socketConn applies the length-prefix framing over a raw stream socket.
type socketConn struct {
	conn    net.Conn
	decoder *Decoder
	queue   [][]byte
	buf     []byte
}

// SocketDialer connects to a relay listening on a TCP or unix socket
// address like "127.0.0.1:8765" or "/tmp/agent-md.sock".
func SocketDialer(network, addr string, maxFrameBytes int) Dialer {
	return func(ctx context.Context) (FrameConn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("failed to dial relay at %s: %w", addr, err)
		}
		return NewSocketConn(conn, maxFrameBytes), nil
	}
}

// NewSocketConn wraps an established stream connection with frame handling.
func NewSocketConn(conn net.Conn, maxFrameBytes int) FrameConn {
	return &socketConn{
		conn:    conn,
		decoder: NewDecoder(maxFrameBytes),
		buf:     make([]byte, 32*1024),
	}
}

func (s *socketConn) ReadFrame() ([]byte, error) {
	for {
		if len(s.queue) > 0 {
			frame := s.queue[0]
			s.queue = s.queue[1:]
			return frame, nil
		}

		n, err := s.conn.Read(s.buf)
		if n > 0 {
			frames, derr := s.decoder.Push(s.buf[:n])
			s.queue = append(s.queue, frames...)
			if derr != nil {
				return nil, derr
			}
		}
		if err != nil && len(s.queue) == 0 {
			return nil, err
		}
	}
}

func (s *socketConn) WriteFrame(payload []byte) error {
	return WriteFrame(s.conn, payload)
}

func (s *socketConn) Close() error {
	return s.conn.Close()
}
