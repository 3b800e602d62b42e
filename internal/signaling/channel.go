package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duet/internal/protocol"
	"github.com/1ureka/duet/internal/util"
)

const wsWriteWait = 5 * time.Second

// State is the lifecycle state of a Channel.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Channel is the persistent connection to the relay. Sends issued while the
// channel is not open are queued and written, in order, as soon as it opens.
// The queue survives closes; the channel never reconnects on its own.
type Channel struct {
	url    string
	dialer *websocket.Dialer

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	queue    outboundQueue
	identity string
	cancel   context.CancelFunc

	onMessage func(protocol.Message)
	onOpen    func()
	onClose   func(error)
}

// NewChannel creates a closed Channel for the given relay URL.
func NewChannel(url string) *Channel {
	return &Channel{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

// OnMessage registers the callback invoked once per decoded message, in
// arrival order, from the channel's read goroutine.
func (c *Channel) OnMessage(fn func(protocol.Message)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnOpen registers the callback invoked after the channel opened and the
// outbound queue was flushed.
func (c *Channel) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	c.mu.Unlock()
}

// OnClose registers the callback invoked when a connect attempt fails or an
// open connection ends. err describes the cause.
func (c *Channel) OnClose(fn func(error)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// URL returns the relay address.
func (c *Channel) URL() string {
	return c.url
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the identity assigned by the relay on the current
// connection, or "" if none has been assigned.
func (c *Channel) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Pending returns the number of queued outbound messages.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Connect starts connecting in the background and returns immediately. It is
// a no-op unless the channel is closed. Cancelling ctx, or calling Close,
// ends the attempt or the connection it produced.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.state = StateConnecting
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Send writes msg if the channel is open and queues it otherwise. It never
// reports an error to the caller.
func (c *Channel) Send(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		util.LogError("failed to encode %s message: %v", msg.Kind(), err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		c.queue.push(data)
		util.Stats.AddDeferred()
		util.LogDebug("relay not open, deferred %s message (%d pending)", msg.Kind(), c.queue.len())
		return
	}

	if err := c.write(data); err != nil {
		// The read goroutine observes the closed connection and reports it.
		c.queue.push(data)
		c.state = StateClosed
		c.conn.Close()
		c.conn = nil
		c.identity = ""
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		util.LogWarning("failed to send %s message, deferred: %v", msg.Kind(), err)
	}
}

// Close ends the current connection, or abandons a connect in progress.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.cancel = nil
	if conn == nil && cancel != nil {
		// run checks the context under c.mu before opening.
		cancel()
		cancel = nil
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	if cancel != nil {
		cancel()
	}
	return conn.Close()
}

// write sends one serialized message. Callers hold c.mu.
func (c *Channel) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	util.Stats.AddSent()
	return nil
}

// run dials the relay, flushes the queue, then reads until the connection ends.
func (c *Channel) run(ctx context.Context) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			// Closed by the caller while dialing.
			err = nil
		} else {
			err = fmt.Errorf("failed to connect to relay: %w", err)
		}
		c.closed(nil, err)
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		c.closed(nil, nil)
		return
	}
	c.conn = conn
	c.state = StateOpen
	n, err := c.queue.drain(c.write)
	onOpen := c.onOpen
	c.mu.Unlock()

	if err != nil {
		c.closed(conn, fmt.Errorf("failed to flush queued messages: %w", err))
		return
	}
	if n > 0 {
		util.LogDebug("flushed %d queued messages to relay", n)
	}

	if onOpen != nil {
		onOpen()
	}

	c.closed(conn, c.readLoop(conn))
}

// readLoop decodes inbound messages until the connection fails.
func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		util.Stats.AddRecv()

		msg, err := protocol.Decode(data)
		if errors.Is(err, protocol.ErrEmptyCandidate) {
			continue
		}
		if err != nil {
			util.LogWarning("dropping malformed relay message: %v", err)
			continue
		}

		c.mu.Lock()
		if id, ok := msg.(protocol.Identity); ok {
			if c.identity != "" && c.identity != id.ID {
				util.LogWarning("relay reassigned identity %s -> %s", c.identity, id.ID)
			}
			c.identity = id.ID
		}
		onMessage := c.onMessage
		c.mu.Unlock()

		if onMessage != nil {
			onMessage(msg)
		}
	}
}

// closed transitions to StateClosed and reports err. conn is the connection
// that ended, or nil when the attempt never opened. A connection that was
// already dropped by a failed Send only reports.
func (c *Channel) closed(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if conn == nil || c.conn == conn {
		c.conn = nil
		c.state = StateClosed
		c.identity = ""
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	onClose := c.onClose
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	}
	if onClose != nil {
		onClose(err)
	}
}
