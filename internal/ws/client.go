package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
	"agency-chat-client/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// reconnectDelays is the hub's backoff schedule: an immediate retry, then
// increasing waits. Once exhausted the last delay repeats.
var reconnectDelays = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}

var (
	// ErrNotConnected is returned when an invoke is attempted with the
	// connection down.
	ErrNotConnected = errors.New("hub connection is down")
	// ErrNotJoined is returned when a send targets a room that was never
	// joined. Sending before join is a caller bug, not a transient state.
	ErrNotJoined = errors.New("room not joined")
)

// Client maintains the single persistent hub connection. Rooms are
// subscriptions on this one connection; every room in the set is re-joined
// after a reconnect because membership does not survive one.
type Client struct {
	url    string
	userID string
	token  func() string
	log    *zap.Logger
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	joined      map[string]bool
	connID      string
	connectedAt time.Time

	onMessage func(models.MessagePayload)
	onAck     func(models.Ack)
	onStatus  func(bool)

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewClient builds a hub client. token is a factory so reconnects pick up
// a refreshed bearer token.
func NewClient(url, userID string, token func() string, log *zap.Logger) *Client {
	return &Client{
		url:    url,
		userID: userID,
		token:  token,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		joined: make(map[string]bool),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnMessage installs the push-message callback. Set before Run.
func (c *Client) OnMessage(fn func(models.MessagePayload)) { c.onMessage = fn }

// OnAck installs the send-ack callback. Set before Run.
func (c *Client) OnAck(fn func(models.Ack)) { c.onAck = fn }

// OnStatusChange installs the connectivity callback. Set before Run.
func (c *Client) OnStatusChange(fn func(bool)) { c.onStatus = fn }

// Run drives the connect/read/reconnect loop until Close is called.
func (c *Client) Run() {
	defer close(c.done)

	attempt := 0
	for {
		if !c.wait(delayFor(attempt)) {
			return
		}

		conn, err := c.dial()
		if err != nil {
			c.log.Warn("hub dial failed", zap.Int("attempt", attempt), zap.Error(err))
			observability.IncHubEvent("dial_error")
			attempt++
			continue
		}
		attempt = 0

		c.attach(conn)
		reason := c.readLoop(conn)
		c.detach(conn, reason)

		select {
		case <-c.stop:
			return
		default:
		}
	}
}

// Close tears the connection down and stops the reconnect loop. Call only
// after Run has been started.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
		<-c.done
	})
}

// Connected reports whether the hub connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Joined reports whether the room is in the subscription set.
func (c *Client) Joined(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[roomID]
}

// Join subscribes to a room. The join is invoked on the wire immediately
// when connected, and again after every reconnect.
func (c *Client) Join(roomID string) error {
	c.mu.Lock()
	c.joined[roomID] = true
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.write(models.ClientCommand{Type: models.CommandJoin, RoomID: roomID})
}

// Leave removes the room from the subscription set.
func (c *Client) Leave(roomID string) error {
	c.mu.Lock()
	delete(c.joined, roomID)
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.write(models.ClientCommand{Type: models.CommandLeave, RoomID: roomID})
}

// Send invokes the hub's send operation for a joined room.
func (c *Client) Send(roomID, clientID, text string, fileURLs, publicIDs []string) error {
	c.mu.Lock()
	joined := c.joined[roomID]
	connected := c.connected
	c.mu.Unlock()

	if !joined {
		return ErrNotJoined
	}
	if !connected {
		return ErrNotConnected
	}

	err := c.write(models.ClientCommand{
		Type:      models.CommandSend,
		RoomID:    roomID,
		ClientID:  clientID,
		SenderID:  c.userID,
		Text:      text,
		FileURLs:  fileURLs,
		PublicIDs: publicIDs,
	})
	if err == nil {
		observability.IncMessage("sent")
	}
	return err
}

func (c *Client) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.Dial(c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.connID = newConnID()
	c.connectedAt = time.Now()
	rooms := make([]string, 0, len(c.joined))
	for roomID := range c.joined {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()

	observability.SetHubConnected(true)
	observability.IncHubEvent("ws_connect")
	c.publishEvent("ws_connect", "")
	if c.onStatus != nil {
		c.onStatus(true)
	}

	// Membership is not assumed to survive a reconnect.
	for _, roomID := range rooms {
		if err := c.write(models.ClientCommand{Type: models.CommandJoin, RoomID: roomID}); err != nil {
			c.log.Warn("rejoin failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	go c.pingLoop(conn)
}

func (c *Client) detach(conn *websocket.Conn, reason string) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()

	observability.SetHubConnected(false)
	observability.IncHubEvent("ws_disconnect")
	c.publishEvent("ws_disconnect", reason)
	if c.onStatus != nil {
		c.onStatus(false)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) string {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncHubEvent("ws_error")
				c.publishEvent("ws_error", err.Error())
			}
			return err.Error()
		}

		var event models.ChatEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Warn("malformed hub event", zap.Error(err))
			continue
		}

		switch event.Type {
		case models.EventMessage:
			if event.Message != nil && c.onMessage != nil {
				observability.IncMessage("received")
				c.onMessage(*event.Message)
			}
		case models.EventAck:
			if event.Ack != nil && c.onAck != nil {
				c.onAck(*event.Ack)
			}
		default:
			c.log.Debug("unknown hub event", zap.String("type", event.Type))
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) write(cmd models.ClientCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(cmd)
}

func (c *Client) publishEvent(event, reason string) {
	c.mu.Lock()
	connID := c.connID
	duration := time.Since(c.connectedAt).Milliseconds()
	c.mu.Unlock()

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     connID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": c.userID,
		},
	}

	_ = observability.PublishEvent(context.Background(), "ws_events.client", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, nil)
}

// wait sleeps for d, returning false once the client is closed.
func (c *Client) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-c.stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.stop:
		return false
	case <-timer.C:
		return true
	}
}

func delayFor(attempt int) time.Duration {
	if attempt >= len(reconnectDelays) {
		return reconnectDelays[len(reconnectDelays)-1]
	}
	return reconnectDelays[attempt]
}
