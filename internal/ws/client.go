package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Connection states. Transitions happen only on the connection's own read
// goroutine: CONNECTING -> IDENTIFIED -> ACTIVE -> CLOSED. Message frames
// are rejected until the connection has identified itself.
type State int

const (
	StateConnecting State = iota
	StateIdentified
	StateActive
	StateClosed
)

// FrameHandler reacts to parsed inbound frames from one connection. The
// chat service implements it.
type FrameHandler interface {
	HandleCustomerConnect(c *Client, data CustomerConnectData)
	HandleAgentConnect(c *Client, data AgentConnectData)
	HandleChatMessage(c *Client, data ChatMessageData)
	HandleEndChat(c *Client, data EndChatData)
	ConnectionClosed(c *Client)
}

// Client is a single websocket connection from a customer or an agent.
type Client struct {
	id      string
	role    Role
	conn    *websocket.Conn
	send    chan []byte
	handler FrameHandler
	log     *slog.Logger

	state State

	mu         sync.Mutex
	closed     bool
	sessionID  string
	customerID string
	agentID    string
	agentName  string
}

func newClient(role Role, conn *websocket.Conn, handler FrameHandler, log *slog.Logger) *Client {
	return &Client{
		id:      uuid.New().String(),
		role:    role,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		handler: handler,
		log:     log,
		state:   StateConnecting,
	}
}

// ID returns the physical connection id.
func (c *Client) ID() string { return c.id }

// Role returns the connection role chosen at upgrade time.
func (c *Client) Role() Role { return c.role }

// Send enqueues an outbound frame without blocking. It reports false when
// the connection is closed or its buffer is full.
func (c *Client) Send(data []byte) bool {
	if data == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// BindSession records the logical session this connection serves.
func (c *Client) BindSession(sessionID, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.customerID = customerID
}

// BindAgent records the agent identity behind this connection.
func (c *Client) BindAgent(agentID, agentName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentID = agentID
	c.agentName = agentName
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) CustomerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customerID
}

func (c *Client) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

func (c *Client) AgentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentName
}

// readPump pumps frames from the websocket to the handler. It owns the
// connection state machine and runs until the transport closes or the
// client sends DISCONNECT.
func (c *Client) readPump() {
	defer func() {
		c.state = StateClosed
		c.handler.ConnectionClosed(c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read", slog.String("conn", c.id), slog.String("error", err.Error()))
			}
			return
		}
		if !c.dispatch(raw) {
			return
		}
	}
}

// dispatch parses one inbound frame and routes it. Protocol errors answer
// with an ERROR frame and keep the connection open; only DISCONNECT stops
// the pump.
func (c *Client) dispatch(raw []byte) bool {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.Send(ErrorFrame("malformed frame"))
		return true
	}

	switch frame.Type {
	case FrameCustomerConnect:
		var data CustomerConnectData
		if err := decodeData(frame.Data, &data); err != nil {
			c.Send(ErrorFrame(err.Error()))
			return true
		}
		c.state = StateIdentified
		c.handler.HandleCustomerConnect(c, data)
		c.state = StateActive

	case FrameAgentConnect:
		var data AgentConnectData
		if err := decodeData(frame.Data, &data); err != nil {
			c.Send(ErrorFrame(err.Error()))
			return true
		}
		c.state = StateIdentified
		c.handler.HandleAgentConnect(c, data)
		c.state = StateActive

	case FrameChatMessage:
		if c.state == StateConnecting {
			c.Send(ErrorFrame("identify with CUSTOMER_CONNECT or AGENT_CONNECT first"))
			return true
		}
		var data ChatMessageData
		if err := decodeData(frame.Data, &data); err != nil {
			c.Send(ErrorFrame(err.Error()))
			return true
		}
		c.handler.HandleChatMessage(c, data)

	case FrameEndChat:
		if c.state == StateConnecting {
			c.Send(ErrorFrame("identify with CUSTOMER_CONNECT or AGENT_CONNECT first"))
			return true
		}
		var data EndChatData
		if err := decodeData(frame.Data, &data); err != nil {
			c.Send(ErrorFrame(err.Error()))
			return true
		}
		c.handler.HandleEndChat(c, data)

	case FrameDisconnect:
		return false

	default:
		c.Send(ErrorFrame("unknown frame type: " + frame.Type))
	}

	return true
}

// writePump pumps outbound frames to the websocket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authenticator validates a token and returns the username behind it.
type Authenticator interface {
	ValidateToken(token string) (string, error)
}

// ServeCustomer upgrades a customer connection. Customers may be anonymous,
// so no token is required; identity arrives with the CUSTOMER_CONNECT frame.
func ServeCustomer(handler FrameHandler, log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(RoleCustomer, conn, handler, log)

	go client.writePump()
	go client.readPump()
}

// ServeAgent upgrades an agent connection. Agents authenticate with a token
// passed as a query param; the roster binding still waits for AGENT_CONNECT.
func ServeAgent(auth Authenticator, handler FrameHandler, log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := auth.ValidateToken(token); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(RoleAgent, conn, handler, log)

	go client.writePump()
	go client.readPump()
}
