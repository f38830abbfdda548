package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sports-buddy-backend/internal/feed"
	"sports-buddy-backend/internal/filter"
	"sports-buddy-backend/internal/metrics"
	"sports-buddy-backend/internal/session"
	"sports-buddy-backend/internal/view"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	statsTimeout = 5 * time.Second
)

// WebSocket message types
const (
	MsgAuth         = "auth"
	MsgSignOut      = "sign_out"
	MsgSetFilter    = "set_filter"
	MsgClearFilters = "clear_filters"
	MsgSync         = "sync"

	MsgSession    = "session"
	MsgFeed       = "feed"
	MsgAdminStats = "admin_stats"
	MsgNotice     = "notice"
	MsgError      = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Token   string      `json:"token,omitempty"`
	Sport   string      `json:"sport,omitempty"`
	Skill   string      `json:"skill,omitempty"`
	Query   *string     `json:"query,omitempty"`
	Message string      `json:"message,omitempty"`
	Notice  *Notice     `json:"notice,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WSClient is one open connection and the view state of its user
type WSClient struct {
	ID   string
	conn *websocket.Conn

	writeMu sync.Mutex

	// guarded by the hub's mutex and replaced, never mutated
	session session.State
	filter  filter.State
}

// WSHub tracks connections and pushes a personalised feed to each of them
// whenever the listing collection changes
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient

	listings *ListingService
	admin    *AdminService
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(listings *ListingService, admin *AdminService) *WSHub {
	return &WSHub{
		clients:  make(map[string]*WSClient),
		listings: listings,
		admin:    admin,
	}
}

// Register adds a connection. It starts anonymous with the default filter.
func (h *WSHub) Register(conn *websocket.Conn, sess session.State) *WSClient {
	c := &WSClient{
		ID:      uuid.New().String(),
		conn:    conn,
		session: sess,
		filter:  filter.Default(),
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.WSConnections.Inc()

	log.Info().Str("client_id", c.ID).Str("user_id", sess.UserID()).Msg("WebSocket connection registered")
	return c
}

// Unregister removes and closes a connection
func (h *WSHub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, exists := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if !exists {
		return
	}
	metrics.WSConnections.Dec()
	c.conn.Close()
	log.Info().Str("client_id", c.ID).Msg("WebSocket connection unregistered")
}

// Count returns the number of open connections
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// State returns the client's current session and filter
func (h *WSHub) State(c *WSClient) (session.State, filter.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.session, c.filter
}

// SetSession replaces the client's session
func (h *WSHub) SetSession(c *WSClient, sess session.State) {
	h.mu.Lock()
	c.session = sess
	h.mu.Unlock()
}

// SetFilter replaces the client's filter
func (h *WSHub) SetFilter(c *WSClient, f filter.State) {
	h.mu.Lock()
	c.filter = f
	h.mu.Unlock()
}

func (h *WSHub) snapshotClients() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*WSClient, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Send writes one message to the client. A failed write drops the connection.
func (h *WSHub) Send(c *WSClient, message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		h.Unregister(c)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendFeed renders the cached listings for the client's session and filter
func (h *WSHub) SendFeed(c *WSClient) error {
	sess, f := h.State(c)
	return h.Send(c, WSMessage{Type: MsgFeed, Data: h.listings.Feed(sess, f)})
}

// SendSession tells the client who it is signed in as. Admins also get the
// current statistics.
func (h *WSHub) SendSession(ctx context.Context, c *WSClient) error {
	sess, _ := h.State(c)
	if err := h.Send(c, WSMessage{Type: MsgSession, Data: view.NewSession(sess)}); err != nil {
		return err
	}
	if sess.IsAdmin() {
		return h.SendAdminStats(ctx, c)
	}
	return nil
}

// SendAdminStats computes and sends the admin counters
func (h *WSHub) SendAdminStats(ctx context.Context, c *WSClient) error {
	sess, _ := h.State(c)
	stats, err := h.admin.Stats(ctx, sess)
	if err != nil {
		return h.SendNotice(c, NoticeFor(err))
	}
	return h.Send(c, WSMessage{Type: MsgAdminStats, Data: stats})
}

// SendNotice sends a user-facing notice
func (h *WSHub) SendNotice(c *WSClient, notice Notice) error {
	return h.Send(c, WSMessage{Type: MsgNotice, Notice: &notice})
}

// SendError reports a failed client message
func (h *WSHub) SendError(c *WSClient, err error) error {
	notice := NoticeFor(err)
	return h.Send(c, WSMessage{Type: MsgError, Message: notice.Message, Notice: &notice})
}

// OnSnapshot pushes the new feed to every connection
func (h *WSHub) OnSnapshot(snap feed.Snapshot) {
	for _, c := range h.snapshotClients() {
		h.deliver(c, func() error {
			if err := h.SendFeed(c); err != nil {
				return err
			}
			sess, _ := h.State(c)
			if !sess.IsAdmin() {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
			defer cancel()
			return h.SendAdminStats(ctx, c)
		})
	}
}

// Revoke signs every connection of userID out. It runs after the user's
// tokens were invalidated, so no socket keeps a session the REST API refuses.
func (h *WSHub) Revoke(userID string) {
	for _, c := range h.snapshotClients() {
		h.mu.Lock()
		match := c.session.UserID() == userID
		if match {
			c.session = session.Anonymous()
		}
		h.mu.Unlock()
		if !match {
			continue
		}

		log.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("WebSocket session revoked")
		h.deliver(c, func() error {
			if err := h.SendSession(context.Background(), c); err != nil {
				return err
			}
			return h.SendFeed(c)
		})
	}
}

// OnError tells every connection that live updates stopped
func (h *WSHub) OnError(err error) {
	notice := Notice{
		Title:   "Connection Lost",
		Message: "Live updates stopped. Refresh to reconnect",
		Tone:    ToneError,
	}
	for _, c := range h.snapshotClients() {
		h.deliver(c, func() error {
			return h.Send(c, WSMessage{Type: MsgError, Message: notice.Message, Notice: &notice})
		})
	}
}

// deliver runs one send and keeps a failure from reaching other clients
func (h *WSHub) deliver(c *WSClient, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("client_id", c.ID).Msg("WebSocket delivery panicked")
		}
	}()
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("client_id", c.ID).Msg("Failed to push feed")
	}
}

// CloseAll closes every connection, used at shutdown
func (h *WSHub) CloseAll() {
	for _, c := range h.snapshotClients() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		h.Unregister(c)
	}
}
