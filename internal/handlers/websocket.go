package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/services"
	"sports-buddy-backend/internal/session"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsRequestTimeout = 10 * time.Second

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub         *services.WSHub
	authService *services.AuthService
	resolver    middleware.SessionResolver
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. checkOrigin decides
// which browser origins may connect.
func NewWebSocketHandler(
	hub *services.WSHub,
	authService *services.AuthService,
	resolver middleware.SessionResolver,
	checkOrigin func(r *http.Request) bool,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		resolver:    resolver,
		upgrader:    websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// HandleWebSocket handles GET /ws. A token query parameter signs the
// connection in immediately; otherwise it starts anonymous.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := session.Anonymous()
	if token := r.URL.Query().Get("token"); token != "" {
		resolved, err := h.signIn(r.Context(), token)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		sess = resolved
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(conn, sess)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.hub.SendSession(ctx, client); err != nil {
		return
	}
	if err := h.hub.SendFeed(client); err != nil {
		return
	}

	log.Info().Str("client_id", client.ID).Str("user_id", sess.UserID()).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("client_id", client.ID).Msg("Failed to parse WebSocket message")
			h.hub.Send(client, services.WSMessage{Type: services.MsgError, Message: "Invalid message format"})
			continue
		}

		h.dispatch(ctx, client, msg)
	}
}

// dispatch handles one client message. A panic is reported to the client as
// the generic notice and never ends the connection.
func (h *WebSocketHandler) dispatch(ctx context.Context, client *services.WSClient, msg services.WSMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("client_id", client.ID).Str("type", msg.Type).Msg("Recovered from panic")
			notice := services.GenericNotice
			h.hub.Send(client, services.WSMessage{Type: services.MsgError, Message: notice.Message, Notice: &notice})
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, wsRequestTimeout)
	defer cancel()

	if err := h.handleMessage(reqCtx, client, msg); err != nil {
		log.Warn().Err(err).Str("client_id", client.ID).Str("type", msg.Type).Msg("Failed to handle message")
		h.hub.SendError(client, err)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, client *services.WSClient, msg services.WSMessage) error {
	switch msg.Type {
	case services.MsgAuth:
		return h.handleAuth(ctx, client, msg.Token)
	case services.MsgSignOut:
		return h.handleSignOut(ctx, client)
	case services.MsgSetFilter:
		_, f := h.hub.State(client)
		if msg.Sport != "" {
			f = f.WithSport(msg.Sport)
		}
		if msg.Skill != "" {
			f = f.WithSkill(msg.Skill)
		}
		if msg.Query != nil {
			f = f.WithQuery(*msg.Query)
		}
		h.hub.SetFilter(client, f)
		return h.hub.SendFeed(client)
	case services.MsgClearFilters:
		_, f := h.hub.State(client)
		h.hub.SetFilter(client, f.Reset())
		return h.hub.SendFeed(client)
	case services.MsgSync:
		return h.hub.SendFeed(client)
	default:
		return h.hub.Send(client, services.WSMessage{Type: services.MsgError, Message: "Unknown message type"})
	}
}

func (h *WebSocketHandler) handleAuth(ctx context.Context, client *services.WSClient, token string) error {
	sess, err := h.signIn(ctx, token)
	if err != nil {
		h.hub.SetSession(client, session.Anonymous())
		h.hub.SendSession(ctx, client)
		h.hub.SendFeed(client)
		return err
	}

	h.hub.SetSession(client, sess)
	log.Info().Str("client_id", client.ID).Str("user_id", sess.UserID()).Msg("WebSocket client signed in")

	if err := h.hub.SendSession(ctx, client); err != nil {
		return err
	}
	return h.hub.SendFeed(client)
}

func (h *WebSocketHandler) handleSignOut(ctx context.Context, client *services.WSClient) error {
	sess, _ := h.hub.State(client)
	if sess.Authenticated() {
		if err := h.authService.SignOut(ctx, sess.UserID()); err != nil {
			return err
		}
		// Revoke already reset this socket along with the user's others
		if now, _ := h.hub.State(client); !now.Authenticated() {
			return nil
		}
	}

	h.hub.SetSession(client, session.Anonymous())
	if err := h.hub.SendSession(ctx, client); err != nil {
		return err
	}
	return h.hub.SendFeed(client)
}

func (h *WebSocketHandler) signIn(ctx context.Context, token string) (session.State, error) {
	if token == "" {
		return session.Anonymous(), services.ErrSignInRequired
	}
	id, err := h.authService.ValidateToken(ctx, token)
	if err != nil {
		return session.Anonymous(), err
	}
	return h.resolver.Resolve(ctx, id)
}
