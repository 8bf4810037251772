package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/counsel/counsel/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// Authorizer decides whether a principal may listen on a topic.
type Authorizer interface {
	CanSubscribe(ctx context.Context, p auth.Principal, topic string) (bool, error)
}

// Handler upgrades authenticated requests on GET /ws and routes inbound
// subscribe messages through the Authorizer.
type Handler struct {
	hub      *Hub
	authz    Authorizer
	logger   zerolog.Logger
	upgrader gorillawebsocket.Upgrader
}

// NewHandler builds a handler accepting upgrades from allowedOrigins. An
// empty list accepts any origin.
func NewHandler(hub *Hub, authz Authorizer, allowedOrigins []string, logger zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:    hub,
		authz:  authz,
		logger: logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect, auth.RequireAuth())
}

// HandleConnect upgrades the connection and subscribes the client to any
// topics passed as ?topic= parameters it is allowed to see.
func (h *Handler) HandleConnect(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	initial := c.QueryParams()["topic"]

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: p.UserID.String(),
		Send:   make(chan []byte, 256),
	}
	h.hub.Register(client)
	h.subscribe(client, p, initial)

	go h.writePump(client, ws)
	go h.readPump(client, p, ws)
	return nil
}

func (h *Handler) subscribe(client *Client, p auth.Principal, topics []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	allowed := make([]string, 0, len(topics))
	for _, topic := range topics {
		ok, err := h.authz.CanSubscribe(ctx, p, topic)
		if err != nil {
			h.logger.Error().Err(err).Str("topic", topic).Msg("websocket authorization failed")
			continue
		}
		if ok {
			allowed = append(allowed, topic)
		}
	}
	h.hub.Subscribe(client, allowed)
}

// process applies one inbound message. Malformed input is ignored.
func (h *Handler) process(client *Client, p auth.Principal, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	switch msg.Action {
	case "subscribe":
		h.subscribe(client, p, msg.Topics)
	case "unsubscribe":
		h.hub.Unsubscribe(client, msg.Topics)
	}
}

func (h *Handler) readPump(client *Client, p auth.Principal, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessage)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.process(client, p, message)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
