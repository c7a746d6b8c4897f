package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hotride/internal/account"
	"hotride/internal/auth"
)

const eventSessionRevoked = "session_revoked"

type sessionEvent struct {
	Event string `json:"event"`
}

// EventsHandler pushes session lifecycle events to connected clients over a
// websocket, so a logout or password reset elsewhere reaches the device
// without polling. Missing a push is harmless: the next API call fails with
// SESSION_EXPIRED anyway.
type EventsHandler struct {
	tokens   *auth.TokenService
	accounts *account.Service
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewEventsHandler(tokens *auth.TokenService, accounts *account.Service) *EventsHandler {
	return &EventsHandler{
		tokens:   tokens,
		accounts: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// GET /api/v1/auth/events
// The token travels as a query parameter because mobile websocket clients
// cannot reliably set request headers.
func (h *EventsHandler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = header[len("bearer "):]
		}
	}
	if token == "" {
		unauthorized(w, "Token required")
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		unauthorized(w, "Invalid or expired token")
		return
	}
	acct, err := h.accounts.CheckSession(claims.Subject, claims.SessionVersion)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.register(acct.ID, conn)
	defer h.unregister(acct.ID, conn)

	// Clients never send application messages; the read loop only notices
	// disconnects.
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SessionRevoked implements account.RevocationNotifier.
func (h *EventsHandler) SessionRevoked(accountID string) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns[accountID]))
	for conn := range h.conns[accountID] {
		conns = append(conns, conn)
	}
	delete(h.conns, accountID)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(sessionEvent{Event: eventSessionRevoked}); err != nil {
			slog.Warn("failed to push session revocation", "error", err)
		}
		conn.Close()
	}
}

func (h *EventsHandler) register(accountID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[accountID] == nil {
		h.conns[accountID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[accountID][conn] = struct{}{}
}

func (h *EventsHandler) unregister(accountID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[accountID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, accountID)
		}
	}
	conn.Close()
}
