package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"stickyboard-server/internal/config"
	"stickyboard-server/internal/drag"
	"stickyboard-server/internal/middleware"
	"stickyboard-server/internal/repository"
	"stickyboard-server/internal/store"
	"stickyboard-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	sessions Sessions
	auth     middleware.Authenticator
	upgrader ws.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, sessions Sessions, auth middleware.Authenticator, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		sessions: sessions,
		auth:     auth,
		upgrader: ws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated request and starts the client
// with the user's current board list.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := middleware.RequestToken(r)
	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.Authenticate(r.Context(), token)
	if errors.Is(err, repository.ErrStoreUnavailable) {
		h.logger.Warn("websocket session check failed", zap.Error(err))
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.Debug("websocket token rejected", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, conn, h.manager)

	// Queued before registration: a rejected client has its Send closed.
	if first := h.initialMessage(r.Context(), userID); first != nil {
		client.Send <- first
	}

	if !h.manager.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) initialMessage(ctx context.Context, userID string) []byte {
	var msg *websocket.Message
	st, err := h.sessions.Store(ctx, userID)
	if err != nil {
		h.logger.Warn("board load for websocket failed", zap.String("user_id", userID), zap.Error(err))
		msg, err = websocket.NewMessage(websocket.TypeError, errorPayload(err))
	} else {
		snap := st.Snapshot()
		msg, err = websocket.NewMessage(websocket.TypeBoardList, &websocket.BoardListPayload{
			Boards:         snap.Boards,
			CurrentBoardID: snap.CurrentBoardID,
		})
	}
	if err != nil {
		return nil
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return raw
}

// WebSocketMessageHandler drives one drag machine per client pointer.
type WebSocketMessageHandler struct {
	sessions Sessions
	manager  *websocket.Manager
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	pointers map[pointerKey]*drag.Machine
}

type pointerKey struct {
	clientID  string
	pointerID string
}

func NewWebSocketMessageHandler(sessions Sessions, manager *websocket.Manager, timeout time.Duration, logger *zap.Logger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		sessions: sessions,
		manager:  manager,
		timeout:  timeout,
		logger:   logger,
		pointers: make(map[pointerKey]*drag.Machine),
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		return h.send(client, websocket.TypePong, nil)

	case websocket.TypePointerDown, websocket.TypePointerMove, websocket.TypePointerUp, websocket.TypePointerLeave:
		var payload websocket.PointerPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return h.send(client, websocket.TypeError, &websocket.ErrorPayload{Code: "bad_payload", Message: err.Error()})
		}
		return h.handlePointer(client, msg.Type, payload)

	default:
		h.logger.Debug("unknown message type", zap.String("type", string(msg.Type)))
	}

	return nil
}

// HandleDisconnect drops every drag the client's pointers had in progress.
func (h *WebSocketMessageHandler) HandleDisconnect(client *websocket.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.pointers {
		if key.clientID == client.ID {
			delete(h.pointers, key)
		}
	}
}

func (h *WebSocketMessageHandler) handlePointer(client *websocket.Client, typ websocket.MessageType, p websocket.PointerPayload) error {
	key := pointerKey{clientID: client.ID, pointerID: p.PointerID}

	switch typ {
	case websocket.TypePointerUp, websocket.TypePointerLeave:
		if m := h.release(key); m != nil {
			if typ == websocket.TypePointerUp {
				m.PointerUp()
			} else {
				m.PointerLeave()
			}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	st, err := h.sessions.Store(ctx, client.UserID)
	if err != nil {
		return h.sendError(client, err)
	}

	if typ == websocket.TypePointerDown {
		if err := h.machine(key).PointerDown(st, p.NoteID, p.Position()); err != nil {
			if errors.Is(err, drag.ErrNoteNotFound) {
				h.release(key)
			}
			return h.sendError(client, err)
		}
		return nil
	}

	m := h.existing(key)
	if m == nil {
		return nil
	}
	note, err := m.PointerMove(ctx, st, p.Position())
	if err != nil {
		if m.State() == drag.Idle {
			h.release(key)
		}
		return h.sendError(client, err)
	}
	if note == nil {
		return nil
	}
	return h.send(client, websocket.TypeNotePosition, &websocket.NotePositionPayload{
		PointerID: p.PointerID,
		NoteID:    note.ID,
		Position:  note.Position,
	})
}

func (h *WebSocketMessageHandler) machine(key pointerKey) *drag.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.pointers[key]
	if !ok {
		m = drag.New()
		h.pointers[key] = m
	}
	return m
}

func (h *WebSocketMessageHandler) existing(key pointerKey) *drag.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pointers[key]
}

func (h *WebSocketMessageHandler) release(key pointerKey) *drag.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.pointers[key]
	delete(h.pointers, key)
	return m
}

// Dragging reports how many pointers of the client are mid-drag.
func (h *WebSocketMessageHandler) Dragging(clientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for key, m := range h.pointers {
		if key.clientID == clientID && m.State() == drag.Dragging {
			n++
		}
	}
	return n
}

func (h *WebSocketMessageHandler) sendError(client *websocket.Client, err error) error {
	payload := errorPayload(err)
	if payload.Code == "internal" {
		h.logger.Error("pointer event failed", zap.String("client_id", client.ID), zap.Error(err))
	}
	return h.send(client, websocket.TypeError, payload)
}

func (h *WebSocketMessageHandler) send(client *websocket.Client, typ websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client.ID, msg)
}

func errorPayload(err error) *websocket.ErrorPayload {
	code := "internal"
	switch {
	case errors.Is(err, store.ErrNotSignedIn):
		code = "not_signed_in"
	case errors.Is(err, store.ErrNoBoardSelected):
		code = "no_board_selected"
	case errors.Is(err, drag.ErrNoteNotFound), errors.Is(err, store.ErrNoteNotFound):
		code = "note_not_found"
	case errors.Is(err, drag.ErrAlreadyDragging):
		code = "already_dragging"
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, repository.ErrRevisionRace):
		code = "store_unavailable"
	}
	return &websocket.ErrorPayload{Code: code, Message: err.Error()}
}
