package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stickyboard-server/internal/config"

	"go.uber.org/zap"
)

type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
	maxConnPerUser int
	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
	logger         *zap.Logger
}

// MessageHandler receives every decoded client message and is told when a
// client goes away.
type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
	HandleDisconnect(client *Client)
}

func NewManager(cfg config.WebSocketConfig, logger *zap.Logger) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		maxConnPerUser: cfg.MaxConnPerUser,
		maxMessageSize: cfg.MaxMessageSize,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		logger:         logger,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves registrations until ctx is done, then disconnects every client.
// Run must only be called once.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case <-ctx.Done():
			m.closeAll()
			return
		}
	}
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Register hands client to Run. It reports false when the manager has
// already stopped; the caller then owns the connection.
func (m *Manager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes client. After the manager stopped there is nothing left
// to remove and it returns at once.
func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		m.logger.Warn("max connections reached", zap.String("user_id", client.UserID))
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	m.logger.Info("client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID))
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	_, ok := m.clients[client.ID]
	if ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
	}
	m.clientsMutex.Unlock()

	if ok {
		if m.messageHandler != nil {
			m.messageHandler.HandleDisconnect(client)
		}
		m.logger.Info("client unregistered", zap.String("client_id", client.ID))
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMutex.Unlock()

	for _, c := range clients {
		m.unregisterClient(c)
	}
}

func (m *Manager) dispatch(client *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.logger.Debug("dropping malformed message", zap.String("client_id", client.ID), zap.Error(err))
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(client, &msg); err != nil {
			m.logger.Warn("error handling message",
				zap.String("client_id", client.ID),
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
		}
	}
}

// BroadcastToUser sends message to every connection of userID except
// excludeClientID. It never blocks: a client whose buffer is full is dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message, excludeClientID string) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for clientID := range m.userIndex[userID] {
		if clientID == excludeClientID {
			continue
		}
		m.trySend(m.clients[clientID], messageBytes)
	}

	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if client, exists := m.clients[clientID]; exists {
		m.trySend(client, messageBytes)
	}
	return nil
}

// trySend must be called with clientsMutex held.
func (m *Manager) trySend(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		m.logger.Warn("client send buffer full, closing connection", zap.String("client_id", client.ID))
		go m.Unregister(client)
	}
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.userIndex[userID])
}
