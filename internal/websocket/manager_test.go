package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"stickyboard-server/internal/config"
	"stickyboard-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu           sync.Mutex
	messages     []MessageType
	disconnected []string
}

func (h *recordingHandler) HandleWebSocketMessage(_ *Client, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg.Type)
	return nil
}

func (h *recordingHandler) HandleDisconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, client.ID)
}

func (h *recordingHandler) disconnects() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.disconnected...)
}

func startManager(t *testing.T, maxConn int) (*Manager, *recordingHandler, context.CancelFunc) {
	t.Helper()
	m := NewManager(config.WebSocketConfig{
		MaxConnPerUser: maxConn,
		WriteWait:      time.Second,
		PongWait:       time.Second,
		PingPeriod:     time.Second,
	}, zap.NewNop())
	h := &recordingHandler{}
	m.SetMessageHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(cancel)
	return m, h, cancel
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	return Message{}
}

func TestManagerBroadcastToUser(t *testing.T) {
	m, _, _ := startManager(t, 5)

	a := NewClient("a", "user-1", nil, m)
	b := NewClient("b", "user-1", nil, m)
	other := NewClient("c", "user-2", nil, m)
	require.True(t, m.Register(a))
	require.True(t, m.Register(b))
	require.True(t, m.Register(other))
	require.Eventually(t, func() bool { return m.GetUserConnections("user-1") == 2 }, time.Second, 5*time.Millisecond)

	msg, err := NewMessage(TypePong, nil)
	require.NoError(t, err)
	require.NoError(t, m.BroadcastToUser("user-1", msg, "a"))

	assert.Equal(t, TypePong, receive(t, b).Type)
	assert.Len(t, a.Send, 0)
	assert.Len(t, other.Send, 0)
}

func TestManagerEnforcesConnectionLimit(t *testing.T) {
	m, _, _ := startManager(t, 1)

	first := NewClient("first", "user-1", nil, m)
	second := NewClient("second", "user-1", nil, m)
	require.True(t, m.Register(first))
	require.True(t, m.Register(second))

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-second.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.GetUserConnections("user-1"))
}

func TestManagerUnregisterNotifiesHandler(t *testing.T) {
	m, h, cancel := startManager(t, 5)

	a := NewClient("a", "user-1", nil, m)
	b := NewClient("b", "user-2", nil, m)
	require.True(t, m.Register(a))
	require.True(t, m.Register(b))
	m.Unregister(a)
	m.Unregister(a)

	require.Eventually(t, func() bool { return len(h.disconnects()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.GetUserConnections("user-1"))

	cancel()
	require.Eventually(t, func() bool { return len(h.disconnects()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, h.disconnects())
}

func TestManagerStoppedDoesNotBlock(t *testing.T) {
	m, _, cancel := startManager(t, 5)

	a := NewClient("a", "user-1", nil, m)
	require.True(t, m.Register(a))
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}

	returned := make(chan bool, 1)
	go func() {
		m.Unregister(a)
		returned <- m.Register(NewClient("b", "user-1", nil, m))
	}()

	select {
	case registered := <-returned:
		assert.False(t, registered)
	case <-time.After(time.Second):
		t.Fatal("register after stop blocked")
	}
	assert.Zero(t, m.GetUserConnections("user-1"))
}

func TestManagerDispatch(t *testing.T) {
	m, h, _ := startManager(t, 5)
	c := NewClient("a", "user-1", nil, m)

	m.dispatch(c, []byte(`{"type":"pointer_down","payload":{"note_id":1,"x":2,"y":3}}`))
	m.dispatch(c, []byte(`not json`))

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []MessageType{TypePointerDown}, h.messages)
}

func TestBoardNotifier(t *testing.T) {
	m, _, _ := startManager(t, 5)
	c := NewClient("a", "user-1", nil, m)
	require.True(t, m.Register(c))
	require.Eventually(t, func() bool { return m.GetUserConnections("user-1") == 1 }, time.Second, 5*time.Millisecond)

	n := NewBoardNotifier(m)
	board := &domain.Board{ID: 7, Name: "Plans", Notes: []domain.Note{}}

	n.BoardSaved("user-1", board)
	msg := receive(t, c)
	assert.Equal(t, TypeBoardUpdate, msg.Type)
	var update BoardUpdatePayload
	require.NoError(t, msg.UnmarshalPayload(&update))
	assert.Equal(t, board, update.Board)

	n.BoardsChanged("user-1", []*domain.Board{board}, 7)
	msg = receive(t, c)
	assert.Equal(t, TypeBoardList, msg.Type)
	var list BoardListPayload
	require.NoError(t, msg.UnmarshalPayload(&list))
	assert.Equal(t, int64(7), list.CurrentBoardID)
	assert.Len(t, list.Boards, 1)

	n.BoardSaved("nobody", board)
	assert.Len(t, c.Send, 0)
}
