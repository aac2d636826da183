package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"stickyboard-server/internal/config"
	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/repository"
	"stickyboard-server/internal/service"
	"stickyboard-server/internal/session"
	"stickyboard-server/internal/websocket"
	"stickyboard-server/pkg/jwt"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type memBoardRepo struct {
	mu     sync.Mutex
	docs   map[string]map[int64]*domain.Board
	merges int
	fail   error
}

func newMemBoardRepo() *memBoardRepo {
	return &memBoardRepo{docs: make(map[string]map[int64]*domain.Board)}
}

func (r *memBoardRepo) List(_ context.Context, userID string) ([]*domain.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	out := []*domain.Board{}
	for _, b := range r.docs[userID] {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBoardRepo) Put(_ context.Context, userID string, board *domain.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.docs[userID] == nil {
		r.docs[userID] = make(map[int64]*domain.Board)
	}
	r.docs[userID][board.ID] = board.Clone()
	return nil
}

func (r *memBoardRepo) Merge(_ context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	b, ok := r.docs[userID][boardID]
	if !ok {
		return repository.ErrBoardNotFound
	}
	if name, ok := fields["name"].(string); ok {
		b.Name = name
	}
	r.merges++
	return nil
}

func (r *memBoardRepo) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *memBoardRepo) board(userID string, id int64) *domain.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[userID][id].Clone()
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memUserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *memUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *memUserRepo) Update(ctx context.Context, user *domain.User) error {
	return m.Create(ctx, user)
}

func (m *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

type testServer struct {
	handler  http.Handler
	boards   *memBoardRepo
	users    *memUserRepo
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	boards := newMemBoardRepo()
	users := newMemUserRepo()
	sessions := session.NewManager(boards, nil, nil, logger)

	authService := service.NewAuthService(users, sessions, repository.NewMemorySessionRevocations(), testSecret, 15*time.Minute, time.Hour, logger)
	retry := 7 * time.Second
	wsConfig := config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024}

	h := Handlers{
		Auth:      NewAuthHandler(authService, retry, logger),
		User:      NewUserHandler(service.NewUserService(users), retry, logger),
		Board:     NewBoardHandler(sessions, retry, logger),
		Note:      NewNoteHandler(sessions, retry, logger),
		Page:      NewPageHandler(sessions, retry, logger),
		WebSocket: NewWebSocketHandler(websocket.NewManager(wsConfig, logger), sessions, authService, wsConfig, logger),
		Health:    NewHealthHandler(nil, sessions),
	}
	return &testServer{
		handler: NewRouter(h, RouterConfig{
			Auth:   authService,
			CORS:   config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST,PUT,DELETE", AllowedHeaders: "Content-Type,Authorization"},
			Logger: logger,
		}),
		boards:   boards,
		users:    users,
		sessions: sessions,
	}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.GenerateToken(userID, "session-"+userID, time.Hour, testSecret)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var tok string
	if userID != "" {
		tok = token(t, userID)
	}
	return s.doToken(t, method, path, tok, body)
}

// doToken sends the request with the given access token, or none when empty.
func (s *testServer) doToken(t *testing.T, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}
