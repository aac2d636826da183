// Package store holds one signed-in user's boards in memory and mirrors
// every change to the document store.
//
// Writes are confirm-then-apply: the in-memory state only changes after the
// document store accepted the write, so a failed write leaves the store
// exactly as it was. A single mutex serializes mutations, which means writes
// for one user reach the document store in the order they were issued.
package store

import (
	"context"
	"fmt"
	"sync"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/repository"

	"go.uber.org/zap"
)

// Notifier is told about state that other views of the same user should
// pick up. Implementations must not block.
type Notifier interface {
	BoardSaved(userID string, board *domain.Board)
	BoardsChanged(userID string, boards []*domain.Board, currentBoardID int64)
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	UserID         string
	Boards         []*domain.Board
	CurrentBoardID int64
}

func (s Snapshot) Current() (*domain.Board, bool) {
	for _, b := range s.Boards {
		if b.ID == s.CurrentBoardID {
			return b, true
		}
	}
	return nil, false
}

type Store struct {
	mu       sync.Mutex
	repo     repository.BoardRepository
	clock    *domain.Clock
	notifier Notifier
	logger   *zap.Logger

	userID  string
	boards  []*domain.Board
	current int64
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithClock(c *domain.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(repo repository.BoardRepository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		clock:  domain.NewClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn binds the store to a user and drops whatever the previous user left.
func (s *Store) SignIn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = userID
	s.boards = nil
	s.current = 0
}

// SignOut clears the boards and resets the selection to none.
func (s *Store) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = ""
	s.boards = nil
	s.current = 0
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) CurrentBoardID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) Boards() []*domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBoards(s.boards)
}

func (s *Store) Current() (*domain.Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(s.current)
	if idx < 0 {
		return nil, false
	}
	return s.boards[idx].Clone(), true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		UserID:         s.userID,
		Boards:         cloneBoards(s.boards),
		CurrentBoardID: s.current,
	}
}

// Load replaces the in-memory boards with the user's stored boards and
// selects the first one. On failure the previous state is kept.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()

	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	userID := s.userID

	boards, err := s.repo.List(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to load boards: %w", err)
	}

	s.boards = boards
	s.current = 0
	if len(boards) > 0 {
		s.current = boards[0].ID
	}
	out, current := cloneBoards(s.boards), s.current
	s.mu.Unlock()

	s.logger.Debug("boards loaded", zap.String("user_id", userID), zap.Int("count", len(out)))
	s.notifyBoards(userID, out, current)
	return nil
}

// Create stores a new empty board and selects it.
func (s *Store) Create(ctx context.Context) (*domain.Board, error) {
	s.mu.Lock()

	if s.userID == "" {
		s.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	userID := s.userID

	id := s.clock.NextID()
	for s.indexOf(id) >= 0 {
		id = s.clock.NextID()
	}
	board := &domain.Board{
		ID:    id,
		Name:  domain.DefaultBoardName,
		Notes: []domain.Note{},
	}

	if err := s.repo.Put(ctx, userID, board); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	s.boards = append(s.boards, board)
	s.current = board.ID
	out, current := cloneBoards(s.boards), s.current
	s.mu.Unlock()

	s.notifyBoards(userID, out, current)
	return board.Clone(), nil
}

// Rename merges the new name into the stored board without rewriting its notes.
func (s *Store) Rename(ctx context.Context, id int64, name string) (*domain.Board, error) {
	s.mu.Lock()

	if s.userID == "" {
		s.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	userID := s.userID

	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrBoardNotFound
	}

	if err := s.repo.Merge(ctx, userID, id, map[string]interface{}{"name": name}); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to rename board: %w", err)
	}

	renamed := s.boards[idx].Clone()
	renamed.Name = name
	s.boards[idx] = renamed
	out, current := cloneBoards(s.boards), s.current
	s.mu.Unlock()

	s.notifyBoards(userID, out, current)
	return renamed.Clone(), nil
}

// Select makes id the current board.
func (s *Store) Select(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return ErrNotSignedIn
	}
	if s.indexOf(id) < 0 {
		return ErrBoardNotFound
	}
	s.current = id
	return nil
}

func (s *Store) indexOf(id int64) int {
	if id == 0 {
		return -1
	}
	for i, b := range s.boards {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notifyBoards(userID string, boards []*domain.Board, current int64) {
	if s.notifier != nil {
		s.notifier.BoardsChanged(userID, boards, current)
	}
}

func (s *Store) notifyBoard(userID string, board *domain.Board) {
	if s.notifier != nil {
		s.notifier.BoardSaved(userID, board)
	}
}

func cloneBoards(boards []*domain.Board) []*domain.Board {
	out := make([]*domain.Board, len(boards))
	for i, b := range boards {
		out[i] = b.Clone()
	}
	return out
}
