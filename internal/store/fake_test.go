package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/repository"
)

type write struct {
	kind    string
	userID  string
	boardID int64
	board   *domain.Board
	fields  map[string]interface{}
}

// recordingRepo keeps documents in memory and records every write it is asked
// to perform, successful or not.
type recordingRepo struct {
	mu      sync.Mutex
	docs    map[string]map[int64]*domain.Board
	writes  []write
	reads   int
	failPut error
	failGet error
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{docs: make(map[string]map[int64]*domain.Board)}
}

func (r *recordingRepo) seed(userID string, boards ...*domain.Board) {
	if r.docs[userID] == nil {
		r.docs[userID] = make(map[int64]*domain.Board)
	}
	for _, b := range boards {
		r.docs[userID][b.ID] = b.Clone()
	}
}

func (r *recordingRepo) doc(userID string, id int64) *domain.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[userID][id].Clone()
}

func (r *recordingRepo) List(ctx context.Context, userID string) ([]*domain.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	if r.failGet != nil {
		return nil, r.failGet
	}
	var out []*domain.Board
	for _, b := range r.docs[userID] {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *recordingRepo) Put(ctx context.Context, userID string, board *domain.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writes = append(r.writes, write{kind: "full", userID: userID, boardID: board.ID, board: board.Clone()})
	if r.failPut != nil {
		return r.failPut
	}
	if r.docs[userID] == nil {
		r.docs[userID] = make(map[int64]*domain.Board)
	}
	r.docs[userID][board.ID] = board.Clone()
	return nil
}

func (r *recordingRepo) Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.writes = append(r.writes, write{kind: "merge", userID: userID, boardID: boardID, fields: copied})
	if r.failPut != nil {
		return r.failPut
	}
	b, ok := r.docs[userID][boardID]
	if !ok {
		return repository.ErrBoardNotFound
	}
	if name, ok := fields["name"].(string); ok {
		b.Name = name
	}
	return nil
}

func (r *recordingRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

func (r *recordingRepo) lastWrite() write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[len(r.writes)-1]
}

type recordingNotifier struct {
	mu          sync.Mutex
	saved       []*domain.Board
	listChanges int
}

func (n *recordingNotifier) BoardSaved(userID string, board *domain.Board) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, board)
}

func (n *recordingNotifier) BoardsChanged(userID string, boards []*domain.Board, currentBoardID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listChanges++
}

// fixedClock returns a clock stuck in one millisecond, the worst case for
// timestamp ids.
func fixedClock() *domain.Clock {
	at := time.UnixMilli(1700000000000)
	return domain.NewClockAt(func() time.Time { return at })
}
