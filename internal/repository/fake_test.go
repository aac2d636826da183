package repository

import (
	"context"
	"sort"

	"stickyboard-server/internal/domain"
)

type fakeBoardRepo struct {
	boards    map[string]map[int64]*domain.Board
	listCalls int
	err       error
}

func newFakeBoardRepo() *fakeBoardRepo {
	return &fakeBoardRepo{boards: make(map[string]map[int64]*domain.Board)}
}

func (f *fakeBoardRepo) List(ctx context.Context, userID string) ([]*domain.Board, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Board
	for _, b := range f.boards[userID] {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBoardRepo) Put(ctx context.Context, userID string, board *domain.Board) error {
	if f.err != nil {
		return f.err
	}
	if f.boards[userID] == nil {
		f.boards[userID] = make(map[int64]*domain.Board)
	}
	f.boards[userID][board.ID] = board.Clone()
	return nil
}

func (f *fakeBoardRepo) Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	b, ok := f.boards[userID][boardID]
	if !ok {
		return ErrBoardNotFound
	}
	if name, ok := fields["name"].(string); ok {
		b.Name = name
	}
	return nil
}
