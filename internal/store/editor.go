package store

import (
	"context"
	"fmt"

	"stickyboard-server/internal/domain"
)

// notesFunc computes a board's new notes from its current ones. It receives
// a private copy and may modify it.
type notesFunc func(notes []domain.Note) ([]domain.Note, error)

// saveNotes runs the shared note pipeline on the current board: compute the
// new notes, build the full board, overwrite the stored document, then swap
// the board in memory.
func (s *Store) saveNotes(ctx context.Context, fn notesFunc) (*domain.Board, error) {
	s.mu.Lock()

	if s.userID == "" {
		s.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	userID := s.userID

	idx := s.indexOf(s.current)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNoBoardSelected
	}
	board := s.boards[idx]

	notes, err := fn(board.Clone().Notes)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	updated := &domain.Board{ID: board.ID, Name: board.Name, Notes: notes}

	if err := s.repo.Put(ctx, userID, updated); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save board %d: %w", updated.ID, err)
	}
	s.boards[idx] = updated
	out := updated.Clone()
	s.mu.Unlock()

	s.notifyBoard(userID, out)
	return out.Clone(), nil
}

// Note returns a note of the current board.
func (s *Store) Note(id int64) (domain.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(s.current)
	if idx < 0 {
		return domain.Note{}, false
	}
	n, ok := s.boards[idx].FindNote(id)
	if !ok {
		return domain.Note{}, false
	}
	return n.Clone(), true
}

func (s *Store) AddNote(ctx context.Context) (*domain.Note, error) {
	var added domain.Note
	_, err := s.saveNotes(ctx, func(notes []domain.Note) ([]domain.Note, error) {
		added = domain.Note{
			ID:       s.uniqueID(func(id int64) bool { return hasNote(notes, id) }),
			Name:     domain.DefaultNoteName,
			Color:    domain.DefaultNoteColor,
			Todos:    []domain.Todo{},
			Position: domain.DefaultNotePosition,
		}
		return append(notes, added), nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateNote replaces the note carrying note.ID with note.
func (s *Store) UpdateNote(ctx context.Context, note domain.Note) (*domain.Board, error) {
	return s.saveNotes(ctx, replaceNote(note))
}

// EditNote applies the fields set in req to a note and saves it through
// UpdateNote's pipeline.
func (s *Store) EditNote(ctx context.Context, id int64, req domain.UpdateNoteRequest) (*domain.Note, error) {
	return s.saveNote(ctx, id, func(n *domain.Note) error {
		if req.Name != nil {
			n.Name = *req.Name
		}
		if req.Color != nil {
			n.Color = *req.Color
		}
		if req.Position != nil {
			n.Position = *req.Position
		}
		return nil
	})
}

func (s *Store) DeleteNote(ctx context.Context, id int64) (*domain.Board, error) {
	return s.saveNotes(ctx, func(notes []domain.Note) ([]domain.Note, error) {
		kept := make([]domain.Note, 0, len(notes))
		for _, n := range notes {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		if len(kept) == len(notes) {
			return nil, ErrNoteNotFound
		}
		return kept, nil
	})
}

func (s *Store) AddTodo(ctx context.Context, noteID int64) (*domain.Todo, error) {
	var added domain.Todo
	_, err := s.saveNote(ctx, noteID, func(n *domain.Note) error {
		added = domain.Todo{ID: s.uniqueID(func(id int64) bool { return hasTodo(n.Todos, id) })}
		n.Todos = append(n.Todos, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateTodo sets a todo's text and completion flag, keeping its id.
func (s *Store) UpdateTodo(ctx context.Context, noteID, todoID int64, text string, completed bool) (*domain.Note, error) {
	return s.saveNote(ctx, noteID, func(n *domain.Note) error {
		for i := range n.Todos {
			if n.Todos[i].ID == todoID {
				n.Todos[i].Text = text
				n.Todos[i].Completed = completed
				return nil
			}
		}
		return ErrTodoNotFound
	})
}

func (s *Store) DeleteTodo(ctx context.Context, noteID, todoID int64) (*domain.Note, error) {
	return s.saveNote(ctx, noteID, func(n *domain.Note) error {
		kept := make([]domain.Todo, 0, len(n.Todos))
		for _, t := range n.Todos {
			if t.ID != todoID {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(n.Todos) {
			return ErrTodoNotFound
		}
		n.Todos = kept
		return nil
	})
}

// saveNote edits one note of the current board and hands the result to
// replaceNote, the same step UpdateNote uses.
func (s *Store) saveNote(ctx context.Context, id int64, edit func(n *domain.Note) error) (*domain.Note, error) {
	var saved domain.Note
	_, err := s.saveNotes(ctx, func(notes []domain.Note) ([]domain.Note, error) {
		for _, n := range notes {
			if n.ID != id {
				continue
			}
			if err := edit(&n); err != nil {
				return nil, err
			}
			saved = n
			return replaceNote(n)(notes)
		}
		return nil, ErrNoteNotFound
	})
	if err != nil {
		return nil, err
	}
	saved = saved.Clone()
	return &saved, nil
}

func replaceNote(note domain.Note) notesFunc {
	return func(notes []domain.Note) ([]domain.Note, error) {
		for i := range notes {
			if notes[i].ID == note.ID {
				notes[i] = note.Clone()
				return notes, nil
			}
		}
		return nil, ErrNoteNotFound
	}
}

// uniqueID draws ids from the clock until taken reports a free one.
func (s *Store) uniqueID(taken func(int64) bool) int64 {
	id := s.clock.NextID()
	for taken(id) {
		id = s.clock.NextID()
	}
	return id
}

func hasNote(notes []domain.Note, id int64) bool {
	for _, n := range notes {
		if n.ID == id {
			return true
		}
	}
	return false
}

func hasTodo(todos []domain.Todo, id int64) bool {
	for _, t := range todos {
		if t.ID == id {
			return true
		}
	}
	return false
}
