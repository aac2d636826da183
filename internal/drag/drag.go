// Package drag turns pointer events into note moves. Every pointer-move while
// dragging is written straight through the note editor; there is no local
// preview and no throttling.
package drag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stickyboard-server/internal/domain"
)

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrAlreadyDragging = errors.New("pointer is already dragging a note")
	ErrNoteNotFound    = errors.New("note not found")
)

// Editor is the slice of the board store the machine needs.
type Editor interface {
	Note(id int64) (domain.Note, bool)
	UpdateNote(ctx context.Context, note domain.Note) (*domain.Board, error)
}

// Machine tracks what one pointer is doing. A pointer drags at most one note.
type Machine struct {
	mu     sync.Mutex
	state  State
	noteID int64
	offset domain.Position
}

func New() *Machine {
	return &Machine{}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NoteID is the note being dragged, or 0 when idle.
func (m *Machine) NoteID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noteID
}

// PointerDown starts dragging noteID, remembering where on the note the
// pointer grabbed it.
func (m *Machine) PointerDown(editor Editor, noteID int64, pointer domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Dragging {
		return ErrAlreadyDragging
	}
	note, ok := editor.Note(noteID)
	if !ok {
		return ErrNoteNotFound
	}

	m.state = Dragging
	m.noteID = noteID
	m.offset = domain.Position{
		X: pointer.X - note.Position.X,
		Y: pointer.Y - note.Position.Y,
	}
	return nil
}

// PointerMove moves the dragged note under the pointer and saves it. It
// returns nil, nil when the pointer is not dragging anything.
func (m *Machine) PointerMove(ctx context.Context, editor Editor, pointer domain.Position) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Dragging {
		return nil, nil
	}

	// Re-read the note so edits made mid-drag are not overwritten.
	note, ok := editor.Note(m.noteID)
	if !ok {
		m.reset()
		return nil, ErrNoteNotFound
	}
	note.Position = domain.Position{
		X: pointer.X - m.offset.X,
		Y: pointer.Y - m.offset.Y,
	}

	if _, err := editor.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to move note %d: %w", note.ID, err)
	}
	return &note, nil
}

func (m *Machine) PointerUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// PointerLeave ends the drag the same way a release does.
func (m *Machine) PointerLeave() {
	m.PointerUp()
}

func (m *Machine) reset() {
	m.state = Idle
	m.noteID = 0
	m.offset = domain.Position{}
}
