package domain

const (
	DefaultBoardName = "New Board"
	DefaultNoteName  = "New Note"
	DefaultNoteColor = "#ffff88"
)

// DefaultNotePosition is where freshly added notes are placed.
var DefaultNotePosition = Position{X: 50, Y: 50}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Todo struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Note struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Todos    []Todo   `json:"todos"`
	Position Position `json:"position"`
}

type Board struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Notes []Note `json:"notes"`
}

// Clone returns a deep copy so callers can mutate the result without
// touching the original's notes or todos.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{ID: b.ID, Name: b.Name, Notes: make([]Note, len(b.Notes))}
	for i, n := range b.Notes {
		out.Notes[i] = n.Clone()
	}
	return out
}

func (n Note) Clone() Note {
	todos := make([]Todo, len(n.Todos))
	copy(todos, n.Todos)
	n.Todos = todos
	return n
}

// FindNote returns the note with the given id and whether it exists.
func (b *Board) FindNote(id int64) (Note, bool) {
	for _, n := range b.Notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// FindTodo returns the todo with the given id and whether it exists.
func (n Note) FindTodo(id int64) (Todo, bool) {
	for _, t := range n.Todos {
		if t.ID == id {
			return t, true
		}
	}
	return Todo{}, false
}

// Normalize fills fields a stored document may be missing with the same
// defaults a freshly created value would carry.
func (b *Board) Normalize() {
	if b.Name == "" {
		b.Name = DefaultBoardName
	}
	if b.Notes == nil {
		b.Notes = []Note{}
	}
	for i := range b.Notes {
		n := &b.Notes[i]
		if n.Name == "" {
			n.Name = DefaultNoteName
		}
		if n.Color == "" {
			n.Color = DefaultNoteColor
		}
		if n.Todos == nil {
			n.Todos = []Todo{}
		}
	}
}

type RenameBoardRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type SelectBoardRequest struct {
	ID int64 `json:"id" validate:"required"`
}

type UpdateNoteRequest struct {
	Name     *string   `json:"name" validate:"omitempty,max=200"`
	Color    *string   `json:"color" validate:"omitempty,hexcolor"`
	Position *Position `json:"position"`
}

type UpdateTodoRequest struct {
	Text      string `json:"text" validate:"max=500"`
	Completed bool   `json:"completed"`
}

type BoardsResponse struct {
	Boards         []*Board `json:"boards"`
	CurrentBoardID int64    `json:"current_board_id"`
}
