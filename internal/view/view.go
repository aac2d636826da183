// Package view builds the page models the client renders: the board
// selector, one card per note on the current board and the add-note button.
package view

import (
	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/store"
)

const Title = "Sticky Notes Todo App"

type BoardOption struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

type BoardSelector struct {
	Options        []BoardOption `json:"options"`
	CurrentBoardID int64         `json:"current_board_id"`
	CanRename      bool          `json:"can_rename"`
	CanAdd         bool          `json:"can_add"`
}

type TodoItem struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type NoteCard struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
	Left  float64    `json:"left"`
	Top   float64    `json:"top"`
	Todos []TodoItem `json:"todos"`
}

type AddNoteButton struct {
	Enabled bool `json:"enabled"`
}

type Page struct {
	Title    string        `json:"title"`
	Selector BoardSelector `json:"selector"`
	Notes    []NoteCard    `json:"notes"`
	AddNote  AddNoteButton `json:"add_note"`
}

func Render(snap store.Snapshot) Page {
	current, hasCurrent := snap.Current()

	page := Page{
		Title:    Title,
		Selector: Selector(snap.Boards, snap.CurrentBoardID),
		Notes:    []NoteCard{},
		AddNote:  AddNoteButton{Enabled: hasCurrent},
	}
	if hasCurrent {
		for _, n := range current.Notes {
			page.Notes = append(page.Notes, Card(n))
		}
	}
	return page
}

func Selector(boards []*domain.Board, currentID int64) BoardSelector {
	sel := BoardSelector{
		Options:        make([]BoardOption, 0, len(boards)),
		CurrentBoardID: currentID,
		CanAdd:         true,
	}
	for _, b := range boards {
		selected := b.ID == currentID
		if selected {
			sel.CanRename = true
		}
		sel.Options = append(sel.Options, BoardOption{ID: b.ID, Name: b.Name, Selected: selected})
	}
	return sel
}

func Card(n domain.Note) NoteCard {
	card := NoteCard{
		ID:    n.ID,
		Name:  n.Name,
		Color: n.Color,
		Left:  n.Position.X,
		Top:   n.Position.Y,
		Todos: make([]TodoItem, 0, len(n.Todos)),
	}
	for _, t := range n.Todos {
		card.Todos = append(card.Todos, TodoItem{ID: t.ID, Text: t.Text, Completed: t.Completed})
	}
	return card
}

// AuthView is what signed-out users see: where to sign in or register.
type AuthView struct {
	Title    string `json:"title"`
	Login    string `json:"login"`
	Register string `json:"register"`
}

func AuthPage() AuthView {
	return AuthView{
		Title:    Title,
		Login:    "/api/v1/auth/login",
		Register: "/api/v1/auth/register",
	}
}
