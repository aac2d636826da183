package store

import "errors"

var (
	// ErrNotSignedIn and ErrNoBoardSelected report a mutation that was
	// skipped before touching the document store.
	ErrNotSignedIn     = errors.New("no signed-in user")
	ErrNoBoardSelected = errors.New("no board selected")

	ErrBoardNotFound = errors.New("board not found")
	ErrNoteNotFound  = errors.New("note not found")
	ErrTodoNotFound  = errors.New("todo not found")
)
