package websocket

import (
	"encoding/json"
	"time"

	"stickyboard-server/internal/domain"
)

type MessageType string

const (
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	// client to server
	TypePointerDown  MessageType = "pointer_down"
	TypePointerMove  MessageType = "pointer_move"
	TypePointerUp    MessageType = "pointer_up"
	TypePointerLeave MessageType = "pointer_leave"

	// server to client
	TypeBoardUpdate  MessageType = "board_update"
	TypeBoardList    MessageType = "board_list"
	TypeNotePosition MessageType = "note_position"
	TypeError        MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PointerPayload carries one pointer event in board coordinates. NoteID is
// only read on pointer_down. PointerID tells apart the pointers of a single
// connection; an empty id is a valid pointer of its own.
type PointerPayload struct {
	PointerID string  `json:"pointer_id"`
	NoteID    int64   `json:"note_id,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func (p PointerPayload) Position() domain.Position {
	return domain.Position{X: p.X, Y: p.Y}
}

type BoardUpdatePayload struct {
	Board *domain.Board `json:"board"`
}

type BoardListPayload struct {
	Boards         []*domain.Board `json:"boards"`
	CurrentBoardID int64           `json:"current_board_id"`
}

type NotePositionPayload struct {
	PointerID string          `json:"pointer_id"`
	NoteID    int64           `json:"note_id"`
	Position  domain.Position `json:"position"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
