package websocket

import (
	"stickyboard-server/internal/domain"

	"go.uber.org/zap"
)

// BoardNotifier pushes board store changes to every open connection of the
// affected user.
type BoardNotifier struct {
	manager *Manager
}

func NewBoardNotifier(manager *Manager) *BoardNotifier {
	return &BoardNotifier{manager: manager}
}

func (n *BoardNotifier) BoardSaved(userID string, board *domain.Board) {
	n.push(userID, TypeBoardUpdate, &BoardUpdatePayload{Board: board})
}

func (n *BoardNotifier) BoardsChanged(userID string, boards []*domain.Board, currentBoardID int64) {
	n.push(userID, TypeBoardList, &BoardListPayload{Boards: boards, CurrentBoardID: currentBoardID})
}

func (n *BoardNotifier) push(userID string, typ MessageType, payload interface{}) {
	msg, err := NewMessage(typ, payload)
	if err == nil {
		err = n.manager.BroadcastToUser(userID, msg, "")
	}
	if err != nil {
		n.manager.logger.Warn("board push failed", zap.String("user_id", userID), zap.String("type", string(typ)), zap.Error(err))
	}
}
