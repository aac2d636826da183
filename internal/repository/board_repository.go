package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/metrics"

	"github.com/go-kivik/kivik/v4"
	"go.uber.org/zap"
)

const (
	boardDocType = "board"

	// A full overwrite refetches the revision and tries again when another
	// writer got in between; give up after this many rounds.
	maxRevisionRaces = 3
)

// BoardRepository is the document store collaborator for boards. Documents
// are addressed by the logical path users/{userID}/boards/{boardID}.
type BoardRepository interface {
	// List returns every board stored for the user, sorted by id.
	List(ctx context.Context, userID string) ([]*domain.Board, error)
	// Put replaces the whole board document, creating it when missing.
	Put(ctx context.Context, userID string, board *domain.Board) error
	// Merge writes only the given top-level fields into an existing document.
	Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error
}

type boardDoc struct {
	ID      string        `json:"_id"`
	Rev     string        `json:"_rev,omitempty"`
	DocType string        `json:"doc_type"`
	UserID  string        `json:"user_id"`
	Path    string        `json:"path"`
	BoardID int64         `json:"id"`
	Name    string        `json:"name"`
	Notes   []domain.Note `json:"notes"`
}

type CouchBoardRepository struct {
	db      *kivik.DB
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewBoardRepository(client *kivik.Client, dbName string, collector *metrics.Collector, logger *zap.Logger) *CouchBoardRepository {
	return &CouchBoardRepository{
		db:      client.DB(dbName),
		metrics: collector,
		logger:  logger,
	}
}

// BoardPath is the logical address of a board document.
func BoardPath(userID string, boardID int64) string {
	return fmt.Sprintf("users/%s/boards/%d", userID, boardID)
}

// BoardDocID maps a board's logical path onto a CouchDB document id.
func BoardDocID(userID string, boardID int64) string {
	return fmt.Sprintf("board:%s:%d", userID, boardID)
}

func boardDocPrefix(userID string) string {
	return fmt.Sprintf("board:%s:", userID)
}

// ParseBoardDocID recovers the board id from the tail of a document id.
func ParseBoardDocID(userID, docID string) (int64, error) {
	prefix := boardDocPrefix(userID)
	if !strings.HasPrefix(docID, prefix) {
		return 0, fmt.Errorf("document %q does not belong to user %s", docID, userID)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(docID, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid board id in %q: %w", docID, err)
	}
	return id, nil
}

// List reads the user's boards as one key range over board:{userID}:.
// Unlike _find, _all_docs has no default page size, so every board is
// returned however many the user has.
func (r *CouchBoardRepository) List(ctx context.Context, userID string) ([]*domain.Board, error) {
	prefix := boardDocPrefix(userID)
	rows := r.db.AllDocs(ctx, kivik.IncludeDocs(), kivik.Params(map[string]interface{}{
		"startkey": prefix,
		"endkey":   prefix + "\ufff0",
	}))
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list boards", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		docID, err := rows.ID()
		if err != nil {
			r.logger.Warn("skipping board row without id", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		id, err := ParseBoardDocID(userID, docID)
		if err != nil {
			r.logger.Warn("skipping board document with bad id", zap.String("doc_id", docID), zap.Error(err))
			continue
		}

		var doc boardDoc
		if err := rows.ScanDoc(&doc); err != nil {
			r.logger.Warn("skipping undecodable board document", zap.String("doc_id", docID), zap.Error(err))
			continue
		}
		if doc.BoardID != id {
			r.logger.Warn("board id field out of sync with document key",
				zap.String("doc_id", docID), zap.Int64("field_id", doc.BoardID))
		}

		board := &domain.Board{ID: id, Name: doc.Name, Notes: doc.Notes}
		board.Normalize()
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to read boards", err)
	}

	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })
	return boards, nil
}

func (r *CouchBoardRepository) Put(ctx context.Context, userID string, board *domain.Board) error {
	notes := board.Notes
	if notes == nil {
		notes = []domain.Note{}
	}
	doc := boardDoc{
		ID:      BoardDocID(userID, board.ID),
		DocType: boardDocType,
		UserID:  userID,
		Path:    BoardPath(userID, board.ID),
		BoardID: board.ID,
		Name:    board.Name,
		Notes:   notes,
	}

	for attempt := 0; attempt < maxRevisionRaces; attempt++ {
		rev, err := r.currentRev(ctx, doc.ID)
		if err != nil {
			r.metrics.DocumentWrite(metrics.WriteFull, false)
			return wrap("failed to read board revision", err)
		}
		doc.Rev = rev

		_, err = r.db.Put(ctx, doc.ID, doc)
		if err == nil {
			r.metrics.DocumentWrite(metrics.WriteFull, true)
			return nil
		}
		if kivik.HTTPStatus(err) != http.StatusConflict {
			r.metrics.DocumentWrite(metrics.WriteFull, false)
			return wrap("failed to write board", err)
		}
	}

	r.metrics.DocumentWrite(metrics.WriteFull, false)
	return fmt.Errorf("failed to write board %d: %w", board.ID, ErrRevisionRace)
}

func (r *CouchBoardRepository) Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	docID := BoardDocID(userID, boardID)

	for attempt := 0; attempt < maxRevisionRaces; attempt++ {
		var existing map[string]interface{}
		if err := r.db.Get(ctx, docID).ScanDoc(&existing); err != nil {
			r.metrics.DocumentWrite(metrics.WriteMerge, false)
			if kivik.HTTPStatus(err) == http.StatusNotFound {
				return ErrBoardNotFound
			}
			return wrap("failed to fetch board for merge", err)
		}

		for k, v := range fields {
			existing[k] = v
		}

		_, err := r.db.Put(ctx, docID, existing)
		if err == nil {
			r.metrics.DocumentWrite(metrics.WriteMerge, true)
			return nil
		}
		if kivik.HTTPStatus(err) != http.StatusConflict {
			r.metrics.DocumentWrite(metrics.WriteMerge, false)
			return wrap("failed to merge board", err)
		}
	}

	r.metrics.DocumentWrite(metrics.WriteMerge, false)
	return fmt.Errorf("failed to merge board %d: %w", boardID, ErrRevisionRace)
}

func (r *CouchBoardRepository) currentRev(ctx context.Context, docID string) (string, error) {
	rev, err := r.db.GetRev(ctx, docID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return rev, nil
}
