package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stickyboard-server/internal/domain"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// BreakerBoardRepository stops calling the document store after a run of
// failures and fails fast with ErrStoreUnavailable until the breaker's
// timeout lets a trial request through.
type BreakerBoardRepository struct {
	base BoardRepository
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerBoardRepository(base BoardRepository, cfg BreakerConfig, logger *zap.Logger) *BreakerBoardRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("document store breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Only an unreachable store counts against the breaker; a missing
		// board is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || !unavailable(err)
		},
	})

	return &BreakerBoardRepository{base: base, cb: cb}
}

func (b *BreakerBoardRepository) List(ctx context.Context, userID string) ([]*domain.Board, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.base.List(ctx, userID)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	boards, _ := out.([]*domain.Board)
	return boards, nil
}

func (b *BreakerBoardRepository) Put(ctx context.Context, userID string, board *domain.Board) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.base.Put(ctx, userID, board)
	})
	return breakerErr(err)
}

func (b *BreakerBoardRepository) Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.base.Merge(ctx, userID, boardID, fields)
	})
	return breakerErr(err)
}

func (b *BreakerBoardRepository) State() gobreaker.State {
	return b.cb.State()
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
