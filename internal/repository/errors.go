package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrBoardNotFound    = errors.New("board not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrStoreUnavailable = errors.New("document store unavailable")
	ErrRevisionRace     = errors.New("document kept changing while writing")
)

// unavailable reports whether err came from the store being unreachable or
// failing, as opposed to a request the store rejected.
func unavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	// kivik reports 500 for any error without a status, so answers the
	// store gave must be ruled out first.
	if answered(err) {
		return false
	}
	return kivik.HTTPStatus(err) >= http.StatusInternalServerError
}

func answered(err error) bool {
	for _, target := range []error{
		ErrBoardNotFound,
		ErrUserNotFound,
		ErrUserExists,
		ErrRevisionRace,
		context.Canceled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrap adds msg to err and tags store outages with ErrStoreUnavailable.
func wrap(msg string, err error) error {
	if unavailable(err) && !errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", msg, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
