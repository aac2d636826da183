package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stickyboard-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	*domain.User
}

type userRepository struct {
	client *kivik.Client
	dbName string
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
	}
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	doc := userDoc{ID: userDocID(user.ID), DocType: "user", User: user}
	if _, err := db.Put(ctx, doc.ID, doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrUserExists
		}
		return wrap("failed to create user", err)
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *userRepository) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "user",
			field:      value,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to query user by "+field, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrUserNotFound
	}

	var user domain.User
	if err := rows.ScanDoc(&user); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var user domain.User
	if err := db.Get(ctx, userDocID(id)).ScanDoc(&user); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, wrap("failed to find user by ID", err)
	}

	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	docID := userDocID(user.ID)
	rev, err := db.GetRev(ctx, docID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrUserNotFound
		}
		return wrap("failed to read user revision", err)
	}

	doc := userDoc{ID: docID, Rev: rev, DocType: "user", User: user}
	if _, err := db.Put(ctx, docID, doc); err != nil {
		return wrap("failed to update user", err)
	}

	return nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return exists(r.FindByEmail(ctx, email))
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return exists(r.FindByUsername(ctx, username))
}

func exists(_ *domain.User, err error) (bool, error) {
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
