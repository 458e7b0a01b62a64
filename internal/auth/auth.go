// Package auth implements portal login against the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
)

// FieldPasswordHash is never returned to clients.
const FieldPasswordHash = "password_hash"

// FieldPassword is the plaintext field accepted on user writes.
const FieldPassword = "password"

// LoginFailedMessage is the error shown by the login form.
const LoginFailedMessage = "Invalid email or password"

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Cost is the bcrypt cost of hashed passwords.
var Cost = bcrypt.DefaultCost

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the credentials.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254)),
		validation.Field(&c.Password, validation.Required),
	)
}

// Store is the read side of the mock data store.
type Store interface {
	Select(ctx context.Context, table string, q mockstore.Query) ([]mockstore.Record, error)
}

// Service checks credentials.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Login returns the user matching the credentials, without its password hash.
func (s *Service) Login(ctx context.Context, c Credentials) (*models.User, error) {
	if err := c.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}
	users, err := s.store.Select(ctx, models.TableUsers, mockstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	for _, row := range users {
		if !strings.EqualFold(row.String("email"), strings.TrimSpace(c.Email)) {
			continue
		}
		hash := row.String(FieldPasswordHash)
		if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(c.Password)) != nil {
			return nil, ErrInvalidCredentials
		}
		var u models.User
		if err := row.Decode(&u); err != nil {
			return nil, fmt.Errorf("auth: decode user: %w", err)
		}
		u.PasswordHash = ""
		return &u, nil
	}
	return nil, ErrInvalidCredentials
}

// HashPassword replaces a plaintext password in a users row with its bcrypt
// hash. A supplied password_hash is dropped so clients cannot set it directly.
func HashPassword(rec mockstore.Record) error {
	delete(rec, FieldPasswordHash)
	raw, ok := rec[FieldPassword]
	if !ok {
		return nil
	}
	delete(rec, FieldPassword)
	pw, _ := raw.(string)
	if pw == "" {
		return errors.New("password must be a non-empty string")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), Cost)
	if err != nil {
		return err
	}
	rec[FieldPasswordHash] = string(hash)
	return nil
}

// RestrictQuery drops filters and sort keys on the password hash from a
// users query, so neither matching nor ordering reveals anything about it.
// q.Where is copied, never modified.
func RestrictQuery(table string, q mockstore.Query) mockstore.Query {
	if table != models.TableUsers {
		return q
	}
	if _, ok := q.Where[FieldPasswordHash]; ok {
		where := make(map[string]any, len(q.Where))
		for k, v := range q.Where {
			if k != FieldPasswordHash {
				where[k] = v
			}
		}
		q.Where = where
	}
	var order []mockstore.Order
	for _, o := range q.OrderBy {
		if o.Field != FieldPasswordHash {
			order = append(order, o)
		}
	}
	q.OrderBy = order
	return q
}

// Redact removes the password hash from rows in place and returns them.
func Redact(rows ...mockstore.Record) []mockstore.Record {
	for _, r := range rows {
		delete(r, FieldPasswordHash)
	}
	return rows
}
