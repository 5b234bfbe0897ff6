package ports

import (
	"context"

	"github.com/anonqr/identity-service/internal/core/domain"
)

// UserRepository persists user records keyed by private ID.
type UserRepository interface {
	// Create inserts a new record. It returns domain.ErrUserExists when the
	// id is already taken so the caller can draw another one.
	Create(ctx context.Context, user *domain.User) error
	// Get returns domain.ErrUserNotFound for an unknown id.
	Get(ctx context.Context, id string) (*domain.User, error)
	// Put replaces an existing record; domain.ErrUserNotFound if absent.
	Put(ctx context.Context, user *domain.User) error
	// All returns every record in creation order.
	All(ctx context.Context) ([]*domain.User, error)
}
