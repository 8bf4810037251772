package admin

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context) ([]*Detail, error)
	UpdatePermissions(ctx context.Context, id uuid.UUID, permissions []string) error
	// Delete removes the profile and returns it so the caller can demote
	// its user.
	Delete(ctx context.Context, id uuid.UUID) (*Profile, error)
}
