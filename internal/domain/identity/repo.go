package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/pagination"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRole(ctx context.Context, role auth.Role, page pagination.Params) ([]*User, int, error)
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}
