package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	// ListByUser returns a client's feedback, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Feedback, error)
	// ListAll returns every entry, newest first, optionally filtered by
	// status.
	ListAll(ctx context.Context, status string) ([]*Detail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// Respond records an admin response. A nil status leaves the current one.
	Respond(ctx context.Context, id uuid.UUID, response string, by uuid.UUID, at time.Time, status *Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, status Status) (int, error)
}
