package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	// ActiveFor returns the pair's Active consultation, or a not found error.
	ActiveFor(ctx context.Context, clientID, attorneyID uuid.UUID) (*Consultation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Detail, error)
	ListByAttorney(ctx context.Context, attorneyID uuid.UUID) ([]*Detail, error)
	ListAll(ctx context.Context) ([]*Detail, error)

	CreateMessage(ctx context.Context, m *Message) error
	// Messages returns the thread oldest first.
	Messages(ctx context.Context, consultationID uuid.UUID) ([]*Message, error)
	// MarkRead flags every unread message sent under role as read.
	MarkRead(ctx context.Context, consultationID uuid.UUID, role auth.Role) (int64, error)
}
