package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/counsel/counsel/pkg/calendar"
	"github.com/counsel/counsel/pkg/pagination"
)

type Repository interface {
	// Create inserts a and returns ErrSlotBooked when an active appointment
	// already holds the slot.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	SlotTaken(ctx context.Context, attorneyID uuid.UUID, date calendar.Date, slot string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Detail, error)
	ListByAttorney(ctx context.Context, attorneyID uuid.UUID) ([]*Detail, error)
	ListAll(ctx context.Context, page pagination.Params) ([]*Detail, int, error)

	// MarkExpired moves every sweepable appointment dated on or before today
	// to Expired in one statement and returns the number of rows changed.
	MarkExpired(ctx context.Context, today calendar.Date) (int64, error)
	StatusCounts(ctx context.Context) (map[Status]int, error)
	Recent(ctx context.Context, n int) ([]*Detail, error)
}
