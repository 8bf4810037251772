package labtest

import (
	"context"

	"github.com/google/uuid"

	"github.com/counsel/counsel/pkg/pagination"
)

// CatalogRepository persists lab tests.
type CatalogRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	NameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
	Update(ctx context.Context, t *Test) error
	// Delete removes a test only when no booking references it. It returns
	// the number of referencing bookings; a non-zero count means nothing
	// was deleted.
	Delete(ctx context.Context, id uuid.UUID) (int, error)
	List(ctx context.Context) ([]*Test, error)
}

// BookingRepository persists lab test bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*BookingDetail, error)
	ListAll(ctx context.Context, page pagination.Params) ([]*BookingDetail, int, error)
	Count(ctx context.Context) (int, error)
}
