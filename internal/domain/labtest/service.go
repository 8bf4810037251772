package labtest

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/telemetry"
	"github.com/counsel/counsel/pkg/calendar"
	"github.com/counsel/counsel/pkg/pagination"
)

const metricKind = "lab_test"

type Service struct {
	tests    CatalogRepository
	bookings BookingRepository
	metrics  *telemetry.Metrics
}

func NewService(tests CatalogRepository, bookings BookingRepository, metrics *telemetry.Metrics) *Service {
	return &Service{tests: tests, bookings: bookings, metrics: metrics}
}

// ListTests returns the catalog ordered by name.
func (s *Service) ListTests(ctx context.Context) ([]*Test, error) {
	return s.tests.List(ctx)
}

func (s *Service) CreateTest(ctx context.Context, in TestInput) (*Test, error) {
	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if name == "" || in.Price == nil || in.Price.IsZero() {
		return nil, apperr.Validation("Test name and price are required")
	}
	if !in.Price.IsPositive() {
		return nil, apperr.Validation("Price must be greater than zero")
	}
	taken, err := s.tests.NameTaken(ctx, name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errNameTaken
	}

	t := &Test{Name: name, Price: *in.Price}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTest applies the supplied fields. An empty name is ignored; a new
// name must not belong to another test.
func (s *Service) UpdateTest(ctx context.Context, id uuid.UUID, in TestInput) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" && name != t.Name {
			taken, err := s.tests.NameTaken(ctx, name, t.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, errNameTaken
			}
			t.Name = name
		}
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return nil, apperr.Validation("Price must be greater than zero")
		}
		t.Price = *in.Price
	}
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTest removes a test that no booking references.
func (s *Service) DeleteTest(ctx context.Context, id uuid.UUID) error {
	refs, err := s.tests.Delete(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperr.Validation("Cannot delete lab test. There are %d booking(s) associated with this test.", refs)
	}
	return nil
}

// Book creates a Pending booking. Lab tests have no slot capacity, so
// identical bookings may coexist.
func (s *Service) Book(ctx context.Context, caller auth.Principal, in BookInput) (*Booking, error) {
	if caller.Role != auth.RoleClient {
		return nil, apperr.Forbidden("Only clients can book lab tests")
	}
	if strings.TrimSpace(in.TestID) == "" || strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return nil, apperr.Validation("Test ID, date, and time are required")
	}
	date, err := calendar.Parse(in.Date)
	if err != nil {
		return nil, apperr.Validation("Invalid date. Use YYYY-MM-DD")
	}
	testID, err := uuid.Parse(strings.TrimSpace(in.TestID))
	if err != nil {
		return nil, errTestAbsent
	}
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		UserID:   caller.UserID,
		TestID:   t.ID,
		Date:     date,
		TimeSlot: strings.TrimSpace(in.Time),
		Notes:    in.Notes,
		Status:   BookingPending,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	s.metrics.BookingCreated(metricKind)
	return b, nil
}

// ListForClient returns the caller's bookings, soonest first.
func (s *Service) ListForClient(ctx context.Context, userID uuid.UUID) ([]*BookingDetail, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// ListAll returns every booking, latest first.
func (s *Service) ListAll(ctx context.Context, page pagination.Params) ([]*BookingDetail, int, error) {
	return s.bookings.ListAll(ctx, page)
}

func (s *Service) UpdateBookingStatus(ctx context.Context, id uuid.UUID, raw string) (*BookingDetail, error) {
	status, ok := ParseBookingStatus(raw)
	if !ok {
		return nil, errInvalidStatus
	}
	if err := s.bookings.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.bookings.GetDetail(ctx, id)
}

func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	return s.bookings.Delete(ctx, id)
}

// CountBookings feeds the admin dashboard.
func (s *Service) CountBookings(ctx context.Context) (int, error) {
	return s.bookings.Count(ctx)
}
