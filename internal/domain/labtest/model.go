package labtest

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/pkg/calendar"
)

// Test is a catalog entry, stored in lab_test.
type Test struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"test_name" json:"test_name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

func (t *Test) View() map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"test_name":   t.Name,
		"description": t.Description,
		"price":       t.Price,
	}
}

// TestInput is the body of the catalog create and update endpoints. Nil
// fields are absent from the request.
type TestInput struct {
	Name        *string          `json:"test_name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

// BookingStatus is the lifecycle state of a lab test booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingExpired   BookingStatus = "Expired"
)

var BookingStatuses = []BookingStatus{
	BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled, BookingExpired,
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	for _, st := range BookingStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

var errInvalidStatus = func() *apperr.Error {
	names := make([]string, len(BookingStatuses))
	for i, s := range BookingStatuses {
		names[i] = string(s)
	}
	return apperr.Validation("Invalid status. Valid statuses are: %s", strings.Join(names, ", "))
}()

// Booking is a client's reservation of a catalog test. Unlike appointments,
// any number of clients may book the same test at the same time.
type Booking struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	UserID    uuid.UUID     `db:"user_id" json:"user_id"`
	TestID    uuid.UUID     `db:"test_id" json:"test_id"`
	Date      calendar.Date `db:"date" json:"date"`
	TimeSlot  string        `db:"time_slot" json:"time"`
	Notes     string        `db:"notes" json:"notes"`
	Status    BookingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

func (b *Booking) Receipt() map[string]interface{} {
	return map[string]interface{}{
		"id":      b.ID,
		"test_id": b.TestID,
		"date":    b.Date,
		"time":    b.TimeSlot,
		"status":  b.Status,
	}
}

// Client holds the booking client's display fields.
type Client struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// BookingDetail joins a booking with its client and catalog entry.
type BookingDetail struct {
	Booking
	Client Client
	Test   Test
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// ClientView is the form listed under /user/lab-test-bookings.
func (d *BookingDetail) ClientView() map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"date":        d.Date,
		"time":        d.TimeSlot,
		"status":      d.Status,
		"notes":       d.Notes,
		"test_name":   orUnknown(d.Test.Name),
		"description": d.Test.Description,
		"price":       d.Test.Price,
		"createdAt":   d.CreatedAt,
	}
}

// AdminView is the form listed under /admin/lab-test-bookings.
func (d *BookingDetail) AdminView() map[string]interface{} {
	return map[string]interface{}{
		"id":     d.ID,
		"date":   d.Date,
		"time":   d.TimeSlot,
		"status": d.Status,
		"notes":  d.Notes,
		"patient": map[string]interface{}{
			"id":    d.Client.ID,
			"name":  orUnknown(d.Client.Name),
			"email": orUnknown(d.Client.Email),
			"phone": orUnknown(d.Client.Phone),
		},
		"test": map[string]interface{}{
			"id":          d.Test.ID,
			"test_name":   orUnknown(d.Test.Name),
			"description": d.Test.Description,
			"price":       d.Test.Price,
		},
		"createdAt": d.CreatedAt,
	}
}

// BookInput is the body of POST /user/book-lab-test.
type BookInput struct {
	TestID string `json:"test_id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Notes  string `json:"notes"`
}
