package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/pkg/calendar"
)

// Status is an appointment's lifecycle state. Any status may follow any other;
// only membership in the enumeration is checked.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusRejected  Status = "Rejected"
	StatusExpired   Status = "Expired"
)

// Statuses lists the enumeration in display order.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRejected, StatusExpired,
}

// ParseStatus reports whether s is a member of the enumeration. Matching is
// exact.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsActive reports whether the status holds its slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// sweepExempt lists the statuses the expiry sweep never changes. MarkExpired
// builds its WHERE clause from it, and appointment_sweep_idx carries the same
// predicate.
var sweepExempt = []Status{StatusCompleted, StatusCancelled, StatusExpired}

// sweepable reports whether the expiry sweep may move s to Expired.
func (s Status) sweepable() bool {
	for _, e := range sweepExempt {
		if s == e {
			return false
		}
	}
	return true
}

// sqlList renders statuses as a quoted SQL value list.
func sqlList(statuses []Status) string {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}

var errInvalidStatus = apperr.Validation("Invalid status. Valid statuses are: %s", joinStatuses())

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

var (
	ErrSlotBooked        = apperr.Conflict("This time slot is already booked")
	errAppointmentAbsent = apperr.NotFound("Appointment not found")
)

// Appointment maps to the appointment table.
type Appointment struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	UserID     uuid.UUID     `db:"user_id" json:"user_id"`
	AttorneyID uuid.UUID     `db:"attorney_id" json:"doctor_id"`
	Date       calendar.Date `db:"date" json:"date"`
	TimeSlot   string        `db:"time_slot" json:"time"`
	Symptoms   string        `db:"symptoms" json:"symptoms"`
	Notes      string        `db:"notes" json:"notes"`
	Status     Status        `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// Receipt is the body returned to a client after booking.
func (a *Appointment) Receipt() map[string]interface{} {
	return map[string]interface{}{
		"id":        a.ID,
		"doctor_id": a.AttorneyID,
		"date":      a.Date,
		"time":      a.TimeSlot,
		"status":    a.Status,
	}
}

// Party carries the display fields of a client or attorney joined onto an
// appointment at read time.
type Party struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Detail is an appointment with its client and attorney display fields.
// Attorney.ID is the attorney profile id.
type Detail struct {
	Appointment
	Client         Party
	Attorney       Party
	Specialization string
	Fees           decimal.Decimal
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// ClientView is the form listed under /user/appointments.
func (d *Detail) ClientView() map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID,
		"date":           d.Date,
		"time":           d.TimeSlot,
		"status":         d.Status,
		"symptoms":       d.Symptoms,
		"notes":          d.Notes,
		"doctor_id":      d.AttorneyID,
		"doctor_name":    orUnknown(d.Attorney.Name),
		"specialization": orUnknown(d.Specialization),
		"fees":           d.Fees,
		"createdAt":      d.CreatedAt,
	}
}

// AttorneyView is the form listed under /attorney/appointments.
func (d *Detail) AttorneyView() map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"client":      orUnknown(d.Client.Name),
		"clientEmail": d.Client.Email,
		"clientPhone": d.Client.Phone,
		"date":        d.Date,
		"time":        d.TimeSlot,
		"status":      d.Status,
		"symptoms":    d.Symptoms,
		"notes":       d.Notes,
		"createdAt":   d.CreatedAt,
	}
}

// AdminView is the fully joined form used by the admin endpoints.
func (d *Detail) AdminView() map[string]interface{} {
	return map[string]interface{}{
		"id":       d.ID,
		"date":     d.Date,
		"time":     d.TimeSlot,
		"status":   d.Status,
		"symptoms": d.Symptoms,
		"notes":    d.Notes,
		"patient": map[string]interface{}{
			"id":    d.Client.ID,
			"name":  orUnknown(d.Client.Name),
			"email": orUnknown(d.Client.Email),
			"phone": orUnknown(d.Client.Phone),
		},
		"doctor": map[string]interface{}{
			"id":             d.Attorney.ID,
			"name":           orUnknown(d.Attorney.Name),
			"email":          orUnknown(d.Attorney.Email),
			"phone":          orUnknown(d.Attorney.Phone),
			"specialization": orUnknown(d.Specialization),
			"fees":           d.Fees,
		},
		"createdAt": d.CreatedAt,
	}
}

// RecentEntry is the compact form shown on dashboards.
func (d *Detail) RecentEntry() map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID,
		"date":           d.Date,
		"time":           d.TimeSlot,
		"status":         d.Status,
		"patient":        orUnknown(d.Client.Name),
		"doctor":         orUnknown(d.Attorney.Name),
		"specialization": orUnknown(d.Specialization),
		"fees":           d.Fees,
	}
}

// BookInput is the body of POST /attorney/book-appointment.
type BookInput struct {
	AttorneyID string `json:"doctor_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Symptoms   string `json:"symptoms"`
	Notes      string `json:"notes"`
}

// AdminCreateInput is the body of POST /admin/appointments.
type AdminCreateInput struct {
	UserID     string `json:"user_id"`
	AttorneyID string `json:"doctor_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Symptoms   string `json:"symptoms"`
	Notes      string `json:"notes"`
	Status     string `json:"status"`
}

// ClientStats summarises a client's appointments.
type ClientStats struct {
	TotalVisits          int             `json:"totalVisits"`
	UpcomingAppointments int             `json:"upcomingAppointments"`
	TotalBills           decimal.Decimal `json:"totalBills"`
}

// AttorneyStats summarises an attorney's practice.
type AttorneyStats struct {
	TodayAppointments    int             `json:"todayAppointments"`
	TotalClients         int             `json:"totalClients"`
	UpcomingAppointments int             `json:"upcomingAppointments"`
	Earnings             decimal.Decimal `json:"earnings"`
}

// Overview is the platform-wide appointment summary for the admin dashboard.
type Overview struct {
	Total    int
	ByStatus map[Status]int
	Recent   []*Detail
}
