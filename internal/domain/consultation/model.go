package consultation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusClosed    Status = "Closed"
	StatusCompleted Status = "Completed"
)

var Statuses = []Status{StatusActive, StatusClosed, StatusCompleted}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

var (
	errInvalidStatus = func() *apperr.Error {
		names := make([]string, len(Statuses))
		for i, s := range Statuses {
			names[i] = string(s)
		}
		return apperr.Validation("Invalid status. Valid statuses are: %s", strings.Join(names, ", "))
	}()
	errAbsent       = apperr.NotFound("Consultation not found")
	errNoAccess     = apperr.Forbidden("Unauthorized access to this consultation")
	errEmptyMessage = apperr.Validation("Message is required")

	// ErrActiveExists is returned when a client already has an Active
	// consultation with the attorney. Callers attach the existing id.
	ErrActiveExists = apperr.Conflict("Active consultation already exists with this attorney")
)

// AdminReplyPrefix marks messages an admin sent on an attorney's behalf.
const AdminReplyPrefix = "[Admin Reply] "

// Consultation is a message thread between a client and an attorney profile.
type Consultation struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ClientID   uuid.UUID `db:"client_id" json:"client_id"`
	AttorneyID uuid.UUID `db:"attorney_id" json:"doctor_id"`
	Status     Status    `db:"status" json:"status"`
	Subject    string    `db:"subject" json:"subject"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (c *Consultation) Receipt() map[string]interface{} {
	return map[string]interface{}{
		"id":        c.ID,
		"doctor_id": c.AttorneyID,
		"status":    c.Status,
	}
}

// Party holds a participant's display fields.
type Party struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Detail joins a consultation with both participants.
type Detail struct {
	Consultation
	Client         Party
	Attorney       Party
	Specialization string
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// ClientView is the form listed under /user/consultations.
func (d *Detail) ClientView() map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID,
		"doctor_name":    orUnknown(d.Attorney.Name),
		"doctor_email":   d.Attorney.Email,
		"specialization": d.Specialization,
		"status":         d.Status,
		"subject":        d.Subject,
		"createdAt":      d.CreatedAt,
		"updatedAt":      d.UpdatedAt,
	}
}

// AttorneyView is the form listed under /attorney/consultations.
func (d *Detail) AttorneyView() map[string]interface{} {
	return map[string]interface{}{
		"id":            d.ID,
		"patient_name":  orUnknown(d.Client.Name),
		"patient_email": d.Client.Email,
		"status":        d.Status,
		"subject":       d.Subject,
		"createdAt":     d.CreatedAt,
		"updatedAt":     d.UpdatedAt,
	}
}

func (d *Detail) AdminView() map[string]interface{} {
	return map[string]interface{}{
		"id": d.ID,
		"patient": map[string]interface{}{
			"id":    d.Client.ID,
			"name":  orUnknown(d.Client.Name),
			"email": d.Client.Email,
			"phone": d.Client.Phone,
		},
		"doctor": map[string]interface{}{
			"id":             d.Attorney.ID,
			"name":           orUnknown(d.Attorney.Name),
			"email":          d.Attorney.Email,
			"specialization": d.Specialization,
		},
		"status":    d.Status,
		"subject":   d.Subject,
		"createdAt": d.CreatedAt,
		"updatedAt": d.UpdatedAt,
	}
}

// Message is one entry in a consultation thread. IDs are monotonic ULIDs,
// so ordering by id is ordering by send time.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConsultationID uuid.UUID `db:"consultation_id" json:"consultation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	SenderRole     auth.Role `db:"sender_role" json:"sender_role"`
	Body           string    `db:"message" json:"message"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`

	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
}

// Summary is returned to the sender and pushed to subscribers.
func (m *Message) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":          m.ID,
		"message":     m.Body,
		"sender_role": m.SenderRole,
		"createdAt":   m.CreatedAt,
	}
}

func (m *Message) View() map[string]interface{} {
	return map[string]interface{}{
		"id":          m.ID,
		"message":     m.Body,
		"sender_role": m.SenderRole,
		"sender_name": orUnknown(m.SenderName),
		"createdAt":   m.CreatedAt,
		"read":        m.Read,
	}
}

func (m *Message) AdminView() map[string]interface{} {
	v := m.View()
	v["sender_email"] = m.SenderEmail
	return v
}

// StartInput is the body of POST /user/consultation.
type StartInput struct {
	AttorneyID string `json:"doctor_id"`
	Subject    string `json:"subject"`
}
