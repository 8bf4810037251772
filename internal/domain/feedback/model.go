package feedback

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusReviewed Status = "Reviewed"
	StatusResolved Status = "Resolved"
	StatusArchived Status = "Archived"
)

var Statuses = []Status{StatusPending, StatusReviewed, StatusResolved, StatusArchived}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 5
)

var (
	errInvalidStatus = func() *apperr.Error {
		names := make([]string, len(Statuses))
		for i, s := range Statuses {
			names[i] = string(s)
		}
		return apperr.Validation("Invalid status. Valid statuses are: %s", strings.Join(names, ", "))
	}()
	errAbsent = apperr.NotFound("Feedback not found")
)

// Feedback is a client's note to the administrators.
type Feedback struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	Subject       string     `db:"subject" json:"subject"`
	Message       string     `db:"message" json:"message"`
	Rating        int        `db:"rating" json:"rating"`
	Status        Status     `db:"status" json:"status"`
	AdminResponse string     `db:"admin_response" json:"admin_response"`
	RespondedBy   *uuid.UUID `db:"responded_by" json:"responded_by"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

func (f *Feedback) Receipt() map[string]interface{} {
	return map[string]interface{}{
		"id":        f.ID,
		"subject":   f.Subject,
		"message":   f.Message,
		"rating":    f.Rating,
		"status":    f.Status,
		"createdAt": f.CreatedAt,
	}
}

// OwnerView is the form listed to the submitting client.
func (f *Feedback) OwnerView() map[string]interface{} {
	return map[string]interface{}{
		"id":             f.ID,
		"subject":        f.Subject,
		"message":        f.Message,
		"rating":         f.Rating,
		"status":         f.Status,
		"admin_response": f.AdminResponse,
		"responded_at":   f.RespondedAt,
		"createdAt":      f.CreatedAt,
		"updatedAt":      f.UpdatedAt,
	}
}

type Person struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Detail joins feedback with its author and, once answered, the responder.
type Detail struct {
	Feedback
	User      Person
	Responder *Person
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func (d *Detail) responder() interface{} {
	if d.Responder == nil {
		return nil
	}
	return map[string]interface{}{
		"id":    d.Responder.ID,
		"name":  d.Responder.Name,
		"email": d.Responder.Email,
	}
}

func (d *Detail) AdminView() map[string]interface{} {
	v := d.OwnerView()
	v["user"] = map[string]interface{}{
		"id":    d.User.ID,
		"name":  orUnknown(d.User.Name),
		"email": orUnknown(d.User.Email),
		"phone": orUnknown(d.User.Phone),
	}
	v["responded_by"] = d.responder()
	return v
}

// StatusView is returned after a status change.
func (d *Detail) StatusView() map[string]interface{} {
	return map[string]interface{}{
		"id":      d.ID,
		"subject": d.Subject,
		"status":  d.Status,
		"user": map[string]interface{}{
			"name":  d.User.Name,
			"email": d.User.Email,
		},
	}
}

// ResponseView is returned after an admin response.
func (d *Detail) ResponseView() map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID,
		"subject":        d.Subject,
		"message":        d.Message,
		"admin_response": d.AdminResponse,
		"status":         d.Status,
		"responded_at":   d.RespondedAt,
		"user": map[string]interface{}{
			"name":  d.User.Name,
			"email": d.User.Email,
		},
		"responded_by": d.responder(),
	}
}

// SubmitInput is the body of POST /user/feedback. A zero rating means none
// was given.
type SubmitInput struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

// RespondInput is the body of PUT /admin/feedback/:id/respond.
type RespondInput struct {
	AdminResponse string `json:"admin_response"`
	Status        string `json:"status"`
}
