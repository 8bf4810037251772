package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/calendar"
)

// User maps to the app_user table.
type User struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Email        string        `db:"email" json:"email"`
	PasswordHash string        `db:"password_hash" json:"-"`
	Role         auth.Role     `db:"role" json:"role"`
	Phone        string        `db:"phone" json:"phone"`
	Address      string        `db:"address" json:"address"`
	DOB          calendar.Date `db:"dob" json:"dob"`
	Gender       string        `db:"gender" json:"gender"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// Summary is the short form returned by login.
func (u *User) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

// Profile is the form returned by the profile and admin user endpoints.
func (u *User) Profile() map[string]interface{} {
	var dob interface{}
	if !u.DOB.IsZero() {
		dob = u.DOB.String()
	}
	return map[string]interface{}{
		"id":      u.ID,
		"name":    u.Name,
		"email":   u.Email,
		"phone":   u.Phone,
		"address": u.Address,
		"dob":     dob,
		"gender":  u.Gender,
		"role":    u.Role,
	}
}

// RegisterInput is the body of POST /user/register and POST /admin/users.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	DOB      string `json:"dob"`
	Role     string `json:"role"`
}

// ProfileUpdate carries the fields a user may change on their own record.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	DOB     *string `json:"dob"`
	Gender  *string `json:"gender"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		p.Address == nil && p.DOB == nil && p.Gender == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
