package attorney

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile maps to the attorney_profile table. Name, Email, Phone and Address
// are joined from the owning app_user row at read time.
type Profile struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"userId"`
	Specialization string          `db:"specialization" json:"specialization"`
	Qualification  string          `db:"qualification" json:"qualification"`
	Experience     int             `db:"experience" json:"experience"`
	Fees           decimal.Decimal `db:"fees" json:"fees"`
	ProfilePic     *string         `db:"profile_pic" json:"profile_pic"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// DirectoryEntry is the public listing form.
func (p *Profile) DirectoryEntry() map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"name":           p.Name,
		"email":          p.Email,
		"phone":          p.Phone,
		"specialization": p.Specialization,
		"qualification":  p.Qualification,
		"experience":     p.Experience,
		"fees":           p.Fees,
		"profile_pic":    p.ProfilePic,
		"available":      true,
	}
}

// ConsultationEntry is the form listed to clients choosing whom to consult.
func (p *Profile) ConsultationEntry() map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"name":           p.Name,
		"email":          p.Email,
		"specialization": p.Specialization,
		"qualification":  p.Qualification,
		"experience":     p.Experience,
		"fees":           p.Fees,
	}
}

// AdminEntry is the form listed under /admin/doctors.
func (p *Profile) AdminEntry() map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"name":           p.Name,
		"email":          p.Email,
		"phone":          p.Phone,
		"specialization": p.Specialization,
		"fees":           p.Fees,
		"experience":     p.Experience,
		"qualification":  p.Qualification,
		"createdAt":      p.CreatedAt,
	}
}

// Summary is the profile-only form returned after onboarding and updates.
func (p *Profile) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"userId":         p.UserID,
		"specialization": p.Specialization,
		"qualification":  p.Qualification,
		"experience":     p.Experience,
		"fees":           p.Fees,
		"profile_pic":    p.ProfilePic,
	}
}

// OnboardInput is the body of POST /attorney/details.
type OnboardInput struct {
	UserID         string
	Specialization string
	Qualification  string
	Experience     int
	Fees           decimal.Decimal
}

// ProfileUpdate carries a partial update of the profile and its user. Nil
// fields are left untouched.
type ProfileUpdate struct {
	Specialization *string
	Qualification  *string
	Experience     *int
	Fees           *decimal.Decimal

	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

func (u ProfileUpdate) touchesUser() bool {
	return u.Name != nil || u.Email != nil || u.Phone != nil || u.Address != nil
}

// ListFilter narrows the public directory. Both fields match
// case-insensitively as substrings; Search covers name, specialization and
// qualification.
type ListFilter struct {
	Specialization string
	Search         string
}
