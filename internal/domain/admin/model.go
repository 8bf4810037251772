package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

// Permission names an admin capability. Permissions are recorded and shown on
// the dashboard; route access is decided by role alone.
type Permission = string

const (
	PermViewAppointments   Permission = "view_appointments"
	PermManageAppointments Permission = "manage_appointments"
	PermViewUsers          Permission = "view_users"
	PermManageUsers        Permission = "manage_users"
	PermViewDoctors        Permission = "view_doctors"
	PermManageDoctors      Permission = "manage_doctors"
	PermManageLabTests     Permission = "manage_lab_tests"
	PermManageFeedback     Permission = "manage_feedback"
	PermManageAdmins       Permission = "manage_admins"
)

// DefaultPermissions are granted on promotion when the request names none.
var DefaultPermissions = []Permission{
	PermViewAppointments, PermManageAppointments, PermViewUsers, PermViewDoctors,
}

var knownPermissions = map[Permission]bool{
	PermViewAppointments:   true,
	PermManageAppointments: true,
	PermViewUsers:          true,
	PermManageUsers:        true,
	PermViewDoctors:        true,
	PermManageDoctors:      true,
	PermManageLabTests:     true,
	PermManageFeedback:     true,
	PermManageAdmins:       true,
}

// normalizePermissions drops duplicates and rejects unknown names, keeping
// the caller's order.
func normalizePermissions(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		if !knownPermissions[p] {
			return nil, apperr.Validation("Unknown permission: %s", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

var (
	errAbsent        = apperr.NotFound("Admin not found")
	errUserAbsent    = apperr.NotFound("User not found")
	errAlreadyAdmin  = apperr.Conflict("User is already an admin")
	errNoPermissions = apperr.Validation("Permissions are required")
)

// Profile maps to admin_profile. A user holds at most one.
type Profile struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	Permissions []string  `db:"permissions" json:"permissions"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

func (p *Profile) Receipt() map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"userId":      p.UserID,
		"permissions": p.Permissions,
	}
}

// Detail is a profile joined with its user.
type Detail struct {
	Profile
	Name  string
	Email string
	Phone string
	Role  auth.Role
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// ListEntry is the form listed under GET /admin/list.
func (d *Detail) ListEntry() map[string]interface{} {
	role := d.Role
	if role == "" {
		role = auth.RoleAdmin
	}
	return map[string]interface{}{
		"id":          d.ID,
		"name":        orUnknown(d.Name),
		"email":       orUnknown(d.Email),
		"phone":       orUnknown(d.Phone),
		"role":        role,
		"permissions": d.Permissions,
		"createdAt":   d.CreatedAt,
	}
}

func (d *Detail) PermissionsView() map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"email":       d.Email,
		"permissions": d.Permissions,
	}
}

// PromoteInput is the body of POST /admin/create. A nil Permissions slice
// selects DefaultPermissions.
type PromoteInput struct {
	UserID      string   `json:"userId"`
	Permissions []string `json:"permissions"`
}

type PermissionsInput struct {
	Permissions []string `json:"permissions"`
}

// Stats are the platform counters on the admin dashboard.
type Stats struct {
	TotalClients          int `json:"totalClients"`
	TotalAttorneys        int `json:"totalAttorneys"`
	TotalAppointments     int `json:"totalAppointments"`
	PendingAppointments   int `json:"pendingAppointments"`
	ConfirmedAppointments int `json:"confirmedAppointments"`
	CompletedAppointments int `json:"completedAppointments"`
	CancelledAppointments int `json:"cancelledAppointments"`
	RejectedAppointments  int `json:"rejectedAppointments"`
	ExpiredAppointments   int `json:"expiredAppointments"`
	LabTestBookings       int `json:"labTestBookings"`
	PendingFeedback       int `json:"pendingFeedback"`
}
