package auth

import "strings"

// Role is the closed set of account roles. Every role check in the API goes
// through RequireRole or a comparison against these constants.
type Role string

const (
	RoleClient   Role = "Client"
	RoleAttorney Role = "Attorney"
	RoleAdmin    Role = "Admin"
)

var roles = map[Role]bool{
	RoleClient:   true,
	RoleAttorney: true,
	RoleAdmin:    true,
}

func (r Role) Valid() bool { return roles[r] }

func (r Role) String() string { return string(r) }

// ParseRole accepts the canonical names case-insensitively.
func ParseRole(s string) (Role, bool) {
	for r := range roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}
