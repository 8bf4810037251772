package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/calendar"
	"github.com/counsel/counsel/pkg/pagination"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role auth.Role) (string, error)
}

type Service struct {
	users  UserRepository
	tokens TokenIssuer
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a self-service account. Callers may pick Client or
// Attorney; Admin is only reachable through promotion.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	role := auth.RoleClient
	if strings.TrimSpace(in.Role) != "" {
		r, ok := auth.ParseRole(in.Role)
		if !ok || r == auth.RoleAdmin {
			return nil, apperr.Validation("Role must be Client or Attorney")
		}
		role = r
	}
	return s.Create(ctx, in, role)
}

// Create stores a new user with the given role.
func (s *Service) Create(ctx context.Context, in RegisterInput, role auth.Role) (*User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Name, email, and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("Invalid email address")
	}
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role")
	}

	var dob calendar.Date
	if strings.TrimSpace(in.DOB) != "" {
		d, err := calendar.Parse(in.DOB)
		if err != nil {
			return nil, apperr.Validation("Invalid date of birth")
		}
		dob = d
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errEmailTaken
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		DOB:          dob,
		Gender:       strings.TrimSpace(in.Gender),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, apperr.Validation("Email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, apperr.Validation("Invalid password")
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// ResetPassword sets a new password for the account with this email. The
// route is unauthenticated and rate limited.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if strings.TrimSpace(email) == "" || newPassword == "" {
		return apperr.Validation("Email and new password are required")
	}
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if apperr.IsNotFound(err) {
		return apperr.NotFound("User not found with this email")
	}
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies the non-nil fields of in. An empty name or email is
// rejected; the other fields may be cleared.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return u, nil
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("Name cannot be empty")
		}
		u.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperr.Validation("Invalid email address")
		}
		if email != normalizeEmail(u.Email) {
			if other, err := s.users.GetByEmail(ctx, email); err == nil && other.ID != u.ID {
				return nil, errEmailTaken
			} else if err != nil && !apperr.IsNotFound(err) {
				return nil, err
			}
		}
		u.Email = email
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.Gender != nil {
		u.Gender = strings.TrimSpace(*in.Gender)
	}
	if in.DOB != nil {
		if strings.TrimSpace(*in.DOB) == "" {
			u.DOB = calendar.Date{}
		} else {
			d, err := calendar.Parse(*in.DOB)
			if err != nil {
				return nil, apperr.Validation("Invalid date of birth")
			}
			u.DOB = d
		}
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	if !role.Valid() {
		return apperr.Validation("Invalid role")
	}
	return s.users.UpdateRole(ctx, id, role)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

func (s *Service) ListByRole(ctx context.Context, role auth.Role, page pagination.Params) ([]*User, int, error) {
	return s.users.ListByRole(ctx, role, page)
}

func (s *Service) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	return s.users.CountByRole(ctx, role)
}
