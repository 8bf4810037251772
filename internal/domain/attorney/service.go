package attorney

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/blobstore"
)

const imagePrefix = "attorneys"

// Users is the slice of the identity service this package needs.
type Users interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*identity.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in identity.ProfileUpdate) (*identity.User, error)
}

type Service struct {
	repo      Repository
	users     Users
	images    blobstore.Store
	maxUpload int64
}

func NewService(repo Repository, users Users, images blobstore.Store, maxUpload int64) *Service {
	return &Service{repo: repo, users: users, images: images, maxUpload: maxUpload}
}

// Onboard creates the caller's attorney profile. A userId in the body must
// match the caller.
func (s *Service) Onboard(ctx context.Context, caller auth.Principal, in OnboardInput, pic *multipart.FileHeader) (*Profile, error) {
	if caller.Role != auth.RoleAttorney {
		return nil, apperr.Forbidden("Only attorneys can create an attorney profile")
	}
	if id := strings.TrimSpace(in.UserID); id != "" && id != caller.UserID.String() {
		return nil, apperr.Forbidden("You can only create your own attorney profile")
	}

	p := &Profile{
		UserID:         caller.UserID,
		Specialization: strings.TrimSpace(in.Specialization),
		Qualification:  strings.TrimSpace(in.Qualification),
		Experience:     in.Experience,
		Fees:           in.Fees,
	}
	if err := validateProfile(p); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByUserID(ctx, caller.UserID); err == nil {
		return nil, errProfileExists
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	u, err := s.users.GetProfile(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	if pic != nil {
		path, err := s.saveImage(ctx, pic)
		if err != nil {
			return nil, err
		}
		p.ProfilePic = &path
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.removeImage(ctx, p.ProfilePic)
		return nil, err
	}
	p.Name, p.Email, p.Phone, p.Address = u.Name, u.Email, u.Phone, u.Address
	return p, nil
}

func validateProfile(p *Profile) error {
	if p.Specialization == "" || p.Qualification == "" {
		return apperr.Validation("Specialization and qualification are required")
	}
	if p.Experience < 0 {
		return apperr.Validation("Experience cannot be negative")
	}
	if p.Fees.IsNegative() {
		return apperr.Validation("Fees cannot be negative")
	}
	return nil
}

// UpdateProfile applies a partial update to the caller's profile and, when
// user fields are present, to the owning user. A new image replaces the old
// one.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate, pic *multipart.FileHeader) (*Profile, *identity.User, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if in.Specialization != nil {
		p.Specialization = strings.TrimSpace(*in.Specialization)
	}
	if in.Qualification != nil {
		p.Qualification = strings.TrimSpace(*in.Qualification)
	}
	if in.Experience != nil {
		p.Experience = *in.Experience
	}
	if in.Fees != nil {
		p.Fees = *in.Fees
	}
	if err := validateProfile(p); err != nil {
		return nil, nil, err
	}

	var user *identity.User
	if in.touchesUser() {
		user, err = s.users.UpdateProfile(ctx, userID, identity.ProfileUpdate{
			Name:    in.Name,
			Email:   in.Email,
			Phone:   in.Phone,
			Address: in.Address,
		})
		if err != nil {
			return nil, nil, err
		}
		p.Name, p.Email, p.Phone, p.Address = user.Name, user.Email, user.Phone, user.Address
	}

	old := p.ProfilePic
	if pic != nil {
		path, err := s.saveImage(ctx, pic)
		if err != nil {
			return nil, nil, err
		}
		p.ProfilePic = &path
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if pic != nil {
			s.removeImage(ctx, p.ProfilePic)
		}
		return nil, nil, err
	}
	if pic != nil {
		s.removeImage(ctx, old)
	}
	return p, user, nil
}

func (s *Service) saveImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	key, err := blobstore.SaveImage(ctx, s.images, fh, imagePrefix, s.maxUpload)
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return "", apperr.Validation("Profile picture is too large")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return "", apperr.Validation("Profile picture must be a PNG, JPEG, GIF or WebP image")
	case err != nil:
		return "", err
	}
	return blobstore.PublicPath(key), nil
}

// removeImage deletes a stored image. Failures leave an orphaned blob, which
// is harmless.
func (s *Service) removeImage(ctx context.Context, path *string) {
	if path == nil {
		return
	}
	if key := blobstore.KeyFromPublicPath(*path); key != "" {
		_ = s.images.Delete(ctx, key)
	}
}

// GetProfile resolves an attorney by profile id.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProfileByUser resolves the profile owned by a user.
func (s *Service) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List returns the directory. A specialization of "all" means no filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Profile, error) {
	if strings.EqualFold(strings.TrimSpace(f.Specialization), "all") {
		f.Specialization = ""
	}
	return s.repo.List(ctx, f)
}

// ParseFees accepts the numeric strings sent by form posts.
func ParseFees(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, apperr.Validation("Fees must be a number")
	}
	return d, nil
}
