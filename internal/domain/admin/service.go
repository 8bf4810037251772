package admin

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/domain/scheduling"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/db"
	"github.com/counsel/counsel/pkg/pagination"
)

// Users is the slice of the identity service the admin console drives.
type Users interface {
	Create(ctx context.Context, in identity.RegisterInput, role auth.Role) (*identity.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*identity.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role auth.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRole(ctx context.Context, role auth.Role, page pagination.Params) ([]*identity.User, int, error)
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}

// Appointments is the slice of the scheduling engine the admin console drives.
type Appointments interface {
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Overview(ctx context.Context) (*scheduling.Overview, error)
}

// Counter reports a single dashboard figure.
type Counter func(ctx context.Context) (int, error)

type Service struct {
	repo         Repository
	users        Users
	appointments Appointments
	tx           db.Transactor

	labBookings     Counter
	pendingFeedback Counter
}

// NewService wires the admin console. labBookings and pendingFeedback feed
// the dashboard and may be nil.
func NewService(repo Repository, users Users, appointments Appointments, tx db.Transactor, labBookings, pendingFeedback Counter) *Service {
	return &Service{
		repo:            repo,
		users:           users,
		appointments:    appointments,
		tx:              tx,
		labBookings:     labBookings,
		pendingFeedback: pendingFeedback,
	}
}

// Promote grants the Admin role to an existing user and records the profile
// in the same transaction.
func (s *Service) Promote(ctx context.Context, in PromoteInput) (*Profile, error) {
	raw := strings.TrimSpace(in.UserID)
	if raw == "" {
		return nil, apperr.Validation("User ID is required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, errUserAbsent
	}
	if _, err := s.users.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByUser(ctx, userID); err == nil {
		return nil, errAlreadyAdmin
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	perms := in.Permissions
	if perms == nil {
		perms = DefaultPermissions
	}
	perms, err = normalizePermissions(perms)
	if err != nil {
		return nil, err
	}

	p := &Profile{UserID: userID, Permissions: perms}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.users.SetRole(ctx, userID, auth.RoleAdmin)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SeedAdmin creates a user with the Admin role and every permission. It
// bootstraps a fresh installation, where nobody can call Promote yet.
func (s *Service) SeedAdmin(ctx context.Context, in identity.RegisterInput) (*identity.User, *Profile, error) {
	all := make([]string, 0, len(knownPermissions))
	for p := range knownPermissions {
		all = append(all, p)
	}
	sort.Strings(all)

	var (
		u *identity.User
		p *Profile
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.Create(ctx, in, auth.RoleAdmin)
		if err != nil {
			return err
		}
		p = &Profile{UserID: u.ID, Permissions: all}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	return u, p, nil
}

func (s *Service) List(ctx context.Context) ([]*Detail, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdatePermissions(ctx context.Context, id uuid.UUID, in PermissionsInput) (*Detail, error) {
	if in.Permissions == nil {
		return nil, errNoPermissions
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePermissions(ctx, id, perms); err != nil {
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

// Revoke deletes an admin profile and returns its user to the Client role.
// Tokens already issued keep their Admin claim until JWT_TTL runs out.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		return s.users.SetRole(ctx, p.UserID, auth.RoleClient)
	})
}

func (s *Service) ListUsers(ctx context.Context, page pagination.Params) ([]*identity.User, int, error) {
	return s.users.ListByRole(ctx, auth.RoleClient, page)
}

// CreateUser registers a client on someone's behalf.
func (s *Service) CreateUser(ctx context.Context, in identity.RegisterInput) (*identity.User, error) {
	return s.users.Create(ctx, in, auth.RoleClient)
}

// DeleteUser removes a user's appointments and then the user, atomically.
// The user's outstanding tokens stay valid until they expire.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetProfile(ctx, id); err != nil {
			return err
		}
		if _, err := s.appointments.DeleteForUser(ctx, id); err != nil {
			return err
		}
		return s.users.Delete(ctx, id)
	})
}

// Dashboard is the body behind GET /admin/dashboard.
type Dashboard struct {
	Name        string
	Email       string
	Permissions []string
	Stats       Stats
	Recent      []*scheduling.Detail
}

func (s *Service) Dashboard(ctx context.Context, adminID uuid.UUID) (*Dashboard, error) {
	out := &Dashboard{Name: "Admin", Permissions: []string{}}
	if u, err := s.users.GetProfile(ctx, adminID); err == nil {
		out.Name, out.Email = u.Name, u.Email
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}
	if p, err := s.repo.GetByUser(ctx, adminID); err == nil {
		out.Permissions = p.Permissions
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Stats.TotalClients, err = s.users.CountByRole(gctx, auth.RoleClient)
		return err
	})
	g.Go(func() (err error) {
		out.Stats.TotalAttorneys, err = s.users.CountByRole(gctx, auth.RoleAttorney)
		return err
	})
	g.Go(func() error {
		ov, err := s.appointments.Overview(gctx)
		if err != nil {
			return err
		}
		out.Stats.TotalAppointments = ov.Total
		out.Stats.PendingAppointments = ov.ByStatus[scheduling.StatusPending]
		out.Stats.ConfirmedAppointments = ov.ByStatus[scheduling.StatusConfirmed]
		out.Stats.CompletedAppointments = ov.ByStatus[scheduling.StatusCompleted]
		out.Stats.CancelledAppointments = ov.ByStatus[scheduling.StatusCancelled]
		out.Stats.RejectedAppointments = ov.ByStatus[scheduling.StatusRejected]
		out.Stats.ExpiredAppointments = ov.ByStatus[scheduling.StatusExpired]
		out.Recent = ov.Recent
		return nil
	})
	if s.labBookings != nil {
		g.Go(func() (err error) {
			out.Stats.LabTestBookings, err = s.labBookings(gctx)
			return err
		})
	}
	if s.pendingFeedback != nil {
		g.Go(func() (err error) {
			out.Stats.PendingFeedback, err = s.pendingFeedback(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
