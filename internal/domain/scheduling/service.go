package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counsel/counsel/internal/domain/attorney"
	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/telemetry"
	"github.com/counsel/counsel/pkg/calendar"
	"github.com/counsel/counsel/pkg/pagination"
)

const metricKind = "appointment"

// AttorneyLookup resolves attorney profiles.
type AttorneyLookup interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*attorney.Profile, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*attorney.Profile, error)
}

// UserLookup resolves users.
type UserLookup interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	repo      Repository
	attorneys AttorneyLookup
	users     UserLookup
	metrics   *telemetry.Metrics
	loc       *time.Location
	now       func() time.Time
}

// NewService wires the scheduling engine. loc decides which calendar day is
// "today" for the expiry sweep and the dashboards. metrics may be nil.
func NewService(repo Repository, attorneys AttorneyLookup, users UserLookup, metrics *telemetry.Metrics, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		attorneys: attorneys,
		users:     users,
		metrics:   metrics,
		loc:       loc,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) today() calendar.Date {
	return calendar.Today(s.now(), s.loc)
}

// Book creates a Pending appointment for a client.
func (s *Service) Book(ctx context.Context, caller auth.Principal, in BookInput) (*Appointment, error) {
	if caller.Role != auth.RoleClient {
		return nil, apperr.Forbidden("Only clients can book appointments")
	}
	if strings.TrimSpace(in.AttorneyID) == "" || strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return nil, apperr.Validation("Attorney ID, date, and time are required")
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	profile, err := s.resolveAttorney(ctx, in.AttorneyID)
	if err != nil {
		return nil, err
	}
	if own, err := s.attorneys.GetProfileByUser(ctx, caller.UserID); err == nil && own.ID == profile.ID {
		return nil, apperr.Validation("Attorneys cannot book appointments with themselves")
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}

	a := &Appointment{
		UserID:     caller.UserID,
		AttorneyID: profile.ID,
		Date:       date,
		TimeSlot:   strings.TrimSpace(in.Time),
		Symptoms:   in.Symptoms,
		Notes:      in.Notes,
		Status:     StatusPending,
	}
	if err := s.insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AdminCreate books on behalf of a user. The status defaults to Confirmed.
func (s *Service) AdminCreate(ctx context.Context, in AdminCreateInput) (*Detail, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.AttorneyID) == "" ||
		strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return nil, apperr.Validation("User ID, Attorney ID, date, and time are required")
	}
	status := StatusConfirmed
	if in.Status != "" {
		st, ok := ParseStatus(in.Status)
		if !ok {
			return nil, errInvalidStatus
		}
		status = st
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(strings.TrimSpace(in.UserID))
	if err != nil {
		return nil, apperr.NotFound("User not found")
	}
	user, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.resolveAttorney(ctx, in.AttorneyID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		UserID:     user.ID,
		AttorneyID: profile.ID,
		Date:       date,
		TimeSlot:   strings.TrimSpace(in.Time),
		Symptoms:   in.Symptoms,
		Notes:      in.Notes,
		Status:     status,
	}
	if err := s.insert(ctx, a); err != nil {
		return nil, err
	}
	return &Detail{
		Appointment:    *a,
		Client:         Party{ID: user.ID, Name: user.Name, Email: user.Email, Phone: user.Phone},
		Attorney:       Party{ID: profile.ID, Name: profile.Name, Email: profile.Email, Phone: profile.Phone},
		Specialization: profile.Specialization,
		Fees:           profile.Fees,
	}, nil
}

// insert runs the advisory slot check and the insert. The storage layer
// enforces the same rule, so a lost race also surfaces as ErrSlotBooked.
func (s *Service) insert(ctx context.Context, a *Appointment) error {
	taken, err := s.repo.SlotTaken(ctx, a.AttorneyID, a.Date, a.TimeSlot)
	if err != nil {
		return err
	}
	if taken {
		s.metrics.Conflict(metricKind)
		return ErrSlotBooked
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotBooked) {
			s.metrics.Conflict(metricKind)
		}
		return err
	}
	s.metrics.BookingCreated(metricKind)
	return nil
}

func (s *Service) resolveAttorney(ctx context.Context, raw string) (*attorney.Profile, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperr.NotFound("Attorney not found")
	}
	return s.attorneys.GetProfile(ctx, id)
}

func parseDate(raw string) (calendar.Date, error) {
	d, err := calendar.Parse(raw)
	if err != nil {
		return calendar.Date{}, apperr.Validation("Invalid date. Use YYYY-MM-DD")
	}
	return d, nil
}

// ListForClient returns the caller's appointments, soonest first.
func (s *Service) ListForClient(ctx context.Context, userID uuid.UUID) ([]*Detail, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListForAttorney returns the appointments booked against the caller's
// profile, soonest first.
func (s *Service) ListForAttorney(ctx context.Context, userID uuid.UUID) ([]*Detail, error) {
	profile, err := s.attorneys.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByAttorney(ctx, profile.ID)
}

// ListAll runs the expiry sweep and then returns every appointment, latest
// first.
func (s *Service) ListAll(ctx context.Context, page pagination.Params) ([]*Detail, int, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.ListAll(ctx, page)
}

// UpdateStatus sets the status of an appointment. Admins may update any
// appointment, attorneys only their own. Every transition between members
// of the enumeration is allowed.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Principal, id uuid.UUID, raw string) (*Detail, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, errInvalidStatus
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch caller.Role {
	case auth.RoleAdmin:
	case auth.RoleAttorney:
		profile, err := s.attorneys.GetProfileByUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if profile.ID != a.AttorneyID {
			return nil, apperr.Forbidden("You can only update your own appointments")
		}
	default:
		return nil, apperr.Forbidden("Access denied")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrSlotBooked) {
			s.metrics.Conflict(metricKind)
		}
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// DeleteForUser removes every appointment a user booked.
func (s *Service) DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.DeleteByUser(ctx, userID)
}

// SweepExpired marks appointments whose date has begun in the configured zone
// Expired, today's included. Completed, Cancelled and already Expired
// appointments are left alone, so repeated runs change nothing further.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkExpired(ctx, s.today())
	if err != nil {
		return 0, err
	}
	s.metrics.Expired(n)
	return n, nil
}

// ClientDashboard is the body behind GET /user/dashboard.
type ClientDashboard struct {
	User   *identity.User
	Stats  ClientStats
	Recent []*Detail
}

func (s *Service) ClientDashboard(ctx context.Context, userID uuid.UUID) (*ClientDashboard, error) {
	user, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	out := &ClientDashboard{User: user, Stats: ClientStats{TotalBills: decimal.Zero}}
	for _, d := range list {
		if d.Status == StatusCompleted {
			out.Stats.TotalVisits++
		}
		if d.Status.IsActive() && !d.Date.Before(today) {
			out.Stats.UpcomingAppointments++
		}
		out.Stats.TotalBills = out.Stats.TotalBills.Add(d.Fees)
	}
	out.Recent = latest(list, 5)
	return out, nil
}

// latest returns up to n appointments ordered by date, latest first.
func latest(list []*Detail, n int) []*Detail {
	sorted := make([]*Detail, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.After(sorted[j].Date) && !sorted[j].Date.After(sorted[i].Date) {
			return sorted[i].TimeSlot > sorted[j].TimeSlot
		}
		return sorted[i].Date.After(sorted[j].Date)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// AttorneyDashboard is the body behind GET /attorney/dashboard.
type AttorneyDashboard struct {
	Profile *attorney.Profile
	Stats   AttorneyStats
}

func (s *Service) AttorneyDashboard(ctx context.Context, userID uuid.UUID) (*AttorneyDashboard, error) {
	profile, err := s.attorneys.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByAttorney(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	clients := make(map[uuid.UUID]struct{})
	completed := 0
	out := &AttorneyDashboard{Profile: profile}
	for _, d := range list {
		clients[d.UserID] = struct{}{}
		sameDay := !d.Date.Before(today) && !d.Date.After(today)
		if sameDay && d.Status != StatusCancelled {
			out.Stats.TodayAppointments++
		}
		if d.Status.IsActive() && !d.Date.Before(today) {
			out.Stats.UpcomingAppointments++
		}
		if d.Status == StatusCompleted {
			completed++
		}
	}
	out.Stats.TotalClients = len(clients)
	out.Stats.Earnings = profile.Fees.Mul(decimal.NewFromInt(int64(completed)))
	return out, nil
}

// Overview summarises appointments for the admin dashboard.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Recent(ctx, 5)
	if err != nil {
		return nil, err
	}
	out := &Overview{ByStatus: counts, Recent: recent}
	for _, n := range counts {
		out.Total += n
	}
	return out, nil
}
