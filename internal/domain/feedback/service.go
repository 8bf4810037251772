package feedback

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Submit records client feedback as Pending. A missing rating counts as
// DefaultRating.
func (s *Service) Submit(ctx context.Context, caller auth.Principal, in SubmitInput) (*Feedback, error) {
	if caller.Role != auth.RoleClient {
		return nil, apperr.Forbidden("Only clients can submit feedback")
	}
	subject, message := strings.TrimSpace(in.Subject), strings.TrimSpace(in.Message)
	if subject == "" || message == "" {
		return nil, apperr.Validation("Subject and message are required")
	}
	rating := in.Rating
	if rating == 0 {
		rating = DefaultRating
	}
	if rating < MinRating || rating > MaxRating {
		return nil, apperr.Validation("Rating must be between %d and %d", MinRating, MaxRating)
	}

	f := &Feedback{
		UserID:  caller.UserID,
		Subject: subject,
		Message: message,
		Rating:  rating,
		Status:  StatusPending,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*Feedback, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListAll returns every entry, or only those in status when it is set. An
// unknown status matches nothing.
func (s *Service) ListAll(ctx context.Context, status string) ([]*Detail, error) {
	return s.repo.ListAll(ctx, strings.TrimSpace(status))
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*Detail, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, errInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

// Respond stores an admin response. Without a status the entry becomes
// Reviewed; an unrecognised status is ignored and the current one kept.
func (s *Service) Respond(ctx context.Context, adminID, id uuid.UUID, in RespondInput) (*Detail, error) {
	response := strings.TrimSpace(in.AdminResponse)
	if response == "" {
		return nil, apperr.Validation("Admin response is required")
	}
	var status *Status
	if in.Status == "" {
		reviewed := StatusReviewed
		status = &reviewed
	} else if st, ok := ParseStatus(in.Status); ok {
		status = &st
	}
	if err := s.repo.Respond(ctx, id, response, adminID, s.now().UTC(), status); err != nil {
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CountPending feeds the admin dashboard.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusPending)
}
