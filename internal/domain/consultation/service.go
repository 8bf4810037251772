package consultation

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/counsel/counsel/internal/domain/attorney"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/db"
	"github.com/counsel/counsel/internal/platform/telemetry"
	"github.com/counsel/counsel/internal/platform/websocket"
)

// TopicPrefix prefixes the websocket topic of every consultation.
const TopicPrefix = "consultation:"

// EventMessageCreated is published for each sent message.
const EventMessageCreated = "message.created"

func Topic(id uuid.UUID) string { return TopicPrefix + id.String() }

// AttorneyLookup resolves attorney profiles.
type AttorneyLookup interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*attorney.Profile, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*attorney.Profile, error)
}

// idSource hands out monotonic ULIDs. MonotonicEntropy is not safe for
// concurrent use, hence the mutex.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

type Service struct {
	repo      Repository
	attorneys AttorneyLookup
	tx        db.Transactor
	publisher websocket.Publisher
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	ids       *idSource
	now       func() time.Time
}

// NewService wires the consultation service. publisher and metrics may be
// nil.
func NewService(repo Repository, attorneys AttorneyLookup, tx db.Transactor, publisher websocket.Publisher, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		attorneys: attorneys,
		tx:        tx,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		ids:       newIDSource(),
		now:       time.Now,
	}
}

// Start opens an Active consultation between the calling client and an
// attorney. A pair may hold only one Active consultation at a time.
func (s *Service) Start(ctx context.Context, caller auth.Principal, in StartInput) (*Consultation, error) {
	if caller.Role != auth.RoleClient {
		return nil, apperr.Forbidden("Only clients can create consultations")
	}
	raw := strings.TrimSpace(in.AttorneyID)
	if raw == "" {
		return nil, apperr.Validation("Attorney ID is required")
	}
	attorneyID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.NotFound("Attorney not found")
	}
	profile, err := s.attorneys.GetProfile(ctx, attorneyID)
	if err != nil {
		return nil, err
	}

	if err := s.activeConflict(ctx, caller.UserID, profile.ID); err != nil {
		return nil, err
	}
	c := &Consultation{
		ClientID:   caller.UserID,
		AttorneyID: profile.ID,
		Status:     StatusActive,
		Subject:    strings.TrimSpace(in.Subject),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return nil, s.conflictFor(ctx, c.ClientID, c.AttorneyID)
		}
		return nil, err
	}
	return c, nil
}

// activeConflict returns ErrActiveExists, carrying the existing id, when the
// pair already has an Active consultation.
func (s *Service) activeConflict(ctx context.Context, clientID, attorneyID uuid.UUID) error {
	existing, err := s.repo.ActiveFor(ctx, clientID, attorneyID)
	switch {
	case apperr.IsNotFound(err):
		return nil
	case err != nil:
		return err
	}
	return ErrActiveExists.With("consultation_id", existing.ID)
}

// conflictFor builds the conflict error after a unique violation.
func (s *Service) conflictFor(ctx context.Context, clientID, attorneyID uuid.UUID) error {
	if err := s.activeConflict(ctx, clientID, attorneyID); err != nil {
		return err
	}
	return ErrActiveExists
}

func (s *Service) ListForClient(ctx context.Context, userID uuid.UUID) ([]*Detail, error) {
	return s.repo.ListByClient(ctx, userID)
}

func (s *Service) ListForAttorney(ctx context.Context, userID uuid.UUID) ([]*Detail, error) {
	profile, err := s.attorneys.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByAttorney(ctx, profile.ID)
}

func (s *Service) ListAll(ctx context.Context) ([]*Detail, error) {
	return s.repo.ListAll(ctx)
}

// authorize admits the owning client, the owning attorney, and admins.
func (s *Service) authorize(ctx context.Context, caller auth.Principal, c *Consultation) error {
	switch caller.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleClient:
		if c.ClientID == caller.UserID {
			return nil
		}
	case auth.RoleAttorney:
		profile, err := s.attorneys.GetProfileByUser(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if profile.ID == c.AttorneyID {
			return nil
		}
	}
	return errNoAccess
}

func (s *Service) load(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Send appends a message to the thread. Admin messages are stored as
// attorney messages carrying AdminReplyPrefix.
func (s *Service) Send(ctx context.Context, caller auth.Principal, id uuid.UUID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyMessage
	}
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	role := caller.Role
	if role == auth.RoleAdmin {
		role = auth.RoleAttorney
		body = AdminReplyPrefix + body
	}
	now := s.now().UTC()
	m := &Message{
		ID:             s.ids.next(now),
		ConsultationID: c.ID,
		SenderID:       caller.UserID,
		SenderRole:     role,
		Body:           body,
		CreatedAt:      now,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateMessage(ctx, m); err != nil {
			return err
		}
		return s.repo.Touch(ctx, c.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MessageSent()
	s.publish(ctx, m)
	return m, nil
}

func (s *Service) publish(ctx context.Context, m *Message) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, Topic(m.ConsultationID), EventMessageCreated, m.Summary()); err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", m.ConsultationID.String()).Msg("publish message")
	}
}

// counterpart is the sender role whose messages a reader marks as read.
// Admins read without marking anything.
func counterpart(reader auth.Role) (auth.Role, bool) {
	switch reader {
	case auth.RoleClient:
		return auth.RoleAttorney, true
	case auth.RoleAttorney:
		return auth.RoleClient, true
	}
	return "", false
}

// Messages returns the thread oldest first and marks the counterpart's
// messages read. The returned read flags are those seen before marking.
func (s *Service) Messages(ctx context.Context, caller auth.Principal, id uuid.UUID) ([]*Message, error) {
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.Messages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if role, ok := counterpart(caller.Role); ok {
		if _, err := s.repo.MarkRead(ctx, c.ID, role); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// UpdateStatus moves a consultation within the status enumeration. Reopening
// is refused while the pair holds another Active consultation.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Principal, id uuid.UUID, raw string) (*Detail, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, errInvalidStatus
	}
	c, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, c.ID, status); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return nil, s.conflictFor(ctx, c.ClientID, c.AttorneyID)
		}
		return nil, err
	}
	return s.repo.GetDetail(ctx, c.ID)
}

// CanSubscribe lets participants and admins listen on a consultation topic.
func (s *Service) CanSubscribe(ctx context.Context, p auth.Principal, topic string) (bool, error) {
	raw, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok {
		return false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return false, nil
	}
	_, err = s.load(ctx, p, id)
	switch kind := apperr.KindOf(err); {
	case err == nil:
		return true, nil
	case kind == apperr.KindNotFound || kind == apperr.KindForbidden:
		return false, nil
	}
	return false, err
}
