package feedback

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Feedback
	users map[uuid.UUID]Person
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Feedback), users: make(map[uuid.UUID]Person)}
}

func (m *mockRepo) Create(_ context.Context, f *Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.New()
	m.seq++
	f.CreatedAt = time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
	f.UpdatedAt = f.CreatedAt
	cp := *f
	m.items[f.ID] = &cp
	return nil
}

func (m *mockRepo) detail(f *Feedback) *Detail {
	d := &Detail{Feedback: *f, User: m.users[f.UserID]}
	if f.RespondedBy != nil {
		p := m.users[*f.RespondedBy]
		d.Responder = &p
	}
	return d
}

func (m *mockRepo) GetDetail(_ context.Context, id uuid.UUID) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.items[id]
	if !ok {
		return nil, errAbsent
	}
	return m.detail(f), nil
}

func (m *mockRepo) newest(keep func(*Feedback) bool) []*Feedback {
	var out []*Feedback
	for _, f := range m.items {
		if keep(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newest(func(f *Feedback) bool { return f.UserID == userID }), nil
}

func (m *mockRepo) ListAll(_ context.Context, status string) ([]*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Detail
	for _, f := range m.newest(func(f *Feedback) bool { return status == "" || string(f.Status) == status }) {
		out = append(out, m.detail(f))
	}
	return out, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.items[id]
	if !ok {
		return errAbsent
	}
	f.Status = status
	return nil
}

func (m *mockRepo) Respond(_ context.Context, id uuid.UUID, response string, by uuid.UUID, at time.Time, status *Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.items[id]
	if !ok {
		return errAbsent
	}
	f.AdminResponse = response
	f.RespondedBy = &by
	f.RespondedAt = &at
	if status != nil {
		f.Status = *status
	}
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return errAbsent
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) CountByStatus(_ context.Context, status Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.items {
		if f.Status == status {
			n++
		}
	}
	return n, nil
}

// -- Helpers --

type testEnv struct {
	svc  *Service
	repo *mockRepo
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC) }
	return &testEnv{svc: svc, repo: repo}
}

func (env *testEnv) user(name string, role auth.Role) auth.Principal {
	id := uuid.New()
	env.repo.users[id] = Person{ID: id, Name: name, Email: name + "@example.com"}
	return auth.Principal{UserID: id, Role: role}
}

func (env *testEnv) submit(t *testing.T, caller auth.Principal, subject string) *Feedback {
	t.Helper()
	f, err := env.svc.Submit(context.Background(), caller, SubmitInput{Subject: subject, Message: "details"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return f
}

func messageOf(err error) string {
	if e, ok := err.(*apperr.Error); ok {
		return e.Message
	}
	return ""
}

// -- Tests --

func TestSubmit(t *testing.T) {
	env := newTestEnv()
	client := env.user("ada", auth.RoleClient)

	f, err := env.svc.Submit(context.Background(), client, SubmitInput{Subject: " Slow reply ", Message: " ok ", Rating: 3})
	if err != nil {
		t.Fatal(err)
	}
	if f.Subject != "Slow reply" || f.Message != "ok" || f.Rating != 3 || f.Status != StatusPending {
		t.Errorf("unexpected feedback %+v", f)
	}

	f = env.submit(t, client, "No rating")
	if f.Rating != DefaultRating {
		t.Errorf("expected default rating, got %d", f.Rating)
	}
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv()
	client := env.user("ada", auth.RoleClient)

	tests := []struct {
		name string
		in   SubmitInput
		msg  string
	}{
		{"missing subject", SubmitInput{Message: "m"}, "Subject and message are required"},
		{"blank message", SubmitInput{Subject: "s", Message: "  "}, "Subject and message are required"},
		{"rating too high", SubmitInput{Subject: "s", Message: "m", Rating: 6}, "Rating must be between 1 and 5"},
		{"negative rating", SubmitInput{Subject: "s", Message: "m", Rating: -1}, "Rating must be between 1 and 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Submit(context.Background(), client, tt.in)
			if apperr.KindOf(err) != apperr.KindValidation || messageOf(err) != tt.msg {
				t.Errorf("expected %q, got %v", tt.msg, err)
			}
		})
	}

	attorney := env.user("lee", auth.RoleAttorney)
	if _, err := env.svc.Submit(context.Background(), attorney, SubmitInput{Subject: "s", Message: "m"}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
	if len(env.repo.items) != 0 {
		t.Error("nothing must be stored")
	}
}

func TestListing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	ada := env.user("ada", auth.RoleClient)
	bob := env.user("bob", auth.RoleClient)
	first := env.submit(t, ada, "first")
	env.submit(t, ada, "second")
	env.submit(t, bob, "third")

	mine, _ := env.svc.ListMine(ctx, ada.UserID)
	if len(mine) != 2 || mine[0].Subject != "second" {
		t.Errorf("expected newest first, got %v", mine)
	}

	if _, err := env.svc.UpdateStatus(ctx, first.ID, "Resolved"); err != nil {
		t.Fatal(err)
	}
	resolved, _ := env.svc.ListAll(ctx, "Resolved")
	if len(resolved) != 1 || resolved[0].User.Name != "ada" {
		t.Errorf("unexpected filtered list %v", resolved)
	}
	all, _ := env.svc.ListAll(ctx, "")
	if len(all) != 3 || all[0].Subject != "third" {
		t.Errorf("unexpected full list")
	}
	if none, _ := env.svc.ListAll(ctx, "Bogus"); len(none) != 0 {
		t.Errorf("unknown status must match nothing")
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.submit(t, env.user("ada", auth.RoleClient), "s")

	_, err := env.svc.UpdateStatus(ctx, f.ID, "Closed")
	if messageOf(err) != "Invalid status. Valid statuses are: Pending, Reviewed, Resolved, Archived" {
		t.Errorf("unexpected error %v", err)
	}
	if env.repo.items[f.ID].Status != StatusPending {
		t.Error("invalid status must not mutate")
	}
	d, err := env.svc.UpdateStatus(ctx, f.ID, "Archived")
	if err != nil || d.Status != StatusArchived {
		t.Errorf("expected Archived, got %v %v", d, err)
	}
	if _, err := env.svc.UpdateStatus(ctx, uuid.New(), "Archived"); messageOf(err) != "Feedback not found" {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRespond(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := env.user("root", auth.RoleAdmin)
	client := env.user("ada", auth.RoleClient)

	tests := []struct {
		name   string
		status string
		before Status
		want   Status
	}{
		{"defaults to reviewed", "", StatusPending, StatusReviewed},
		{"explicit status", "Resolved", StatusPending, StatusResolved},
		{"invalid status ignored", "Closed", StatusArchived, StatusArchived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := env.submit(t, client, tt.name)
			env.repo.items[f.ID].Status = tt.before

			d, err := env.svc.Respond(ctx, admin.UserID, f.ID, RespondInput{AdminResponse: " Thanks ", Status: tt.status})
			if err != nil {
				t.Fatal(err)
			}
			if d.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, d.Status)
			}
			if d.AdminResponse != "Thanks" || d.Responder == nil || d.Responder.Name != "root" {
				t.Errorf("unexpected response detail %+v", d)
			}
			if d.RespondedAt == nil || !d.RespondedAt.Equal(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected responded_at %v", d.RespondedAt)
			}
		})
	}

	f := env.submit(t, client, "empty")
	if _, err := env.svc.Respond(ctx, admin.UserID, f.ID, RespondInput{AdminResponse: "  "}); messageOf(err) != "Admin response is required" {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := env.svc.Respond(ctx, admin.UserID, uuid.New(), RespondInput{AdminResponse: "x"}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteAndCount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	client := env.user("ada", auth.RoleClient)
	f := env.submit(t, client, "a")
	env.submit(t, client, "b")

	if n, _ := env.svc.CountPending(ctx); n != 2 {
		t.Errorf("expected 2 pending, got %d", n)
	}
	if err := env.svc.Delete(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Delete(ctx, f.ID); messageOf(err) != "Feedback not found" {
		t.Errorf("expected not found, got %v", err)
	}
	if n, _ := env.svc.CountPending(ctx); n != 1 {
		t.Errorf("expected 1 pending, got %d", n)
	}
}
