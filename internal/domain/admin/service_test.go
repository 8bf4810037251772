package admin

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/domain/scheduling"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/pagination"
)

// -- Shared in-memory state --

// world backs every mock so mockTx can snapshot and roll back all of them.
type world struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*identity.User
	profiles     map[uuid.UUID]*Profile
	appointments map[uuid.UUID]int // per user
	seq          int
	failDelete   bool
}

func newWorld() *world {
	return &world{
		users:        make(map[uuid.UUID]*identity.User),
		profiles:     make(map[uuid.UUID]*Profile),
		appointments: make(map[uuid.UUID]int),
	}
}

func (w *world) tick() time.Time {
	w.seq++
	return time.Date(2025, 1, 1, 0, 0, w.seq, 0, time.UTC)
}

type snapshot struct {
	users        map[uuid.UUID]identity.User
	profiles     map[uuid.UUID]Profile
	appointments map[uuid.UUID]int
}

func (w *world) snapshot() snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := snapshot{
		users:        make(map[uuid.UUID]identity.User, len(w.users)),
		profiles:     make(map[uuid.UUID]Profile, len(w.profiles)),
		appointments: make(map[uuid.UUID]int, len(w.appointments)),
	}
	for k, v := range w.users {
		s.users[k] = *v
	}
	for k, v := range w.profiles {
		s.profiles[k] = *v
	}
	for k, v := range w.appointments {
		s.appointments[k] = v
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users = make(map[uuid.UUID]*identity.User, len(s.users))
	for k, v := range s.users {
		v := v
		w.users[k] = &v
	}
	w.profiles = make(map[uuid.UUID]*Profile, len(s.profiles))
	for k, v := range s.profiles {
		v := v
		w.profiles[k] = &v
	}
	w.appointments = s.appointments
}

type mockTx struct{ w *world }

func (m mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.w.snapshot()
	if err := fn(ctx); err != nil {
		m.w.restore(snap)
		return err
	}
	return nil
}

// -- Mock Users --

type mockUsers struct{ w *world }

func (m mockUsers) Create(_ context.Context, in identity.RegisterInput, role auth.Role) (*identity.User, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if strings.TrimSpace(in.Name) == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Name, email, and password are required")
	}
	for _, u := range m.w.users {
		if u.Email == email {
			return nil, apperr.Conflict("Email already registered")
		}
	}
	u := &identity.User{ID: uuid.New(), Name: in.Name, Email: email, Role: role, Phone: in.Phone, CreatedAt: m.w.tick()}
	m.w.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m mockUsers) GetProfile(_ context.Context, id uuid.UUID) (*identity.User, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	u, ok := m.w.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (m mockUsers) SetRole(_ context.Context, id uuid.UUID, role auth.Role) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	u, ok := m.w.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.Role = role
	return nil
}

func (m mockUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if m.w.failDelete {
		return errors.New("connection reset")
	}
	if _, ok := m.w.users[id]; !ok {
		return apperr.NotFound("User not found")
	}
	delete(m.w.users, id)
	for pid, p := range m.w.profiles {
		if p.UserID == id {
			delete(m.w.profiles, pid)
		}
	}
	return nil
}

func (m mockUsers) ListByRole(_ context.Context, role auth.Role, page pagination.Params) ([]*identity.User, int, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	var out []*identity.User
	for _, u := range m.w.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := page.Window(len(out))
	return out[start:end], len(out), nil
}

func (m mockUsers) CountByRole(_ context.Context, role auth.Role) (int, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	n := 0
	for _, u := range m.w.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// -- Mock Repository --

type mockRepo struct{ w *world }

func (m mockRepo) Create(_ context.Context, p *Profile) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if _, ok := m.w.users[p.UserID]; !ok {
		return errUserAbsent
	}
	for _, existing := range m.w.profiles {
		if existing.UserID == p.UserID {
			return errAlreadyAdmin
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = m.w.tick()
	cp := *p
	m.w.profiles[p.ID] = &cp
	return nil
}

func (m mockRepo) GetByUser(_ context.Context, userID uuid.UUID) (*Profile, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	for _, p := range m.w.profiles {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errAbsent
}

func (m mockRepo) detail(p *Profile) *Detail {
	d := &Detail{Profile: *p}
	if u, ok := m.w.users[p.UserID]; ok {
		d.Name, d.Email, d.Phone, d.Role = u.Name, u.Email, u.Phone, u.Role
	}
	return d
}

func (m mockRepo) GetDetail(_ context.Context, id uuid.UUID) (*Detail, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	p, ok := m.w.profiles[id]
	if !ok {
		return nil, errAbsent
	}
	return m.detail(p), nil
}

func (m mockRepo) List(_ context.Context) ([]*Detail, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	var out []*Detail
	for _, p := range m.w.profiles {
		out = append(out, m.detail(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m mockRepo) UpdatePermissions(_ context.Context, id uuid.UUID, permissions []string) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	p, ok := m.w.profiles[id]
	if !ok {
		return errAbsent
	}
	p.Permissions = permissions
	return nil
}

func (m mockRepo) Delete(_ context.Context, id uuid.UUID) (*Profile, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	p, ok := m.w.profiles[id]
	if !ok {
		return nil, errAbsent
	}
	delete(m.w.profiles, id)
	return p, nil
}

// -- Mock Appointments --

type mockAppointments struct {
	w        *world
	overview scheduling.Overview
}

func (m *mockAppointments) DeleteForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	n := m.w.appointments[userID]
	delete(m.w.appointments, userID)
	return int64(n), nil
}

func (m *mockAppointments) Overview(context.Context) (*scheduling.Overview, error) {
	cp := m.overview
	return &cp, nil
}

// -- Helpers --

type testEnv struct {
	w     *world
	users mockUsers
	appts *mockAppointments
	svc   *Service
}

func newTestEnv() *testEnv {
	w := newWorld()
	env := &testEnv{w: w, users: mockUsers{w: w}, appts: &mockAppointments{w: w}}
	labs := func(context.Context) (int, error) { return 3, nil }
	pending := func(context.Context) (int, error) { return 2, nil }
	env.svc = NewService(mockRepo{w: w}, env.users, env.appts, mockTx{w: w}, labs, pending)
	return env
}

func (env *testEnv) user(t *testing.T, name string, role auth.Role) *identity.User {
	t.Helper()
	u, err := env.users.Create(context.Background(), identity.RegisterInput{
		Name: name, Email: name + "@example.com", Password: "secret",
	}, role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (env *testEnv) role(id uuid.UUID) auth.Role {
	env.w.mu.Lock()
	defer env.w.mu.Unlock()
	if u, ok := env.w.users[id]; ok {
		return u.Role
	}
	return ""
}

func (env *testEnv) promote(t *testing.T, u *identity.User) *Profile {
	t.Helper()
	p, err := env.svc.Promote(context.Background(), PromoteInput{UserID: u.ID.String()})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	return p
}

// -- Tests --

func TestService_Promote(t *testing.T) {
	env := newTestEnv()
	u := env.user(t, "ada", auth.RoleClient)

	p := env.promote(t, u)
	if p.UserID != u.ID {
		t.Errorf("expected user %s, got %s", u.ID, p.UserID)
	}
	if strings.Join(p.Permissions, ",") != strings.Join(DefaultPermissions, ",") {
		t.Errorf("expected default permissions, got %v", p.Permissions)
	}
	if env.role(u.ID) != auth.RoleAdmin {
		t.Errorf("expected role Admin, got %s", env.role(u.ID))
	}

	_, err := env.svc.Promote(context.Background(), PromoteInput{UserID: u.ID.String()})
	if err == nil || err.Error() != "User is already an admin" {
		t.Errorf("expected already-admin error, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("expected conflict kind, got %v", apperr.KindOf(err))
	}
}

func TestService_Promote_Validation(t *testing.T) {
	env := newTestEnv()
	u := env.user(t, "ada", auth.RoleClient)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PromoteInput
		want string
	}{
		{"missing id", PromoteInput{}, "User ID is required"},
		{"malformed id", PromoteInput{UserID: "nope"}, "User not found"},
		{"unknown user", PromoteInput{UserID: uuid.New().String()}, "User not found"},
		{"unknown permission", PromoteInput{UserID: u.ID.String(), Permissions: []string{"launch_rockets"}}, "Unknown permission: launch_rockets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Promote(ctx, tt.in)
			if err == nil || err.Error() != tt.want {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
		})
	}
	if env.role(u.ID) != auth.RoleClient {
		t.Error("failed promotion must not change the role")
	}
}

func TestService_Promote_ExplicitPermissions(t *testing.T) {
	env := newTestEnv()
	u := env.user(t, "ada", auth.RoleClient)

	p, err := env.svc.Promote(context.Background(), PromoteInput{
		UserID:      u.ID.String(),
		Permissions: []string{PermManageFeedback, PermManageFeedback, PermViewUsers},
	})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if strings.Join(p.Permissions, ",") != "manage_feedback,view_users" {
		t.Errorf("expected deduplicated permissions, got %v", p.Permissions)
	}

	v := env.user(t, "bob", auth.RoleClient)
	p, err = env.svc.Promote(context.Background(), PromoteInput{UserID: v.ID.String(), Permissions: []string{}})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(p.Permissions) != 0 {
		t.Errorf("explicit empty list must be kept, got %v", p.Permissions)
	}
}

func TestService_UpdatePermissions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.promote(t, env.user(t, "ada", auth.RoleClient))

	d, err := env.svc.UpdatePermissions(ctx, p.ID, PermissionsInput{Permissions: []string{PermManageAdmins}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if d.Name != "ada" || len(d.Permissions) != 1 || d.Permissions[0] != PermManageAdmins {
		t.Errorf("unexpected detail %+v", d)
	}

	if _, err := env.svc.UpdatePermissions(ctx, p.ID, PermissionsInput{}); !errors.Is(err, errNoPermissions) {
		t.Errorf("expected permissions required, got %v", err)
	}
	if _, err := env.svc.UpdatePermissions(ctx, uuid.New(), PermissionsInput{Permissions: []string{}}); !errors.Is(err, errAbsent) {
		t.Errorf("expected admin not found, got %v", err)
	}
}

func TestService_Revoke(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := env.user(t, "ada", auth.RoleClient)
	p := env.promote(t, u)

	if err := env.svc.Revoke(ctx, p.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if env.role(u.ID) != auth.RoleClient {
		t.Errorf("expected role Client after revoke, got %s", env.role(u.ID))
	}
	if err := env.svc.Revoke(ctx, p.ID); !errors.Is(err, errAbsent) {
		t.Errorf("expected admin not found, got %v", err)
	}

	// Promotion works again once revoked.
	env.promote(t, u)
}

func TestService_List(t *testing.T) {
	env := newTestEnv()
	env.promote(t, env.user(t, "ada", auth.RoleClient))
	env.promote(t, env.user(t, "bob", auth.RoleClient))

	items, err := env.svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Name != "bob" || items[1].Name != "ada" {
		t.Errorf("expected newest first, got %v", items)
	}
	if items[0].Role != auth.RoleAdmin {
		t.Errorf("expected joined role Admin, got %s", items[0].Role)
	}
}

func TestService_Users(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.user(t, "att", auth.RoleAttorney)

	u, err := env.svc.CreateUser(ctx, identity.RegisterInput{Name: "ada", Email: "ADA@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != auth.RoleClient {
		t.Errorf("admin-created users are clients, got %s", u.Role)
	}
	if _, err := env.svc.CreateUser(ctx, identity.RegisterInput{Name: "x", Email: "ada@example.com", Password: "pw"}); err == nil || err.Error() != "Email already registered" {
		t.Errorf("expected duplicate email, got %v", err)
	}

	users, total, err := env.svc.ListUsers(ctx, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(users) != 1 || users[0].ID != u.ID {
		t.Errorf("expected only the client, got %d %v", total, users)
	}
}

func TestService_DeleteUser_CascadesAppointments(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := env.user(t, "ada", auth.RoleClient)
	other := env.user(t, "bob", auth.RoleClient)
	env.w.appointments[u.ID] = 3
	env.w.appointments[other.ID] = 1

	if err := env.svc.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := env.w.users[u.ID]; ok {
		t.Error("user should be gone")
	}
	if env.w.appointments[u.ID] != 0 || env.w.appointments[other.ID] != 1 {
		t.Errorf("unexpected appointments %v", env.w.appointments)
	}

	if err := env.svc.DeleteUser(ctx, u.ID); err == nil || err.Error() != "User not found" {
		t.Errorf("expected user not found, got %v", err)
	}
}

func TestService_DeleteUser_RollsBack(t *testing.T) {
	env := newTestEnv()
	u := env.user(t, "ada", auth.RoleClient)
	env.w.appointments[u.ID] = 2
	env.w.failDelete = true

	if err := env.svc.DeleteUser(context.Background(), u.ID); err == nil {
		t.Fatal("expected error")
	}
	if env.w.appointments[u.ID] != 2 {
		t.Errorf("appointments must survive a failed delete, got %d", env.w.appointments[u.ID])
	}
}

func TestService_SeedAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	u, p, err := env.svc.SeedAdmin(ctx, identity.RegisterInput{Name: "root", Email: "root@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if u.Role != auth.RoleAdmin || p.UserID != u.ID {
		t.Errorf("unexpected seed result %+v %+v", u, p)
	}
	if len(p.Permissions) != len(knownPermissions) || !sort.StringsAreSorted(p.Permissions) {
		t.Errorf("expected every permission sorted, got %v", p.Permissions)
	}

	if _, _, err := env.svc.SeedAdmin(ctx, identity.RegisterInput{Name: "root", Email: "root@example.com", Password: "pw"}); err == nil {
		t.Error("expected duplicate seed to fail")
	}
}

func TestService_Dashboard(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.user(t, "c1", auth.RoleClient)
	env.user(t, "c2", auth.RoleClient)
	env.user(t, "a1", auth.RoleAttorney)
	me := env.user(t, "root", auth.RoleClient)
	env.promote(t, me)

	recent := &scheduling.Detail{Client: scheduling.Party{Name: "c1"}, Attorney: scheduling.Party{Name: "a1"}}
	recent.Status = scheduling.StatusPending
	env.appts.overview = scheduling.Overview{
		Total: 4,
		ByStatus: map[scheduling.Status]int{
			scheduling.StatusPending:   2,
			scheduling.StatusCompleted: 1,
			scheduling.StatusExpired:   1,
		},
		Recent: []*scheduling.Detail{recent},
	}

	dash, err := env.svc.Dashboard(ctx, me.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Name != "root" || len(dash.Permissions) != len(DefaultPermissions) {
		t.Errorf("unexpected admin block %+v", dash)
	}
	want := Stats{
		TotalClients:          2,
		TotalAttorneys:        1,
		TotalAppointments:     4,
		PendingAppointments:   2,
		CompletedAppointments: 1,
		ExpiredAppointments:   1,
		LabTestBookings:       3,
		PendingFeedback:       2,
	}
	if dash.Stats != want {
		t.Errorf("stats = %+v, want %+v", dash.Stats, want)
	}
	if len(dash.Recent) != 1 {
		t.Errorf("expected 1 recent appointment, got %d", len(dash.Recent))
	}
}

func TestService_Dashboard_WithoutProfile(t *testing.T) {
	env := newTestEnv()
	dash, err := env.svc.Dashboard(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Name != "Admin" || dash.Email != "" || dash.Permissions == nil || len(dash.Permissions) != 0 {
		t.Errorf("expected fallback admin block, got %+v", dash)
	}
}

func TestService_Dashboard_CounterError(t *testing.T) {
	env := newTestEnv()
	boom := errors.New("feedback store down")
	failing := func(context.Context) (int, error) { return 0, boom }
	svc := NewService(mockRepo{w: env.w}, env.users, env.appts, mockTx{w: env.w}, nil, failing)

	if _, err := svc.Dashboard(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Errorf("expected counter error, got %v", err)
	}
}
