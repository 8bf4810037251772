package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

// newTestServer mounts the routes behind a middleware that trusts an
// X-Test-User/X-Test-Role pair, standing in for token authentication.
func newTestServer(env *testEnv) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		status, body := apperr.Body(err)
		c.JSON(status, body)
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role := c.Request().Header.Get("X-Test-Role"); role != "" {
				var p auth.Principal
				p.Role = auth.Role(role)
				p.UserID.UnmarshalText([]byte(c.Request().Header.Get("X-Test-User")))
				c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			}
			return next(c)
		}
	})
	NewHandler(env.svc).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string, p *auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req.Header.Set("X-Test-Role", string(p.Role))
		req.Header.Set("X-Test-User", p.UserID.String())
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandler_BookAndList(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	client := env.dir.addUser("ada", auth.RoleClient)
	_, p := env.dir.addAttorney("a1", 100)
	caller := clientOf(client)

	rec := do(e, http.MethodPost, "/attorney/book-appointment",
		`{"doctor_id":"`+p.ID.String()+`","date":"2025-01-10","time":"10:00","symptoms":"contract review"}`, &caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	appt := body["appointment"].(map[string]interface{})
	if appt["status"] != "Pending" || appt["date"] != "2025-01-10" || appt["time"] != "10:00" {
		t.Errorf("unexpected receipt %v", appt)
	}
	if appt["doctor_id"] != p.ID.String() {
		t.Errorf("unexpected doctor_id %v", appt["doctor_id"])
	}

	rec = do(e, http.MethodPost, "/attorney/book-appointment",
		`{"doctor_id":"`+p.ID.String()+`","date":"2025-01-10","time":"10:00"}`, &caller)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "This time slot is already booked" {
		t.Errorf("expected slot conflict, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/user/appointments", "", &caller)
	list := decode(t, rec)
	if list["total"] != float64(1) {
		t.Errorf("expected 1 appointment, got %v", list["total"])
	}
}

func TestHandler_RoleGates(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	attUser, _ := env.dir.addAttorney("a1", 100)
	attCaller := auth.Principal{UserID: attUser.ID, Role: auth.RoleAttorney}

	if rec := do(e, http.MethodGet, "/admin/appointments", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/admin/appointments", "", &attCaller)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for attorney on admin route, got %d", rec.Code)
	}
	if msg := decode(t, rec)["message"]; msg != "Access denied. Required role: Admin" {
		t.Errorf("unexpected message %v", msg)
	}
	if rec := do(e, http.MethodPost, "/attorney/book-appointment", `{}`, &attCaller); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for attorney booking, got %d", rec.Code)
	}
}

func TestHandler_AdminStatusAndSweep(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	client := env.dir.addUser("ada", auth.RoleClient)
	_, p := env.dir.addAttorney("a1", 100)
	a := env.book(t, client, p, "2025-01-10", "10:00")

	rec := do(e, http.MethodPut, "/admin/appointments/"+a.ID.String()+"/status", `{"status":"Done"}`, &admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.status(t, a.ID) != StatusPending {
		t.Fatal("invalid status must not mutate")
	}

	env.clock = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	rec = do(e, http.MethodPost, "/admin/mark-expired", "", &admin)
	body := decode(t, rec)
	if body["message"] != "1 appointments marked as expired" || body["modifiedCount"] != float64(1) {
		t.Errorf("unexpected sweep response %v", body)
	}

	rec = do(e, http.MethodPut, "/admin/appointments/"+a.ID.String()+"/status", `{"status":"Confirmed"}`, &admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	appt := decode(t, rec)["appointment"].(map[string]interface{})
	if appt["status"] != "Confirmed" {
		t.Errorf("expected Confirmed, got %v", appt["status"])
	}

	rec = do(e, http.MethodDelete, "/admin/appointments/"+a.ID.String(), "", &admin)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", rec.Code)
	}
	rec = do(e, http.MethodDelete, "/admin/appointments/"+a.ID.String(), "", &admin)
	if rec.Code != http.StatusNotFound || decode(t, rec)["message"] != "Appointment not found" {
		t.Errorf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_AdminCreate(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	client := env.dir.addUser("ada", auth.RoleClient)
	_, p := env.dir.addAttorney("a1", 100)

	rec := do(e, http.MethodPost, "/admin/appointments",
		`{"user_id":"`+client.ID.String()+`","doctor_id":"`+p.ID.String()+`","date":"2025-01-10","time":"10:00"}`, &admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	appt := decode(t, rec)["appointment"].(map[string]interface{})
	patient := appt["patient"].(map[string]interface{})
	doctor := appt["doctor"].(map[string]interface{})
	if appt["status"] != "Confirmed" || patient["name"] != "ada" || doctor["name"] != "a1" {
		t.Errorf("unexpected body %v", appt)
	}
}

func TestHandler_AttorneyDashboard(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	attUser, _ := env.dir.addAttorney("a1", 100)
	caller := auth.Principal{UserID: attUser.ID, Role: auth.RoleAttorney}

	rec := do(e, http.MethodGet, "/attorney/dashboard", "", &caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if _, ok := body["stats"].(map[string]interface{}); !ok {
		t.Errorf("expected stats, got %v", body)
	}
	if body["doctor"].(map[string]interface{})["name"] != "a1" {
		t.Errorf("unexpected doctor %v", body["doctor"])
	}
}
