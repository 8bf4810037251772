package labtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

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

func TestHandler_CatalogLifecycle(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)

	rec := do(e, http.MethodPost, "/admin/lab-tests",
		`{"test_name":"Title Search","description":"Deed chain","price":"149.50"}`, &admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != "Lab test created successfully" {
		t.Errorf("unexpected message %v", body["message"])
	}
	id := body["labTest"].(map[string]interface{})["id"].(string)

	rec = do(e, http.MethodPost, "/admin/lab-tests", `{"test_name":"Title Search","price":10}`, &admin)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "Lab test with this name already exists" {
		t.Errorf("expected duplicate name rejection, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPut, "/admin/lab-tests/"+id, `{"price":200}`, &admin)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Lab test updated successfully" {
		t.Errorf("expected update, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/user/lab-tests", "", nil)
	list := decode(t, rec)
	if list["total"] != float64(1) {
		t.Fatalf("expected 1 test, got %v", list["total"])
	}

	rec = do(e, http.MethodDelete, "/admin/lab-tests/"+id, "", &admin)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Lab test deleted successfully" {
		t.Errorf("expected delete, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodDelete, "/admin/lab-tests/"+id, "", &admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_BookAndManage(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	lt := env.createTest(t, "Title Search", "100")
	c := env.client("ada")

	rec := do(e, http.MethodPost, "/user/book-lab-test",
		`{"test_id":"`+lt.ID.String()+`","date":"2025-02-01","time":"09:00","notes":"urgent"}`, &c)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	booking := decode(t, rec)["booking"].(map[string]interface{})
	if booking["status"] != "Pending" || booking["test_id"] != lt.ID.String() || booking["date"] != "2025-02-01" {
		t.Errorf("unexpected receipt %v", booking)
	}
	id := booking["id"].(string)

	rec = do(e, http.MethodGet, "/user/lab-test-bookings", "", &c)
	mine := decode(t, rec)
	entry := mine["bookings"].([]interface{})[0].(map[string]interface{})
	if entry["test_name"] != "Title Search" || entry["notes"] != "urgent" {
		t.Errorf("unexpected entry %v", entry)
	}

	rec = do(e, http.MethodDelete, "/admin/lab-tests/"+lt.ID.String(), "", &admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected guard, got %d", rec.Code)
	}
	if msg := decode(t, rec)["message"]; msg != "Cannot delete lab test. There are 1 booking(s) associated with this test." {
		t.Errorf("unexpected guard message %v", msg)
	}

	rec = do(e, http.MethodPut, "/admin/lab-test-bookings/"+id+"/status", `{"status":"Confirmed"}`, &admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode(t, rec)["booking"].(map[string]interface{})
	if updated["status"] != "Confirmed" || updated["patient"].(map[string]interface{})["name"] != "ada" {
		t.Errorf("unexpected booking %v", updated)
	}

	rec = do(e, http.MethodGet, "/admin/lab-test-bookings", "", &admin)
	if decode(t, rec)["total"] != float64(1) {
		t.Errorf("expected 1 booking in admin list")
	}

	rec = do(e, http.MethodDelete, "/admin/lab-test-bookings/"+id, "", &admin)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Lab test booking deleted successfully" {
		t.Errorf("expected delete, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodPut, "/admin/lab-test-bookings/"+id+"/status", `{"status":"Confirmed"}`, &admin)
	if rec.Code != http.StatusNotFound || decode(t, rec)["message"] != "Lab test booking not found" {
		t.Errorf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_RoleGates(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	c := env.client("ada")

	if rec := do(e, http.MethodPost, "/user/book-lab-test", `{}`, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/user/book-lab-test", `{}`, &admin); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin booking, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/admin/lab-tests", `{}`, &c); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for client on admin route, got %d", rec.Code)
	}
}
