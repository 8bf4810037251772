package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/admin/appointments/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/appointments/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/admin/appointments/:id", "204"))
	if got != 2 {
		t.Errorf("expected 2 requests on the route pattern, got %v", got)
	}
}

func TestMiddleware_RecordsErrorStatus(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/user/profile", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "no")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/profile", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/user/profile", "403")); got != 1 {
		t.Errorf("expected one 403, got %v", got)
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.BookingCreated("appointment")
	m.Conflict("appointment")
	m.Conflict("appointment")
	m.Expired(3)
	m.Expired(0)
	m.MessageSent()

	if got := testutil.ToFloat64(m.bookings.WithLabelValues("appointment")); got != 1 {
		t.Errorf("bookings = %v", got)
	}
	if got := testutil.ToFloat64(m.conflicts.WithLabelValues("appointment")); got != 2 {
		t.Errorf("conflicts = %v", got)
	}
	if got := testutil.ToFloat64(m.expired); got != 3 {
		t.Errorf("expired = %v", got)
	}
	if got := testutil.ToFloat64(m.messages); got != 1 {
		t.Errorf("messages = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.BookingCreated("appointment")
	m.Conflict("consultation")
	m.Expired(1)
	m.MessageSent()
	m.SetWebsocketClients(4)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.BookingCreated("lab_test")

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `counsel_bookings_created_total{kind="lab_test"} 1`) {
		t.Errorf("expected bookings counter in output")
	}
}
