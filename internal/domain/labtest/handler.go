package labtest

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/user/lab-tests", h.ListTests)

	clientOnly := auth.RequireRole(auth.RoleClient)
	e.POST("/user/book-lab-test", h.Book, clientOnly)
	e.GET("/user/lab-test-bookings", h.ListForClient, clientOnly)

	adminOnly := auth.RequireRole(auth.RoleAdmin)
	e.GET("/admin/lab-tests", h.ListTests, adminOnly)
	e.POST("/admin/lab-tests", h.CreateTest, adminOnly)
	e.PUT("/admin/lab-tests/:id", h.UpdateTest, adminOnly)
	e.DELETE("/admin/lab-tests/:id", h.DeleteTest, adminOnly)
	e.GET("/admin/lab-test-bookings", h.ListAll, adminOnly)
	e.PUT("/admin/lab-test-bookings/:id/status", h.UpdateBookingStatus, adminOnly)
	e.DELETE("/admin/lab-test-bookings/:id", h.DeleteBooking, adminOnly)
}

func pathID(c echo.Context, absent error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, absent
	}
	return id, nil
}

func (h *Handler) ListTests(c echo.Context) error {
	tests, err := h.svc.ListTests(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(tests))
	for _, t := range tests {
		out = append(out, t.View())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"labTests": out, "total": len(out)})
}

func (h *Handler) CreateTest(c echo.Context) error {
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	t, err := h.svc.CreateTest(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Lab test created successfully",
		"labTest": t.View(),
	})
}

func (h *Handler) UpdateTest(c echo.Context) error {
	id, err := pathID(c, errTestAbsent)
	if err != nil {
		return err
	}
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	t, err := h.svc.UpdateTest(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Lab test updated successfully",
		"labTest": t.View(),
	})
}

func (h *Handler) DeleteTest(c echo.Context) error {
	id, err := pathID(c, errTestAbsent)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTest(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Lab test deleted successfully"})
}

func (h *Handler) Book(c echo.Context) error {
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	b, err := h.svc.Book(ctx, caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Lab test booked successfully",
		"booking": b.Receipt(),
	})
}

func bookingsBody(items []*BookingDetail, view func(*BookingDetail) map[string]interface{}) map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, d := range items {
		out = append(out, view(d))
	}
	return map[string]interface{}{"bookings": out, "total": len(out)}
}

func (h *Handler) ListForClient(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListForClient(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookingsBody(items, (*BookingDetail).ClientView))
}

func (h *Handler) ListAll(c echo.Context) error {
	items, total, err := h.svc.ListAll(c.Request().Context(), pagination.FromContext(c))
	if err != nil {
		return err
	}
	body := bookingsBody(items, (*BookingDetail).AdminView)
	body["total"] = total
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) UpdateBookingStatus(c echo.Context) error {
	id, err := pathID(c, errBookingAbsent)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	d, err := h.svc.UpdateBookingStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Lab test booking status updated successfully",
		"booking": d.AdminView(),
	})
}

func (h *Handler) DeleteBooking(c echo.Context) error {
	id, err := pathID(c, errBookingAbsent)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBooking(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Lab test booking deleted successfully"})
}
