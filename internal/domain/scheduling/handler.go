package scheduling

import (
	"fmt"
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
	clientOnly := auth.RequireRole(auth.RoleClient)
	e.POST("/attorney/book-appointment", h.Book, clientOnly)
	e.GET("/user/appointments", h.ListForClient, clientOnly)
	e.GET("/user/dashboard", h.ClientDashboard, clientOnly)

	attorneyOnly := auth.RequireRole(auth.RoleAttorney)
	e.GET("/attorney/appointments", h.ListForAttorney, attorneyOnly)
	e.PUT("/attorney/appointments/:id/status", h.UpdateStatus, attorneyOnly)
	e.GET("/attorney/dashboard", h.AttorneyDashboard, attorneyOnly)

	adminOnly := auth.RequireRole(auth.RoleAdmin)
	e.GET("/admin/appointments", h.ListAll, adminOnly)
	e.POST("/admin/appointments", h.AdminCreate, adminOnly)
	e.PUT("/admin/appointments/:id/status", h.UpdateStatus, adminOnly)
	e.DELETE("/admin/appointments/:id", h.Delete, adminOnly)
	e.POST("/admin/mark-expired", h.MarkExpired, adminOnly)
}

func appointmentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errAppointmentAbsent
	}
	return id, nil
}

func (h *Handler) Book(c echo.Context) error {
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	a, err := h.svc.Book(ctx, caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Appointment booked successfully",
		"appointment": a.Receipt(),
	})
}

func (h *Handler) AdminCreate(c echo.Context) error {
	var in AdminCreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	d, err := h.svc.AdminCreate(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Appointment booked successfully",
		"appointment": d.AdminView(),
	})
}

func listBody(items []*Detail, view func(*Detail) map[string]interface{}) map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, d := range items {
		out = append(out, view(d))
	}
	return map[string]interface{}{"appointments": out, "total": len(out)}
}

func (h *Handler) ListForClient(c echo.Context) error {
	items, err := h.svc.ListForClient(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(items, (*Detail).ClientView))
}

func (h *Handler) ListForAttorney(c echo.Context) error {
	items, err := h.svc.ListForAttorney(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(items, (*Detail).AttorneyView))
}

func (h *Handler) ListAll(c echo.Context) error {
	page := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), page)
	if err != nil {
		return err
	}
	body := listBody(items, (*Detail).AdminView)
	body["total"] = total
	return c.JSON(http.StatusOK, body)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus serves both the admin and the attorney route; the service
// scopes attorneys to their own appointments.
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	d, err := h.svc.UpdateStatus(ctx, caller, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment status updated successfully",
		"appointment": d.AdminView(),
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment deleted successfully"})
}

func (h *Handler) MarkExpired(c echo.Context) error {
	n, err := h.svc.SweepExpired(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("%d appointments marked as expired", n),
		"modifiedCount": n,
	})
}

func (h *Handler) ClientDashboard(c echo.Context) error {
	dash, err := h.svc.ClientDashboard(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	recent := make([]map[string]interface{}, 0, len(dash.Recent))
	for _, d := range dash.Recent {
		recent = append(recent, d.RecentEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":    dash.User.ID,
			"name":  dash.User.Name,
			"email": dash.User.Email,
			"phone": dash.User.Phone,
		},
		"stats":              dash.Stats,
		"recentAppointments": recent,
	})
}

func (h *Handler) AttorneyDashboard(c echo.Context) error {
	dash, err := h.svc.AttorneyDashboard(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	doctor := dash.Profile.DirectoryEntry()
	doctor["address"] = dash.Profile.Address
	delete(doctor, "available")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor": doctor,
		"stats":  dash.Stats,
	})
}
