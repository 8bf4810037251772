package feedback

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	clientOnly := auth.RequireRole(auth.RoleClient)
	e.POST("/user/feedback", h.Submit, clientOnly)
	e.GET("/user/feedback", h.ListMine, clientOnly)

	adminOnly := auth.RequireRole(auth.RoleAdmin)
	e.GET("/admin/feedback", h.ListAll, adminOnly)
	e.PUT("/admin/feedback/:id/status", h.UpdateStatus, adminOnly)
	e.PUT("/admin/feedback/:id/respond", h.Respond, adminOnly)
	e.DELETE("/admin/feedback/:id", h.Delete, adminOnly)
}

func feedbackID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errAbsent
	}
	return id, nil
}

func (h *Handler) Submit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	f, err := h.svc.Submit(ctx, caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Feedback submitted successfully",
		"feedback": f.Receipt(),
	})
}

func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListMine(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, f := range items {
		out = append(out, f.OwnerView())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"feedbacks": out, "total": len(out)})
}

func (h *Handler) ListAll(c echo.Context) error {
	items, err := h.svc.ListAll(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, d := range items {
		out = append(out, d.AdminView())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"feedbacks": out, "total": len(out)})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := feedbackID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	d, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Feedback status updated successfully",
		"feedback": d.StatusView(),
	})
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := feedbackID(c)
	if err != nil {
		return err
	}
	var in RespondInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	d, err := h.svc.Respond(ctx, auth.UserIDFromContext(ctx), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Response added successfully",
		"feedback": d.ResponseView(),
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := feedbackID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Feedback deleted successfully"})
}
