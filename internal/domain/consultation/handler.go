package consultation

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
	e.POST("/user/consultation", h.Start, clientOnly)
	e.GET("/user/consultations", h.ListForClient, clientOnly)
	e.POST("/user/consultation/:consultationId/message", h.Send, clientOnly)
	e.GET("/user/consultation/:consultationId/messages", h.Messages, clientOnly)

	attorneyOnly := auth.RequireRole(auth.RoleAttorney)
	e.GET("/attorney/consultations", h.ListForAttorney, attorneyOnly)
	e.POST("/attorney/consultation/:consultationId/message", h.Send, attorneyOnly)
	e.GET("/attorney/consultation/:consultationId/messages", h.Messages, attorneyOnly)
	e.PUT("/attorney/consultation/:consultationId/status", h.UpdateStatus, attorneyOnly)

	adminOnly := auth.RequireRole(auth.RoleAdmin)
	e.GET("/admin/consultations", h.ListAll, adminOnly)
	e.GET("/admin/consultations/:consultationId/messages", h.Messages, adminOnly)
	e.POST("/admin/consultations/:consultationId/reply", h.Send, adminOnly)
	e.PUT("/admin/consultations/:consultationId/status", h.UpdateStatus, adminOnly)
}

func consultationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("consultationId"))
	if err != nil {
		return uuid.Nil, errAbsent
	}
	return id, nil
}

func (h *Handler) Start(c echo.Context) error {
	var in StartInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	cons, err := h.svc.Start(ctx, caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Consultation created successfully",
		"consultation": cons.Receipt(),
	})
}

func listBody(items []*Detail, view func(*Detail) map[string]interface{}) map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, d := range items {
		out = append(out, view(d))
	}
	return map[string]interface{}{"consultations": out, "total": len(out)}
}

func (h *Handler) ListForClient(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListForClient(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(items, (*Detail).ClientView))
}

func (h *Handler) ListForAttorney(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListForAttorney(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(items, (*Detail).AttorneyView))
}

func (h *Handler) ListAll(c echo.Context) error {
	items, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(items, (*Detail).AdminView))
}

type messageRequest struct {
	Message string `json:"message"`
}

// Send serves the client, attorney and admin reply routes.
func (h *Handler) Send(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	m, err := h.svc.Send(ctx, caller, id, req.Message)
	if err != nil {
		return err
	}
	msg := "Message sent successfully"
	if caller.Role == auth.RoleAdmin {
		msg = "Reply sent successfully"
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     msg,
		"messageData": m.Summary(),
	})
}

func (h *Handler) Messages(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	msgs, err := h.svc.Messages(ctx, caller, id)
	if err != nil {
		return err
	}
	view := (*Message).View
	if caller.Role == auth.RoleAdmin {
		view = (*Message).AdminView
	}
	out := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, view(m))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": out, "total": len(out)})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := consultationID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
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
		"message":      "Consultation status updated successfully",
		"consultation": d.AdminView(),
	})
}
