package admin

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin console. DELETE /admin/:id only matches a
// single segment, so it does not shadow the nested admin resources.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	e.GET("/admin/dashboard", h.Dashboard, adminOnly)

	e.GET("/admin/users", h.ListUsers, adminOnly)
	e.POST("/admin/users", h.CreateUser, adminOnly)
	e.DELETE("/admin/users/:id", h.DeleteUser, adminOnly)

	e.POST("/admin/create", h.Promote, adminOnly)
	e.GET("/admin/list", h.List, adminOnly)
	e.PUT("/admin/permissions/:id", h.UpdatePermissions, adminOnly)
	e.DELETE("/admin/:id", h.Revoke, adminOnly)
}

func pathID(c echo.Context, absent error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, absent
	}
	return id, nil
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	dash, err := h.svc.Dashboard(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	recent := make([]map[string]interface{}, 0, len(dash.Recent))
	for _, d := range dash.Recent {
		recent = append(recent, d.RecentEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin": map[string]interface{}{
			"name":        dash.Name,
			"email":       dash.Email,
			"permissions": dash.Permissions,
		},
		"stats":              dash.Stats,
		"recentAppointments": recent,
	})
}

func (h *Handler) ListUsers(c echo.Context) error {
	users, total, err := h.svc.ListUsers(c.Request().Context(), pagination.FromContext(c))
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": out, "total": total})
}

func (h *Handler) CreateUser(c echo.Context) error {
	var in identity.RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    u.Profile(),
	})
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := pathID(c, errUserAbsent)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *Handler) Promote(c echo.Context) error {
	var in PromoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.Promote(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Admin created successfully",
		"admin":   p.Receipt(),
	})
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, d := range items {
		out = append(out, d.ListEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"admins": out, "total": len(out)})
}

func (h *Handler) UpdatePermissions(c echo.Context) error {
	id, err := pathID(c, errAbsent)
	if err != nil {
		return err
	}
	var in PermissionsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	d, err := h.svc.UpdatePermissions(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Admin permissions updated successfully",
		"admin":   d.PermissionsView(),
	})
}

func (h *Handler) Revoke(c echo.Context) error {
	id, err := pathID(c, errAbsent)
	if err != nil {
		return err
	}
	if err := h.svc.Revoke(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Admin removed successfully"})
}
