package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints. limit guards the credential
// routes against brute force and may be nil.
func (h *Handler) RegisterRoutes(e *echo.Echo, limit echo.MiddlewareFunc) {
	var guard []echo.MiddlewareFunc
	if limit != nil {
		guard = append(guard, limit)
	}
	e.POST("/user/register", h.Register, guard...)
	e.POST("/user/login", h.Login, guard...)
	e.POST("/user/forgot-password", h.ForgotPassword, guard...)

	clientOnly := auth.RequireRole(auth.RoleClient)
	e.GET("/user/profile", h.GetProfile, clientOnly)
	e.PUT("/user/profile", h.UpdateProfile, clientOnly)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    u.Profile(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	token, u, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u.Summary(),
	})
}

type forgotPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req.Email, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Password updated successfully. Please login with your new password.",
	})
}

func (h *Handler) GetProfile(c echo.Context) error {
	u, err := h.svc.GetProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": u.Profile()})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var in ProfileUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	// Clients cannot change their login email here.
	in.Email = nil
	u, err := h.svc.UpdateProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    u.Profile(),
	})
}
