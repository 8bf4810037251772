package attorney

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/attorney/all", h.List)
	e.GET("/attorney/public/:id", h.GetPublic)

	attorneyOnly := auth.RequireRole(auth.RoleAttorney)
	e.POST("/attorney/details", h.Onboard, attorneyOnly)
	e.GET("/attorney/profile", h.GetOwnProfile, attorneyOnly)
	e.PUT("/attorney/profile", h.UpdateProfile, attorneyOnly)

	e.GET("/user/consultation/attorneys", h.ListForConsultation, auth.RequireRole(auth.RoleClient))
	e.GET("/admin/doctors", h.ListForAdmin, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Onboard(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	in, err := parseOnboard(fields)
	if err != nil {
		return err
	}
	pic, err := profilePic(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid profile picture upload")
	}

	ctx := c.Request().Context()
	caller, _ := auth.PrincipalFromContext(ctx)
	p, err := h.svc.Onboard(ctx, caller, in, pic)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Attorney details saved successfully",
		"attorney": p.Summary(),
	})
}

func (h *Handler) GetOwnProfile(c echo.Context) error {
	p, err := h.svc.GetProfileByUser(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"attorney": p.DirectoryEntry()})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	in, err := parseUpdate(fields)
	if err != nil {
		return err
	}
	pic, err := profilePic(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid profile picture upload")
	}

	p, user, err := h.svc.UpdateProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), in, pic)
	if err != nil {
		return err
	}
	resp := map[string]interface{}{
		"message":  "Profile updated successfully",
		"attorney": p.Summary(),
	}
	if user != nil {
		resp["user"] = map[string]interface{}{
			"id":      user.ID,
			"name":    user.Name,
			"email":   user.Email,
			"phone":   user.Phone,
			"address": user.Address,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) List(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context(), ListFilter{
		Specialization: c.QueryParam("specialization"),
		Search:         c.QueryParam("search"),
	})
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, p := range list {
		out = append(out, p.DirectoryEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"attorneys": out, "total": len(out)})
}

func (h *Handler) GetPublic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errNotFound
	}
	p, err := h.svc.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"attorney": p.DirectoryEntry()})
}

func (h *Handler) ListForConsultation(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context(), ListFilter{})
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, p := range list {
		out = append(out, p.ConsultationEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"attorneys": out, "total": len(out)})
}

func (h *Handler) ListForAdmin(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context(), ListFilter{})
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, p := range list {
		out = append(out, p.AdminEntry())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctors": out, "total": len(out)})
}

// readFields flattens a JSON object or a form post into string values, so the
// onboarding and update endpoints accept either encoding.
func readFields(c echo.Context) (map[string]string, error) {
	fields := make(map[string]string)
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		dec := json.NewDecoder(c.Request().Body)
		dec.UseNumber()
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		for k, v := range raw {
			switch v := v.(type) {
			case nil:
			case string:
				fields[k] = v
			case json.Number:
				fields[k] = v.String()
			default:
				fields[k] = fmt.Sprint(v)
			}
		}
		return fields, nil
	}

	params, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

func profilePic(c echo.Context) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	fh, err := c.FormFile("profile_pic")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return fh, err
}

func parseOnboard(f map[string]string) (OnboardInput, error) {
	in := OnboardInput{
		UserID:         f["userId"],
		Specialization: f["specialization"],
		Qualification:  f["qualification"],
	}
	if strings.TrimSpace(f["experience"]) == "" || strings.TrimSpace(f["fees"]) == "" {
		return in, apperr.Validation("Specialization, qualification, experience and fees are required")
	}
	exp, err := parseExperience(f["experience"])
	if err != nil {
		return in, err
	}
	fees, err := ParseFees(f["fees"])
	if err != nil {
		return in, err
	}
	in.Experience, in.Fees = exp, fees
	return in, nil
}

func parseUpdate(f map[string]string) (ProfileUpdate, error) {
	var in ProfileUpdate
	str := func(key string) *string {
		if v, ok := f[key]; ok {
			return &v
		}
		return nil
	}
	in.Specialization = str("specialization")
	in.Qualification = str("qualification")
	in.Name = str("name")
	in.Email = str("email")
	in.Phone = str("phone")
	in.Address = str("address")

	if v, ok := f["experience"]; ok {
		exp, err := parseExperience(v)
		if err != nil {
			return in, err
		}
		in.Experience = &exp
	}
	if v, ok := f["fees"]; ok {
		fees, err := ParseFees(v)
		if err != nil {
			return in, err
		}
		in.Fees = &fees
	}
	return in, nil
}

func parseExperience(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Validation("Experience must be a whole number of years")
	}
	return n, nil
}
