package blobstore

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ServeHandler streams a stored blob for GET /uploads/*.
func ServeHandler(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, obj, err := store.Open(c.Request().Context(), c.Param("*"))
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
				return echo.NewHTTPError(http.StatusNotFound, "File not found")
			}
			return err
		}
		defer rc.Close()

		contentType := obj.ContentType
		if contentType == "" {
			contentType = echo.MIMEOctetStream
		}
		if obj.Size > 0 {
			c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
		}
		return c.Stream(http.StatusOK, contentType, rc)
	}
}
