package handlers

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

// ParseKind reads the :kind path parameter.
func ParseKind(c echo.Context) (models.Kind, error) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		return "", httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid kind: must be one of %v", models.Kinds)
	}
	return kind, nil
}

// ParseSince reads the optional since query parameter.
func ParseSince(c echo.Context) (*time.Time, error) {
	raw := c.QueryParam("since")
	if raw == "" {
		return nil, nil
	}
	since, err := watermark.ParseOverride(raw)
	if err != nil {
		return nil, BadRequest(err.Error())
	}
	return &since, nil
}

// AcceptedResponse returns a 202 Accepted with data
func AcceptedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusAccepted, data)
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}
