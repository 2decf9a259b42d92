package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeVerifier struct {
	claims UserClaims
	err    error
}

func (v fakeVerifier) Verify(context.Context, string) (UserClaims, error) {
	return v.claims, v.err
}

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	e.Use(mw...)
	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestContext_SetsRequestValues(t *testing.T) {
	e := newEcho()
	var requestID, trigger string
	e.GET("/ping", func(c echo.Context) error {
		requestID = fernctx.GetRequestID(c.Request().Context())
		trigger = fernctx.GetTrigger(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := do(e, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, TriggerAPI, trigger)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
}

func TestError_MapsHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "httperror", err: httperror.NewHTTPError(http.StatusConflict, "sync already in progress"), wantCode: http.StatusConflict, wantMsg: "sync already in progress"},
		{name: "echo error", err: echo.NewHTTPError(http.StatusNotFound, "not found"), wantCode: http.StatusNotFound, wantMsg: "not found"},
		{name: "plain error", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantMsg: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.GET("/fail", func(echo.Context) error { return tt.err })

			rec := do(e, httptest.NewRequest(http.MethodGet, "/fail", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Message, tt.wantMsg)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier fakeVerifier
		wantCode int
		wantUser string
	}{
		{name: "missing bearer", header: "", wantCode: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", verifier: fakeVerifier{err: errors.New("expired")}, wantCode: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", verifier: fakeVerifier{claims: UserClaims{Sub: "user-1"}}, wantCode: http.StatusOK, wantUser: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(Authentication(testLogger(), tt.verifier))
			var user string
			e.GET("/secure", func(c echo.Context) error {
				user = fernctx.GetUserID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := do(e, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, user)
		})
	}
}

func TestLogger_HandlesErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context(), Logger(testLogger()))
	e.GET("/fail", func(echo.Context) error { return httperror.NewHTTPError(http.StatusBadRequest, "bad") })

	rec := do(e, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "bad")
}
