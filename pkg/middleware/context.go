package middleware

import (
	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TriggerAPI marks runs started through the admin API.
const TriggerAPI = "api"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = fernctx.SetRequestID(ctx, requestID)
			ctx = fernctx.SetMethod(ctx, req.Method)
			ctx = fernctx.SetRoute(ctx, req.URL.Path)
			ctx = fernctx.SetRemoteIP(ctx, c.RealIP())
			ctx = fernctx.SetTrigger(ctx, TriggerAPI)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
