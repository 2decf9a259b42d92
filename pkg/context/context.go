package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	UserIDKey    = ContextKey("X-User-Id")
	RunIDKey     = ContextKey("X-Run-Id")
	TriggerKey   = ContextKey("X-Trigger")
)

func set(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string { return get(ctx, RequestIDKey) }

func SetMethod(ctx context.Context, method string) context.Context {
	return set(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string { return get(ctx, MethodKey) }

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string { return get(ctx, RouteKey) }

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return set(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string { return get(ctx, RemoteIPKey) }

func SetUserID(ctx context.Context, userID string) context.Context {
	return set(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string { return get(ctx, UserIDKey) }

// SetRunID tags ctx with the sync invocation it belongs to.
func SetRunID(ctx context.Context, runID string) context.Context {
	return set(ctx, RunIDKey, runID)
}

func GetRunID(ctx context.Context) string { return get(ctx, RunIDKey) }

// SetTrigger records what started a run: "cli", "api" or "scheduler".
func SetTrigger(ctx context.Context, trigger string) context.Context {
	return set(ctx, TriggerKey, trigger)
}

func GetTrigger(ctx context.Context) string { return get(ctx, TriggerKey) }
