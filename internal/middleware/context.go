package middleware

import (
	"context"
	"net/http"

	"garmentsapi/internal/auth"
	"garmentsapi/internal/service"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxIdentity  ctxKey = "identity"
	ctxCaller    ctxKey = "caller"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func Identity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok
}

func WithCaller(ctx context.Context, c service.Caller) context.Context {
	return context.WithValue(ctx, ctxCaller, c)
}

func Caller(ctx context.Context) (service.Caller, bool) {
	c, ok := ctx.Value(ctxCaller).(service.Caller)
	return c, ok
}

// SecurityHeaders sets headers for a JSON-only API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
