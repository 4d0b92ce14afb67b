package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"garmentsapi/internal/auth"
	"garmentsapi/internal/config"
	"garmentsapi/internal/middleware"
	"garmentsapi/internal/rate"
	"garmentsapi/internal/service"
	"garmentsapi/internal/util"
	"garmentsapi/internal/version"
)

// Pinger reports whether the configured store backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the optional collaborators of the router.
type Options struct {
	// Verifier checks idToken on POST /jwt. Nil disables the check.
	Verifier auth.IDTokenVerifier
	Store    Pinger
}

type Handlers struct {
	cfg      config.Config
	svc      *service.Service
	gate     *auth.Gate
	verifier auth.IDTokenVerifier
	store    Pinger
	limiter  *rate.Limiter
}

func NewRouter(cfg config.Config, svc *service.Service, gate *auth.Gate, opts Options) http.Handler {
	h := &Handlers{
		cfg:      cfg,
		svc:      svc,
		gate:     gate,
		verifier: opts.Verifier,
		store:    opts.Store,
		limiter:  rate.NewLimiter(),
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.Ready)
	r.Get("/health/version", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, version.Current(cfg.StoreBackend, string(svc.StockMode())))
	})

	r.With(middleware.RateLimit(h.limiter, "jwt", cfg.LoginRateLimitPerMinute, time.Minute, cfg.TrustProxy)).Post("/jwt", h.IssueToken)
	r.Post("/logout", h.Logout)

	r.Get("/products", h.ListProducts)
	r.Get("/products/home", h.HomeProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authn(gate))

		// Suspended accounts can still reach these two.
		r.Post("/users", h.RecordLogin)
		r.Get("/users/me", h.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ResolveCaller(svc))
			r.With(middleware.RateLimit(h.limiter, "orders", cfg.OrderRateLimitPerMinute, time.Minute, cfg.TrustProxy)).Post("/orders", h.PlaceOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Patch("/orders/{id}", h.UpdateOrder)
				r.Post("/products", h.CreateProduct)
				r.Patch("/products/{id}", h.UpdateProduct)
				r.Delete("/products/{id}", h.DeleteProduct)
				r.Get("/users", h.ListUsers)
				r.Patch("/users/{email}/role", h.SetUserRole)
				r.Patch("/users/{email}/status", h.SetUserStatus)
			})
		})
	})

	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"backend":    h.cfg.StoreBackend,
	}
	ok := true
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			ok = false
			ready["store"] = map[string]any{"ok": false, "error": err.Error()}
		} else {
			ready["store"] = map[string]any{"ok": true}
		}
	}
	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, 200, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, 503, ready)
}

// writeServiceError maps service sentinels onto HTTP errors. Store failures
// are logged and surfaced as 500 with the underlying detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	var se *service.StoreError
	switch {
	case errors.Is(err, service.ErrValidation):
		util.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), rid)
	case errors.Is(err, service.ErrInsufficientStock):
		util.WriteError(w, http.StatusBadRequest, "insufficient_stock", "requested quantity exceeds available stock", rid)
	case errors.Is(err, service.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not_found", err.Error(), rid)
	case errors.Is(err, service.ErrForbidden):
		util.WriteError(w, http.StatusForbidden, "forbidden", err.Error(), rid)
	case errors.Is(err, auth.ErrUnauthenticated):
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", rid)
	case errors.As(err, &se):
		log.Printf("store_error op=%q path=%s request_id=%s err=%v", se.Op, r.URL.Path, rid, se.Err)
		util.WriteErrorDetail(w, http.StatusInternalServerError, "internal_error", "storage operation failed", se.Error(), rid)
	default:
		log.Printf("internal_error path=%s request_id=%s err=%v", r.URL.Path, rid, err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
	}
}

func badJSON(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", middleware.RequestID(r.Context()))
}

// caller is set by middleware.ResolveCaller on every route that reads it.
func caller(r *http.Request) service.Caller {
	c, _ := middleware.Caller(r.Context())
	return c
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	limit := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			if l < 1 {
				l = 1
			}
			if l > 100 {
				l = 100
			}
			limit = l
		}
	}
	return page, limit
}

func pageBody[T any](items []T, total, page, limit int) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{"items": items, "total": total, "page": page, "limit": limit}
}
