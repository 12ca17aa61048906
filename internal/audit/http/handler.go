// Package audithttp exposes the audit timeline over HTTP.
package audithttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessera-pm/tessera/internal/audit"
	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/gate"
	"github.com/tessera-pm/tessera/internal/platform/httpx"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Handler serves the audit timeline.
type Handler struct {
	logger *slog.Logger
	store  *audit.Store
	guard  *tenancy.Guard
	authz  gate.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, store *audit.Store, guard *tenancy.Guard, authz gate.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, guard: guard, authz: authz}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.Require(catalog.CodeAuditView))
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filters := audit.TimelineFilters{
		TenantID: actor.TenantID,
		Event:    r.URL.Query().Get("event"),
	}
	if r.URL.Query().Get("all_tenants") == "true" {
		// Cross-tenant listing goes through the audited bypass.
		if _, err := h.guard.Unscoped(r.Context(), actor); err != nil {
			httpx.RespondError(w, err)
			return
		}
		filters.AllTenants = true
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.From = from
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.To = to
		}
	}
	filters.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filters.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	result, err := h.store.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": result.Rows, "paging": result.Paging})
}
