package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/platform/httpx"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Authz is the slice of the authorization gate middleware this handler needs.
// It is satisfied by gate.Middleware; declaring it here keeps ledger from
// importing gate, which would close an import cycle through resolver.
type Authz interface {
	Require(code catalog.Code) func(http.Handler) http.Handler
}

// Handler manages assignment management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    Authz
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz Authz) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, authz: authz, validate: validator.New()}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.Require(catalog.CodeAssignmentManage))
	r.Post("/", h.assign)
	r.Delete("/{assignmentID}", h.revoke)
	r.Get("/user/{userID}", h.listForUser)
	r.Get("/user/{userID}/effective", h.effectiveForUser)
}

type assignRequest struct {
	Kind      string     `json:"kind" validate:"required,oneof=system project custom"`
	UserID    string     `json:"user_id" validate:"required,uuid_rfc4122"`
	RoleID    string     `json:"role_id" validate:"required,uuid_rfc4122"`
	ProjectID *string    `json:"project_id,omitempty" validate:"omitempty,uuid_rfc4122"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	params := AssignParams{Kind: kind, UserID: userID, RoleID: roleID, ExpiresAt: req.ExpiresAt}
	if req.ProjectID != nil {
		projectID, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		params.ProjectID = &projectID
	}
	assignment, err := h.service.Assign(r.Context(), actor, params)
	if err != nil {
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.Revoke(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.actorAndUser(w, r)
	if !ok {
		return
	}
	assignments, err := h.service.AssignmentsFor(r.Context(), actor, userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) effectiveForUser(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.actorAndUser(w, r)
	if !ok {
		return
	}
	kind, err := ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		projectID = &id
	}
	assignments, err := h.service.EffectiveAssignmentsFor(r.Context(), actor, userID, kind, projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) actorAndUser(w http.ResponseWriter, r *http.Request) (tenancy.Actor, uuid.UUID, bool) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return tenancy.Actor{}, uuid.Nil, false
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return tenancy.Actor{}, uuid.Nil, false
	}
	return actor, userID, true
}
