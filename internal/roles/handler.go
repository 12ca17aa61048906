package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/platform/httpx"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Authz is the slice of the authorization gate middleware this handler needs.
// It is satisfied by gate.Middleware; declaring it here keeps roles from
// importing gate, which would close an import cycle through resolver.
type Authz interface {
	Require(code catalog.Code) func(http.Handler) http.Handler
}

// Handler manages role management endpoints.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.Require(catalog.CodeRoleManage))
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Get("/{roleID}", h.getRole)
	r.Patch("/{roleID}", h.updateRole)
	r.Delete("/{roleID}", h.deleteRole)
	r.Get("/{roleID}/permissions", h.listGrants)
	r.Post("/{roleID}/permissions", h.grant)
	r.Delete("/{roleID}/permissions/{code}", h.revokeGrant)
}

type createRoleRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Scope         string `json:"scope" validate:"required,oneof=system project custom"`
	AllowOverride bool   `json:"allow_override"`
}

type updateRoleRequest struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Scope *string `json:"scope,omitempty"`
}

type grantRequest struct {
	Permission    string `json:"permission" validate:"required"`
	AllowOverride bool   `json:"allow_override"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	result, err := h.service.ListRoles(r.Context(), actor)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": result})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	scope, err := ParseRoleScope(req.Scope)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), actor, req.Name, scope, req.AllowOverride)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), actor, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	params := UpdateParams{Name: req.Name}
	if req.Scope != nil {
		scope, err := ParseRoleScope(*req.Scope)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		params.Scope = &scope
	}
	role, err := h.service.UpdateRole(r.Context(), actor, roleID, params)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actor, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	grants, err := h.service.PermissionsOf(r.Context(), actor, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Grant(r.Context(), actor, roleID, req.Permission, req.AllowOverride); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	actor, roleID, ok := h.actorAndRole(w, r)
	if !ok {
		return
	}
	if err := h.service.RevokeGrant(r.Context(), actor, roleID, chi.URLParam(r, "code")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) actorAndRole(w http.ResponseWriter, r *http.Request) (tenancy.Actor, uuid.UUID, bool) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return tenancy.Actor{}, uuid.Nil, false
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return tenancy.Actor{}, uuid.Nil, false
	}
	return actor, roleID, true
}
