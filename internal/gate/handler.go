package gate

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/platform/httpx"
	"github.com/tessera-pm/tessera/internal/resolver"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Handler exposes the check endpoint to collaborator services.
type Handler struct {
	logger   *slog.Logger
	gate     *Gate
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gate *Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, gate: gate, validate: validator.New()}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

type checkRequest struct {
	SubjectID  string  `json:"subject_id" validate:"required,uuid4_rfc4122|uuid_rfc4122"`
	Permission string  `json:"permission" validate:"required"`
	ProjectID  *string `json:"project_id,omitempty" validate:"omitempty,uuid_rfc4122"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rc := resolver.Context{TenantID: actor.TenantID}
	if req.ProjectID != nil {
		projectID, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		rc.ProjectID = &projectID
	}
	decision, err := h.gate.Check(r.Context(), actor, subjectID, req.Permission, rc)
	if err != nil {
		h.logger.Error("authz check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}
