package gate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tessera-pm/tessera/internal/ledger"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

func newCheckRequest(t *testing.T, actor *tenancy.Actor, body map[string]any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/check", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(tenancy.ContextWithActor(req.Context(), *actor))
	}
	return req
}

func newCheckRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestCheckEndpoint(t *testing.T) {
	f := newGateFixture(t)
	subject := uuid.New()
	f.store.put(f.actor.TenantID, subject, ledger.KindSystem, nil, "project.read")
	router := newCheckRouter(NewHandler(nil, f.gate))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newCheckRequest(t, &f.actor, map[string]any{
		"subject_id": subject.String(),
		"permission": "project.read",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var decision Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	require.Equal(t, OutcomeAllowed, decision.Outcome)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newCheckRequest(t, &f.actor, map[string]any{
		"subject_id": subject.String(),
		"permission": "task.delete",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	require.Equal(t, OutcomeDenied, decision.Outcome)
	require.Equal(t, ReasonNotGranted, decision.Reason)
}

func TestCheckEndpointRequiresActor(t *testing.T) {
	f := newGateFixture(t)
	router := newCheckRouter(NewHandler(nil, f.gate))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newCheckRequest(t, nil, map[string]any{
		"subject_id": uuid.NewString(),
		"permission": "project.read",
	}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckEndpointRejectsBadPayload(t *testing.T) {
	f := newGateFixture(t)
	router := newCheckRouter(NewHandler(nil, f.gate))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newCheckRequest(t, &f.actor, map[string]any{
		"subject_id": "not-a-uuid",
		"permission": "project.read",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckEndpointUnknownPermission(t *testing.T) {
	f := newGateFixture(t)
	router := newCheckRouter(NewHandler(nil, f.gate))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newCheckRequest(t, &f.actor, map[string]any{
		"subject_id": uuid.NewString(),
		"permission": "ghost.permission",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
