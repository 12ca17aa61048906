package gate

import (
	"net/http"

	"log/slog"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/resolver"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// Require ensures the current actor holds the permission in their own tenant.
func (m Middleware) Require(code catalog.Code) func(http.Handler) http.Handler {
	return m.RequireAny(code)
}

// RequireAny ensures the current actor holds at least one of the permissions.
func (m Middleware) RequireAny(codes ...catalog.Code) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(codes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := tenancy.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			rc := resolver.Context{TenantID: actor.TenantID}
			for _, code := range codes {
				decision, err := m.Gate.Check(r.Context(), actor, actor.ID, string(code), rc)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("authz require", slog.String("permission", string(code)), slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if decision.Allowed() {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
