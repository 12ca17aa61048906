package tenancy

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// IdentityProvider resolves the authenticated actor for a request. The real
// identity service terminates authentication upstream; this boundary only
// receives its verdict.
type IdentityProvider interface {
	ActorFromRequest(r *http.Request) (Actor, error)
}

// ErrNoIdentity indicates the request carries no authenticated principal.
var ErrNoIdentity = errors.New("tenancy: no authenticated actor")

// HeaderIdentityProvider trusts identity headers injected by the edge proxy.
// Suitable behind an authenticating gateway and for local development.
type HeaderIdentityProvider struct{}

// ActorFromRequest reads X-Actor-Id, X-Tenant-Id and X-Super-Admin.
func (HeaderIdentityProvider) ActorFromRequest(r *http.Request) (Actor, error) {
	actorID, err := uuid.Parse(r.Header.Get("X-Actor-Id"))
	if err != nil {
		return Actor{}, ErrNoIdentity
	}
	tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-Id"))
	if err != nil {
		return Actor{}, ErrNoIdentity
	}
	return Actor{
		ID:           actorID,
		TenantID:     tenantID,
		IsSuperAdmin: r.Header.Get("X-Super-Admin") == "true",
	}, nil
}
