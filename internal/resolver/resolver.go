// Package resolver computes effective permission sets.
package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/ledger"
	"github.com/tessera-pm/tessera/internal/observability"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Context narrows what a permission check applies to. ProjectID is nil for
// tenant-level checks; project grants never apply outside their project.
type Context struct {
	TenantID  uuid.UUID
	ProjectID *uuid.UUID
}

// PermissionSet is the effective set of granted codes. Absence means denied;
// there is no explicit deny entry.
type PermissionSet map[catalog.Code]struct{}

// Has reports membership.
func (s PermissionSet) Has(code catalog.Code) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the set ordered by code.
func (s PermissionSet) Codes() []catalog.Code {
	codes := make([]catalog.Code, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (s PermissionSet) add(codes []catalog.Code) {
	for _, code := range codes {
		s[code] = struct{}{}
	}
}

// Store answers granted-code queries, one assignment kind at a time.
type Store interface {
	GrantedCodes(ctx context.Context, scope tenancy.Scope, userID uuid.UUID, kind ledger.Kind, projectID *uuid.UUID) ([]catalog.Code, error)
}

// Resolver computes the effective permission set for a user in a context.
// It is stateless and safe for concurrent use; every call re-reads the ledger
// unless the short-TTL cache answers first.
type Resolver struct {
	store   Store
	guard   *tenancy.Guard
	cache   *Cache
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// New constructs a Resolver. cache and metrics may be nil.
func New(store Store, guard *tenancy.Guard, cache *Cache, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, guard: guard, cache: cache, metrics: metrics, logger: logger}
}

// Resolve returns the union of codes granted through effective system,
// project and custom assignments. A non-super-admin resolving against a
// foreign tenant gets the empty set, never an error, so tenant existence
// does not leak through the error surface.
func (r *Resolver) Resolve(ctx context.Context, actor tenancy.Actor, userID uuid.UUID, rc Context) (PermissionSet, error) {
	if !actor.IsSuperAdmin && actor.TenantID != rc.TenantID {
		return PermissionSet{}, nil
	}

	if cached, ok := r.cacheFetch(ctx, rc, userID); ok {
		return cached, nil
	}

	// Concurrent checks for the same user and context collapse into one
	// ledger read.
	key := flightKey(rc, userID)
	result, err, _ := r.group.Do(key, func() (any, error) {
		set, err := r.resolveUncached(ctx, actor, userID, rc)
		if err != nil {
			return nil, err
		}
		r.cacheStore(ctx, rc, userID, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(PermissionSet), nil
}

func (r *Resolver) resolveUncached(ctx context.Context, actor tenancy.Actor, userID uuid.UUID, rc Context) (PermissionSet, error) {
	scope := r.guard.ScopedTo(actor, rc.TenantID.String())
	set := PermissionSet{}

	system, err := r.store.GrantedCodes(ctx, scope, userID, ledger.KindSystem, nil)
	if err != nil {
		return nil, err
	}
	set.add(system)

	if rc.ProjectID != nil {
		project, err := r.store.GrantedCodes(ctx, scope, userID, ledger.KindProject, rc.ProjectID)
		if err != nil {
			return nil, err
		}
		set.add(project)
	}

	custom, err := r.store.GrantedCodes(ctx, scope, userID, ledger.KindCustom, nil)
	if err != nil {
		return nil, err
	}
	set.add(custom)
	return set, nil
}

func flightKey(rc Context, userID uuid.UUID) string {
	project := "-"
	if rc.ProjectID != nil {
		project = rc.ProjectID.String()
	}
	return rc.TenantID.String() + ":" + userID.String() + ":" + project
}

func (r *Resolver) cacheFetch(ctx context.Context, rc Context, userID uuid.UUID) (PermissionSet, bool) {
	if r.cache == nil {
		return nil, false
	}
	codes, ok, err := r.cache.Fetch(ctx, rc.TenantID, userID, rc.ProjectID)
	if err != nil {
		r.logger.Warn("resolver cache fetch", slog.Any("error", err))
		return nil, false
	}
	r.metrics.CountCache(ok)
	if !ok {
		return nil, false
	}
	set := PermissionSet{}
	set.add(codes)
	return set, true
}

func (r *Resolver) cacheStore(ctx context.Context, rc Context, userID uuid.UUID, set PermissionSet) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(ctx, rc.TenantID, userID, rc.ProjectID, set.Codes()); err != nil {
		r.logger.Warn("resolver cache store", slog.Any("error", err))
	}
}
