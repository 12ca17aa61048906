package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tessera-pm/tessera/internal/catalog"
)

// Cache fronts the resolver with short-lived Redis entries. Keys embed the
// tenant id and a per-user version counter; invalidation bumps the counter so
// stale entries simply stop being addressed. Entries are never shared across
// tenants because the tenant id is part of every key.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) versionKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("authz:ver:%s:%s", tenantID, userID)
}

func (c *Cache) entryKey(ctx context.Context, tenantID, userID uuid.UUID, projectID *uuid.UUID) (string, error) {
	ver, err := c.version(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	project := "-"
	if projectID != nil {
		project = projectID.String()
	}
	return fmt.Sprintf("authz:perms:%s:%s:%s:v%d", tenantID, userID, project, ver), nil
}

func (c *Cache) version(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	key := c.versionKey(tenantID, userID)
	ver, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Fetch loads a cached permission set. The second return is false on a miss.
func (c *Cache) Fetch(ctx context.Context, tenantID, userID uuid.UUID, projectID *uuid.UUID) ([]catalog.Code, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	key, err := c.entryKey(ctx, tenantID, userID, projectID)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var codes []catalog.Code
	if err := json.Unmarshal(payload, &codes); err != nil {
		return nil, false, err
	}
	return codes, true, nil
}

// Store caches a permission set under the current version.
func (c *Cache) Store(ctx context.Context, tenantID, userID uuid.UUID, projectID *uuid.UUID, codes []catalog.Code) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.entryKey(ctx, tenantID, userID, projectID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate bumps the user's version so every cached context for that user
// misses from now on. Called synchronously from assign and revoke.
func (c *Cache) Invalidate(ctx context.Context, tenantID, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(tenantID, userID)).Err()
}
