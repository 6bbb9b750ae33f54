package stores

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/identra/authz"
)

// CachedRoleStore decorates a RoleRepository with a ristretto read-through
// cache for the permission catalog. Role-to-permission grants change rarely
// compared to how often decisions read them, so a short TTL takes most of
// the read load off the backing store. Assignments are never cached: expiry
// must be judged against the decision instant.
type CachedRoleStore struct {
	inner authz.RoleRepository
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedRoleStore(inner authz.RoleRepository, ttl time.Duration) (*CachedRoleStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedRoleStore{inner: inner, cache: cache, ttl: ttl}, nil
}

func (c *CachedRoleStore) ListActiveRoleAssignments(ctx context.Context, userID, tenantID string) ([]authz.RoleAssignment, error) {
	return c.inner.ListActiveRoleAssignments(ctx, userID, tenantID)
}

func (c *CachedRoleStore) ListActivePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	if v, ok := c.cache.Get(roleID); ok {
		return v.([]authz.Permission), nil
	}
	perms, err := c.inner.ListActivePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(roleID, perms, int64(1+len(perms)), c.ttl)
	return perms, nil
}

// Invalidate drops the cached grants of one role, typically after a grant
// or revoke through the backing store.
func (c *CachedRoleStore) Invalidate(roleID string) {
	c.cache.Del(roleID)
}

// Wait blocks until pending cache writes are applied. Only tests need it.
func (c *CachedRoleStore) Wait() {
	c.cache.Wait()
}

func (c *CachedRoleStore) Close() {
	c.cache.Close()
}
