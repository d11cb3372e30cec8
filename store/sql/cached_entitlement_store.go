package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-tenancy/core"
)

const entitlementCacheKeyPrefix = "go-tenancy::entitlement::v1"

// CachedEntitlementStore fronts an EntitlementStore with a read-through
// cache. Entitlement reads sit on the hot path of every admission decision;
// toggles invalidate the cached entry before returning so a follow-up read
// never serves the pre-toggle state from this process.
type CachedEntitlementStore struct {
	base  core.EntitlementStore
	cache repositorycache.CacheService
}

type cachedEntitlementLookup struct {
	Entitlement core.Entitlement
	Found       bool
}

func NewCachedEntitlementStore(
	base core.EntitlementStore,
	cacheService repositorycache.CacheService,
) (*CachedEntitlementStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base entitlement store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: entitlement cache service is required")
	}
	return &CachedEntitlementStore{base: base, cache: cacheService}, nil
}

// EntitlementCacheKey returns the deterministic cache key contract for
// entitlement reads: go-tenancy::entitlement::v1::<tenant_id>::<module_key>
// with each segment URL-path escaped.
func EntitlementCacheKey(tenantID, moduleKey string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	moduleKey = strings.TrimSpace(moduleKey)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	if moduleKey == "" {
		return "", fmt.Errorf("sqlstore: module key is required")
	}
	segments := []string{url.PathEscape(tenantID), url.PathEscape(moduleKey)}
	return strings.Join(append([]string{entitlementCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedEntitlementStore) Get(ctx context.Context, tenantID, moduleKey string) (core.Entitlement, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Entitlement{}, false, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	cacheKey, err := EntitlementCacheKey(tenantID, moduleKey)
	if err != nil {
		return core.Entitlement{}, false, err
	}
	lookup, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedEntitlementLookup, error) {
		entitlement, found, fetchErr := s.base.Get(ctx, tenantID, moduleKey)
		if fetchErr != nil {
			return cachedEntitlementLookup{}, fetchErr
		}
		return cachedEntitlementLookup{Entitlement: cloneEntitlement(entitlement), Found: found}, nil
	})
	if err != nil {
		return core.Entitlement{}, false, err
	}
	return cloneEntitlement(lookup.Entitlement), lookup.Found, nil
}

func (s *CachedEntitlementStore) Upsert(ctx context.Context, in core.ToggleEntitlementInput) (core.Entitlement, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Entitlement{}, fmt.Errorf("sqlstore: cached entitlement store is not configured")
	}
	entitlement, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Entitlement{}, err
	}
	cacheKey, err := EntitlementCacheKey(in.TenantID, in.ModuleKey)
	if err != nil {
		return core.Entitlement{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.Entitlement{}, err
	}
	return entitlement, nil
}

func cloneEntitlement(entitlement core.Entitlement) core.Entitlement {
	cloned := entitlement
	cloned.ExpiresAt = cloneTimePointer(entitlement.ExpiresAt)
	return cloned
}

var _ core.EntitlementStore = (*CachedEntitlementStore)(nil)
