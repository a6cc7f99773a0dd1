package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LookupPort is the slice of Repository the resolver needs.
type LookupPort interface {
	RefByCode(ctx context.Context, code string) (Ref, error)
}

// Resolver resolves account codes to posting refs. Codes are the stable
// contract between business logic and the chart of accounts; they survive
// reseeding and schema migration where internal ids do not.
type Resolver struct {
	repo  LookupPort
	cache *redis.Client
	ttl   time.Duration
}

// NewResolver builds a Resolver. cache may be nil, in which case every lookup
// hits the repository.
func NewResolver(repo LookupPort, cache *redis.Client, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(ctx context.Context, code string) string {
	return fmt.Sprintf("coa:%s:%s", shared.TenantFromContext(ctx), code)
}

// Resolve returns the ref for a code, ErrAccountNotFound when absent.
// Cache misses and cache errors fall through to the repository.
func (r *Resolver) Resolve(ctx context.Context, code string) (Ref, error) {
	if code == "" {
		return Ref{}, ErrAccountNotFound
	}
	if r.cache != nil {
		// A cold or unreachable cache degrades to a repository read.
		if raw, err := r.cache.Get(ctx, cacheKey(ctx, code)).Bytes(); err == nil {
			var ref Ref
			if err := json.Unmarshal(raw, &ref); err == nil && ref.ID != 0 {
				return ref, nil
			}
		}
	}
	ref, err := r.repo.RefByCode(ctx, code)
	if err != nil {
		return Ref{}, err
	}
	if r.cache != nil {
		if raw, err := json.Marshal(ref); err == nil {
			_ = r.cache.Set(ctx, cacheKey(ctx, code), raw, r.ttl).Err()
		}
	}
	return ref, nil
}

// Session returns a per-operation resolver that memoises lookups so a posting
// routine resolving the same code twice pays for one read.
func (r *Resolver) Session() *Session {
	return &Session{resolver: r, memo: make(map[string]Ref)}
}

// Session memoises Resolve results for the lifetime of one posting operation.
// Not safe for concurrent use; each operation takes its own.
type Session struct {
	resolver *Resolver
	memo     map[string]Ref
}

// Resolve behaves like Resolver.Resolve with per-session memoisation.
func (s *Session) Resolve(ctx context.Context, code string) (Ref, error) {
	if ref, ok := s.memo[code]; ok {
		return ref, nil
	}
	ref, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return Ref{}, err
	}
	s.memo[code] = ref
	return ref, nil
}
