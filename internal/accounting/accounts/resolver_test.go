package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryLookup struct {
	refs  map[string]Ref
	reads int
}

func (m *memoryLookup) RefByCode(ctx context.Context, code string) (Ref, error) {
	m.reads++
	if ref, ok := m.refs[code]; ok {
		return ref, nil
	}
	return Ref{}, ErrAccountNotFound
}

func TestResolverCachesLookups(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memoryLookup{refs: map[string]Ref{
		CodeSalesRevenue: {ID: 41, Type: AccountTypeRevenue},
	}}
	resolver := NewResolver(repo, client, time.Minute)
	ctx := context.Background()

	ref, err := resolver.Resolve(ctx, CodeSalesRevenue)
	require.NoError(t, err)
	require.Equal(t, int64(41), ref.ID)
	require.Equal(t, AccountTypeRevenue, ref.Type)
	require.Equal(t, 1, repo.reads)

	ref, err = resolver.Resolve(ctx, CodeSalesRevenue)
	require.NoError(t, err)
	require.Equal(t, int64(41), ref.ID)
	require.Equal(t, 1, repo.reads, "second resolve should hit redis")
}

func TestResolverNotFound(t *testing.T) {
	repo := &memoryLookup{refs: map[string]Ref{}}
	resolver := NewResolver(repo, nil, 0)

	_, err := resolver.Resolve(context.Background(), "9999")
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSessionMemoisesWithinOperation(t *testing.T) {
	repo := &memoryLookup{refs: map[string]Ref{
		CodeAccountsReceivable: {ID: 12, Type: AccountTypeAsset},
	}}
	resolver := NewResolver(repo, nil, 0)
	sess := resolver.Session()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ref, err := sess.Resolve(ctx, CodeAccountsReceivable)
		require.NoError(t, err)
		require.Equal(t, int64(12), ref.ID)
	}
	require.Equal(t, 1, repo.reads)
}
