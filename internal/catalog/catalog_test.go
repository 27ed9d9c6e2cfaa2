package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	names []string
	err   error
	calls int
}

func (f *fakeSource) CatalogNames(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func TestCacheReload(t *testing.T) {
	t.Parallel()

	src := &fakeSource{names: []string{"Fund Accounting", "Portfolio Management"}}
	cache := NewCache(src, nil)

	assert.Empty(t, cache.Names())
	assert.True(t, cache.LoadedAt().IsZero())

	require.NoError(t, cache.Reload(context.Background()))

	assert.Equal(t, []string{"Fund Accounting", "Portfolio Management"}, cache.Names())
	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.LoadedAt().IsZero())
	assert.Equal(t, 1, src.calls)
}

func TestCacheReloadFailureKeepsOldNames(t *testing.T) {
	t.Parallel()

	src := &fakeSource{names: []string{"Fund Accounting"}}
	cache := NewCache(src, nil)
	require.NoError(t, cache.Reload(context.Background()))

	src.err = errors.New("connection refused")
	err := cache.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reload catalog")

	assert.Equal(t, []string{"Fund Accounting"}, cache.Names())
}

func TestCacheNamesReturnsCopy(t *testing.T) {
	t.Parallel()

	src := &fakeSource{names: []string{"Fund Accounting", "Rebalancing"}}
	cache := NewCache(src, nil)
	require.NoError(t, cache.Reload(context.Background()))

	got := cache.Names()
	got[0] = "mutated"

	assert.Equal(t, []string{"Fund Accounting", "Rebalancing"}, cache.Names())
}
