// TEST TYPE: Unit Test
// DEPENDENCIES: Filesystem (temp dirs for FileStore)
// PURPOSE: Test cache keying, invalidation on content change, single-flight
// computation, and the on-disk store round-trip

package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregpriday/copytree/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(content, by string) *cache.Entry {
	return &cache.Entry{Content: content, TransformedBy: by, CreatedAt: time.Now()}
}

func TestKey_ChangesWithContent(t *testing.T) {
	k1 := cache.Key("src/a.go", []byte("v1"))
	k2 := cache.Key("src/a.go", []byte("v2"))
	k3 := cache.Key("src/b.go", []byte("v1"))

	assert.NotEqual(t, k1, k2, "same identity, different content")
	assert.NotEqual(t, k1, k3, "different identity, same content")
	assert.Equal(t, k1, cache.Key("src/a.go", []byte("v1")))
}

func TestCache_HitAndInvalidation(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())

	e, _, err := c.GetOrCompute(ctx, "doc.pdf", []byte("hash-one"), func() (*cache.Entry, error) {
		return entry("extracted text", "pdf"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "extracted text", e.Content)

	// Same content: served from the store, compute not invoked
	e, hit, err := c.GetOrCompute(ctx, "doc.pdf", []byte("hash-one"), func() (*cache.Entry, error) {
		t.Fatal("compute must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "extracted text", e.Content)

	// Changed content: the old entry is unreachable by construction
	e, hit, err = c.GetOrCompute(ctx, "doc.pdf", []byte("hash-two"), func() (*cache.Entry, error) {
		return entry("new text", "pdf"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "new text", e.Content)
}

func TestCache_SingleFlight(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())

	var invocations int64
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := c.GetOrCompute(ctx, "shared.txt", []byte("identical"), func() (*cache.Entry, error) {
				atomic.AddInt64(&invocations, 1)
				<-gate
				return entry("result", "test"), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "result", e.Content)
		}()
	}

	// Let all callers pile onto the same key before releasing the compute
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&invocations) == 1
	}, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&invocations),
		"identical concurrent inputs must compute exactly once")
}

func TestCache_ComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())

	fail := true
	compute := func() (*cache.Entry, error) {
		if fail {
			return nil, assert.AnError
		}
		return entry("recovered", "test"), nil
	}

	_, _, err := c.GetOrCompute(ctx, "flaky.txt", []byte("c"), compute)
	require.Error(t, err)

	fail = false
	e, hit, err := c.GetOrCompute(ctx, "flaky.txt", []byte("c"), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "recovered", e.Content)
}

func TestMemoryStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", entry("v", "t")))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := cache.Key("nested/path/file.docx", []byte("content"))
	original := entry("converted text", "document")
	require.NoError(t, store.Set(ctx, key, original))

	loaded, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original.Content, loaded.Content)
	assert.Equal(t, original.TransformedBy, loaded.TransformedBy)

	_, ok, err = store.Get(ctx, cache.Key("other", []byte("content")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "persist", entry("kept", "t")))

	second, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	loaded, ok, err := second.Get(ctx, "persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", loaded.Content)
}
