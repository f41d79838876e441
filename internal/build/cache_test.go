package build

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "/icons/home.svg:1700000000:true", CacheKey("/icons/home.svg", 1700000000, true))
	assert.NotEqual(t, CacheKey("/a.svg", 1, false), CacheKey("/a.svg", 1, true))
	assert.NotEqual(t, CacheKey("/a.svg", 1, false), CacheKey("/a.svg", 2, false))
}

func TestParseCacheGetSet(t *testing.T) {
	cache := NewParseCache(10)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	icon := ParsedIcon{ViewBox: "0 0 24 24", Content: "<path/>"}
	cache.Set("k1", "/a.svg", icon)

	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, icon, got)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestParseCacheEvictsOldestInserted(t *testing.T) {
	cache := NewParseCache(3)

	for i := 1; i <= 3; i++ {
		cache.Set(fmt.Sprintf("k%d", i), fmt.Sprintf("/%d.svg", i), ParsedIcon{Content: fmt.Sprint(i)})
	}

	// Reads do not refresh age.
	_, ok := cache.Get("k1")
	require.True(t, ok)

	cache.Set("k4", "/4.svg", ParsedIcon{Content: "4"})

	_, ok = cache.Get("k1")
	assert.False(t, ok, "oldest inserted entry should be evicted")
	for _, key := range []string{"k2", "k3", "k4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

func TestParseCacheReplaceKeepsPosition(t *testing.T) {
	cache := NewParseCache(2)
	cache.Set("k1", "/1.svg", ParsedIcon{Content: "old"})
	cache.Set("k2", "/2.svg", ParsedIcon{Content: "2"})
	cache.Set("k1", "/1.svg", ParsedIcon{Content: "new"})
	cache.Set("k3", "/3.svg", ParsedIcon{Content: "3"})

	_, ok := cache.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestParseCacheInvalidatePath(t *testing.T) {
	cache := NewParseCache(10)
	cache.Set(CacheKey("/icons/a.svg", 1, false), "/icons/a.svg", ParsedIcon{})
	cache.Set(CacheKey("/icons/a.svg", 2, true), "/icons/a.svg", ParsedIcon{})
	cache.Set(CacheKey("/icons/a.svg.bak", 1, false), "/icons/a.svg.bak", ParsedIcon{})
	cache.Set(CacheKey("/icons/b.svg", 1, false), "/icons/b.svg", ParsedIcon{})

	assert.Equal(t, 2, cache.InvalidatePath("/icons/a.svg"))
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 0, cache.InvalidatePath("/icons/a.svg"))

	_, ok := cache.Get(CacheKey("/icons/a.svg.bak", 1, false))
	assert.True(t, ok)
}

func TestParseCacheClear(t *testing.T) {
	cache := NewParseCache(0)
	assert.Equal(t, DefaultCacheSize, cache.Stats().Capacity)

	cache.Set("k", "/k.svg", ParsedIcon{})
	cache.Get("k")
	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, CacheStats{Capacity: DefaultCacheSize}, cache.Stats())

	cache.Set("k2", "/k2.svg", ParsedIcon{})
	assert.Equal(t, 1, cache.Len())
}

func TestParseCacheConcurrentAccess(t *testing.T) {
	cache := NewParseCache(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%80)
				cache.Set(key, fmt.Sprintf("/%d.svg", i%80), ParsedIcon{Content: key})
				cache.Get(key)
				if i%50 == 0 {
					cache.InvalidatePath(fmt.Sprintf("/%d.svg", g))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 50)
}
