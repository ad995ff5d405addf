package translator_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdblues/translator/pkg/translator"
)

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	cache := translator.NewFileCache(filepath.Join(dir, "cache"))

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	require.NoError(t, cache.Set("abc123", "번역된 텍스트"))

	got, ok := cache.Get("abc123")
	assert.True(t, ok)
	assert.Equal(t, "번역된 텍스트", got)

	// 条目落盘为 <key>.json
	_, err := os.Stat(filepath.Join(dir, "cache", "abc123.json"))
	assert.NoError(t, err)

	require.NoError(t, cache.Clear())
	_, ok = cache.Get("abc123")
	assert.False(t, ok)
}

func TestFileCacheCorruptedEntry(t *testing.T) {
	dir := t.TempDir()
	cache := translator.NewFileCache(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))

	_, ok := cache.Get("bad")
	assert.False(t, ok)
}

func TestFileCacheClearMissingDir(t *testing.T) {
	cache := translator.NewFileCache(filepath.Join(t.TempDir(), "never-created"))
	assert.NoError(t, cache.Clear())
}

func TestMemoryCache(t *testing.T) {
	cache := translator.NewMemoryCache()

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	require.NoError(t, cache.Set("k", "v"))
	got, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	require.NoError(t, cache.Clear())
	_, ok = cache.Get("k")
	assert.False(t, ok)
}

// TestMemoryCacheConcurrent 并发读写不应触发竞态
func TestMemoryCacheConcurrent(t *testing.T) {
	cache := translator.NewMemoryCache()
	require.NoError(t, cache.Set("shared", "value"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if n%2 == 0 {
					_, _ = cache.Get("shared")
				} else {
					_ = cache.Set("shared", "value")
				}
			}
		}(i)
	}
	wg.Wait()

	got, ok := cache.Get("shared")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}
