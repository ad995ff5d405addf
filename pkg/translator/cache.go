package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache 翻译结果缓存接口
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Clear() error
}

// FileCache 是基于文件系统的缓存实现
type FileCache struct {
	cacheDir string
	mutex    sync.RWMutex
}

// CacheEntry 表示缓存条目
type CacheEntry struct {
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// NewFileCache 创建一个新的基于文件的缓存
func NewFileCache(cacheDir string) *FileCache {
	return &FileCache{
		cacheDir: cacheDir,
	}
}

// Get 从缓存中获取值
func (c *FileCache) Get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	filePath := filepath.Join(c.cacheDir, key+".json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}

	// 更新访问时间
	entry.AccessedAt = time.Now()
	updatedData, _ := json.Marshal(entry)
	_ = os.WriteFile(filePath, updatedData, 0644)

	return entry.Value, true
}

// Set 将值存储到缓存中
func (c *FileCache) Set(key string, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}

	entry := CacheEntry{
		Value:      value,
		CreatedAt:  time.Now(),
		AccessedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化缓存条目失败: %w", err)
	}

	filePath := filepath.Join(c.cacheDir, key+".json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入缓存文件失败: %w", err)
	}

	return nil
}

// Clear 清除缓存
func (c *FileCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取缓存目录失败: %w", err)
	}

	for _, entry := range entries {
		if err := os.Remove(filepath.Join(c.cacheDir, entry.Name())); err != nil {
			return fmt.Errorf("删除缓存文件失败 %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// MemoryCache 是内存中的缓存实现
type MemoryCache struct {
	cache map[string]CacheEntry
	mutex sync.RWMutex
}

// NewMemoryCache 创建一个新的内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string]CacheEntry),
	}
}

// Get 从缓存中获取值。
// 读取也会写访问时间，必须持有写锁。
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return "", false
	}

	entry.AccessedAt = time.Now()
	c.cache[key] = entry

	return entry.Value, true
}

// Set 将值存储到缓存中
func (c *MemoryCache) Set(key string, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = CacheEntry{
		Value:      value,
		CreatedAt:  time.Now(),
		AccessedAt: time.Now(),
	}

	return nil
}

// Clear 清除缓存
func (c *MemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string]CacheEntry)

	return nil
}
