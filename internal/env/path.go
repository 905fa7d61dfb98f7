package env

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PathStore 读写持久化的用户 PATH。
type PathStore interface {
	Get() (string, error)
	Set(value string) error
}

// RewritePath 从 PATH 中移除 oldDir 与 newDir 的全部条目，再把 newDir 放到最前。
// 条目比较忽略末尾分隔符，Windows 上不区分大小写。
func RewritePath(value, oldDir, newDir, sep string) string {
	entries := []string{newDir}
	for _, entry := range strings.Split(value, sep) {
		if entry == "" || samePath(entry, oldDir) || samePath(entry, newDir) {
			continue
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, sep)
}

func samePath(a, b string) bool {
	if b == "" {
		return false
	}
	a = strings.TrimRight(filepath.Clean(a), `/\`)
	b = strings.TrimRight(filepath.Clean(b), `/\`)
	if os.PathSeparator == '\\' {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// MemoryPathStore 在内存中保存 PATH，用于测试与不持久化 PATH 的平台。
type MemoryPathStore struct {
	mu    sync.Mutex
	value string
}

// NewMemoryPathStore 以初始值创建内存 PATH 存储。
func NewMemoryPathStore(value string) *MemoryPathStore {
	return &MemoryPathStore{value: value}
}

func (s *MemoryPathStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemoryPathStore) Set(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return nil
}
