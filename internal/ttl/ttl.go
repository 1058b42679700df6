package ttl

import (
	"github.com/Humphrey-He/guardcache/internal/storage"
)

// Store 清理需要的存储接口
type Store interface {
	Range(fn func(e *storage.Entry) bool)
	Remove(key string) (*storage.Entry, bool)
}

// SweepExpired 移除在now（毫秒）时已过期的所有条目，返回被移除的条目
// 先收集再删除，遍历期间不修改存储
func SweepExpired(store Store, now int64) []*storage.Entry {
	var keys []string
	store.Range(func(e *storage.Entry) bool {
		if e.IsExpired(now) {
			keys = append(keys, e.Key)
		}
		return true
	})

	removed := make([]*storage.Entry, 0, len(keys))
	for _, key := range keys {
		if e, ok := store.Remove(key); ok {
			removed = append(removed, e)
		}
	}
	return removed
}
