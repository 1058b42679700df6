// Package storage provides the entry table and tag index of the cache.
// Package storage 提供缓存的条目表和标签倒排索引。
//
// The store is not safe for concurrent use: the cache facade serializes every
// call behind its own lock. Size and count are maintained incrementally on
// every insert and removal, never by rescanning the table.
//
// 存储层本身不是并发安全的，由缓存门面使用单一锁串行化所有调用。
// 大小和数量在每次插入和删除时增量维护，从不全表重新扫描。
package storage

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/Humphrey-He/guardcache/pkg/errors"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

// Entry represents an entry stored in the cache.
// Entry 表示存储在缓存中的条目。
type Entry struct {
	Key            string         // Unique identifier / 键
	Value          any            // Cached value, never inspected / 值，不会被检查内容
	Protocol       string         // Statistics grouping label / 统计分组标签
	Priority       level.Priority // Eviction protection class / 淘汰保护等级
	Tags           []string       // Deduplicated tag set / 去重后的标签集合
	SizeBytes      int64          // Estimated size, fixed at insertion / 估算大小，插入时确定
	TTL            time.Duration  // Time-to-live from CreatedAt, 0 means never / 存活时间，0表示永不过期
	ResolutionCost time.Duration  // Cost of producing the value / 生成该值的代价
	CreatedAt      int64          // Monotonic milliseconds / 单调毫秒时间
	LastAccessedAt int64          // Monotonic milliseconds / 单调毫秒时间
	AccessCount    int64          // Insertion counts as the first access / 插入计为第一次访问
	FailureCount   int64          // Reserved for callers / 保留给调用方使用
}

// IsExpired reports whether the entry outlived its TTL at now (milliseconds).
//
// IsExpired 判断条目在now（毫秒）时是否已过期。
func (e *Entry) IsExpired(now int64) bool {
	if e.TTL <= 0 {
		return false
	}
	return now-e.CreatedAt > e.TTL.Milliseconds()
}

// Clone creates a copy of the entry. The tag slice is copied, the value is shared.
//
// Clone 创建条目的副本。标签切片会被复制，值是共享的。
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return &c
}

// Config contains configuration options for the storage.
// Config 存储层配置选项。
type Config struct {
	// MaxEntrySize rejects entries whose SizeBytes exceeds it. Non-positive disables the check.
	// MaxEntrySize 单条目大小上限，非正数表示不检查。
	MaxEntrySize int64

	// TrackOrder maintains a recency order index for Oldest.
	// TrackOrder 是否维护访问顺序索引。
	TrackOrder bool

	// OnInsert is called after an entry becomes visible in the store.
	// OnInsert 在条目写入后调用。
	OnInsert func(e *Entry)

	// OnRemove is called after an entry leaves the store, including overwrites.
	// OnRemove 在条目移除后调用，包括被覆盖的旧条目。
	OnRemove func(e *Entry)
}

// Store owns the key to entry table and the tag to key-set inverted index.
//
// Store 持有键到条目的映射表以及标签到键集合的倒排索引。
type Store struct {
	entries   map[string]*Entry
	tags      map[string]map[string]struct{}
	sizeBytes int64
	order     *simplelru.LRU[string, struct{}] // nil when TrackOrder is off / 未启用时为nil
	config    Config
}

// NewStore creates a new store.
//
// NewStore 创建一个新的存储。
func NewStore(config Config) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		tags:    make(map[string]map[string]struct{}),
		config:  config,
	}
	if config.TrackOrder {
		// The store bounds itself through eviction; the order index must never drop keys on its own.
		order, err := simplelru.NewLRU[string, struct{}](math.MaxInt32, nil)
		if err != nil {
			panic(fmt.Sprintf("storage: order index: %v", err))
		}
		s.order = order
	}
	return s
}

// Insert stores e, replacing any entry with the same key.
// The tag set is deduplicated; tags of a replaced entry that are absent from
// the new set are detached from the index.
//
// Insert 存储条目e，替换同键的已有条目。
// 标签集合会去重；被替换条目中不在新集合里的标签会从索引中解除。
//
// Parameters:
//   - e: The entry to store, owned by the store afterwards
//
// Returns:
//   - *Entry: The replaced entry, or nil
//   - error: ErrKeyEmpty or ErrValueTooLarge wrapped in a KeyError
func (s *Store) Insert(e *Entry) (*Entry, error) {
	if e.Key == "" {
		return nil, errors.NewKeyError(e.Key, errors.ErrKeyEmpty)
	}
	if s.config.MaxEntrySize > 0 && e.SizeBytes > s.config.MaxEntrySize {
		return nil, errors.NewKeyError(e.Key, errors.ErrValueTooLarge)
	}
	if e.SizeBytes < 0 {
		e.SizeBytes = 0
	}
	e.Tags = dedupe(e.Tags)

	old, replaced := s.entries[e.Key]
	if replaced {
		s.detach(old)
	}

	s.entries[e.Key] = e
	s.sizeBytes += e.SizeBytes
	for _, tag := range e.Tags {
		set, ok := s.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tags[tag] = set
		}
		set[e.Key] = struct{}{}
	}
	if s.order != nil {
		s.order.Add(e.Key, struct{}{})
	}
	if s.config.OnInsert != nil {
		s.config.OnInsert(e)
	}

	if replaced {
		return old, nil
	}
	return nil, nil
}

// Remove detaches the entry from the table and tag index.
//
// Remove 从映射表和标签索引中移除条目。
func (s *Store) Remove(key string) (*Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	s.detach(e)
	if s.order != nil {
		s.order.Remove(key)
	}
	return e, true
}

// detach removes e's footprint from the size counter and tag index and fires OnRemove.
func (s *Store) detach(e *Entry) {
	s.sizeBytes -= e.SizeBytes
	for _, tag := range e.Tags {
		if set, ok := s.tags[tag]; ok {
			delete(set, e.Key)
			if len(set) == 0 {
				delete(s.tags, tag)
			}
		}
	}
	if s.config.OnRemove != nil {
		s.config.OnRemove(e)
	}
}

// Peek returns the entry without touching access bookkeeping.
//
// Peek 返回条目但不更新访问信息。
func (s *Store) Peek(key string) (*Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Touch records a successful read: bumps AccessCount, LastAccessedAt and the order index.
//
// Touch 记录一次成功读取：更新访问次数、最后访问时间和顺序索引。
func (s *Store) Touch(key string, now int64) (*Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	e.AccessCount++
	if now > e.LastAccessedAt {
		e.LastAccessedAt = now
	}
	if s.order != nil {
		s.order.Get(key)
	}
	return e, true
}

// FindByTags returns the keys whose tag set intersects tags (OR semantics), sorted.
//
// FindByTags 返回标签集合与tags有交集的键（并集语义），已排序。
func (s *Store) FindByTags(tags []string) []string {
	seen := make(map[string]struct{})
	for _, tag := range tags {
		for key := range s.tags[tag] {
			seen[key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// FindByTagPrefix returns the keys that carry at least one tag starting with prefix, sorted.
//
// FindByTagPrefix 返回至少有一个标签以prefix开头的键，已排序。
func (s *Store) FindByTagPrefix(prefix string) []string {
	seen := make(map[string]struct{})
	for tag, set := range s.tags {
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		for key := range set {
			seen[key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Oldest returns the least recently used entry accepted by match.
// With the order index it walks keys from oldest to newest; otherwise it scans
// for the smallest LastAccessedAt, breaking ties by CreatedAt then key.
//
// Oldest 返回满足match条件的最久未使用条目。
func (s *Store) Oldest(match func(*Entry) bool) (*Entry, bool) {
	if s.order != nil {
		for _, key := range s.order.Keys() {
			if e, ok := s.entries[key]; ok && (match == nil || match(e)) {
				return e, true
			}
		}
		return nil, false
	}

	var oldest *Entry
	for _, e := range s.entries {
		if match != nil && !match(e) {
			continue
		}
		if oldest == nil || olderThan(e, oldest) {
			oldest = e
		}
	}
	return oldest, oldest != nil
}

func olderThan(a, b *Entry) bool {
	if a.LastAccessedAt != b.LastAccessedAt {
		return a.LastAccessedAt < b.LastAccessedAt
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.Key < b.Key
}

// Range calls fn for every entry until fn returns false. fn must not mutate the store.
//
// Range 遍历所有条目，fn返回false时停止。fn不能修改存储。
func (s *Store) Range(fn func(e *Entry) bool) {
	for _, e := range s.entries {
		if !fn(e) {
			return
		}
	}
}

// Keys returns all keys, sorted.
//
// Keys 返回所有键，已排序。
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// SizeBytes returns the sum of all entry sizes.
func (s *Store) SizeBytes() int64 {
	return s.sizeBytes
}

// Clear removes every entry and returns how many were removed.
// OnRemove fires for each of them so external counters stay in step.
//
// Clear 移除所有条目并返回移除数量。每个条目都会触发OnRemove。
func (s *Store) Clear() int {
	n := len(s.entries)
	if s.config.OnRemove != nil {
		for _, e := range s.entries {
			s.config.OnRemove(e)
		}
	}
	s.entries = make(map[string]*Entry)
	s.tags = make(map[string]map[string]struct{})
	s.sizeBytes = 0
	if s.order != nil {
		s.order.Purge()
	}
	return n
}

// CheckInvariants recomputes size, count and the tag index from scratch and
// compares them with the incremental bookkeeping. It is meant for tests and
// development assertions only.
//
// CheckInvariants 从头重新计算大小、数量和标签索引，并与增量记录比较。仅用于测试和开发断言。
func (s *Store) CheckInvariants() error {
	var size int64
	for key, e := range s.entries {
		if e.Key != key {
			return fmt.Errorf("storage: entry %q stored under key %q", e.Key, key)
		}
		if e.SizeBytes < 0 {
			return fmt.Errorf("storage: entry %q has negative size %d", key, e.SizeBytes)
		}
		if e.AccessCount < 1 {
			return fmt.Errorf("storage: entry %q has access count %d", key, e.AccessCount)
		}
		for _, tag := range e.Tags {
			if _, ok := s.tags[tag][key]; !ok {
				return fmt.Errorf("storage: tag %q of %q missing from index", tag, key)
			}
		}
		size += e.SizeBytes
	}
	if size != s.sizeBytes {
		return fmt.Errorf("storage: size drift: tracked %d, actual %d", s.sizeBytes, size)
	}
	for tag, set := range s.tags {
		if len(set) == 0 {
			return fmt.Errorf("storage: empty key set left for tag %q", tag)
		}
		for key := range set {
			e, ok := s.entries[key]
			if !ok || !containsTag(e.Tags, tag) {
				return fmt.Errorf("storage: stale index link %q -> %q", tag, key)
			}
		}
	}
	if s.order != nil && s.order.Len() != len(s.entries) {
		return fmt.Errorf("storage: order index holds %d keys, table holds %d", s.order.Len(), len(s.entries))
	}
	return nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
