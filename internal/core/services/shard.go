package services

import (
	"hash/fnv"
	"sort"
	"sync"
)

// DefaultShardCount is used when a non-positive shard count is configured.
const DefaultShardCount = 32

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// setShard guards one slice of a key -> set-of-members table.
type setShard struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// shardedSets is a concurrency-safe multimap with one lock per shard.
// No lock is held beyond a single shard's map access.
type shardedSets struct {
	shards []*setShard
}

func newShardedSets(n int) *shardedSets {
	if n <= 0 {
		n = DefaultShardCount
	}
	s := &shardedSets{shards: make([]*setShard, n)}
	for i := range s.shards {
		s.shards[i] = &setShard{sets: make(map[string]map[string]struct{})}
	}
	return s
}

func (s *shardedSets) shard(key string) *setShard {
	return s.shards[shardIndex(key, len(s.shards))]
}

// add reports whether member was newly added under key.
func (s *shardedSets) add(key, member string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.sets[key]
	if !ok {
		set = make(map[string]struct{})
		sh.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false
	}
	set[member] = struct{}{}
	return true
}

// remove reports whether member was present under key.
func (s *shardedSets) remove(key, member string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.sets[key]
	if !ok {
		return false
	}
	if _, exists := set[member]; !exists {
		return false
	}
	delete(set, member)
	if len(set) == 0 {
		delete(sh.sets, key)
	}
	return true
}

// take removes key and returns its former members.
func (s *shardedSets) take(key string) []string {
	sh := s.shard(key)
	sh.mu.Lock()
	set := sh.sets[key]
	delete(sh.sets, key)
	sh.mu.Unlock()
	return sortedMembers(set)
}

// members returns a sorted snapshot of the members under key.
func (s *shardedSets) members(key string) []string {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sortedMembers(sh.sets[key])
}

func (s *shardedSets) contains(key, member string) bool {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.sets[key][member]
	return ok
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
