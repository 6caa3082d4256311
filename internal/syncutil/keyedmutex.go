// Package syncutil provides the per-worker serialization primitive for
// the task engine.
package syncutil

import (
	"hash/maphash"
	"sync"
)

const keyedShards = 128

// KeyedMutex serializes work per string key over a fixed pool of locks.
// The task engine locks on the worker id so selection, reservation and
// counter updates for one worker never interleave. Memory stays bounded
// no matter how many workers are seen; two workers hashing to the same
// shard occasionally wait on each other, which is harmless.
//
// The zero value is ready to use.
type KeyedMutex struct {
	seedOnce sync.Once
	seed     maphash.Seed
	shards   [keyedShards]sync.Mutex
}

// Lock acquires the lock for key and returns the function that releases it.
func (m *KeyedMutex) Lock(key string) (unlock func()) {
	m.seedOnce.Do(func() { m.seed = maphash.MakeSeed() })
	mu := &m.shards[maphash.String(m.seed, key)%keyedShards]
	mu.Lock()
	return mu.Unlock
}
