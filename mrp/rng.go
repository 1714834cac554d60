package mrp

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible search run.
// Two runs with the same RunKey, problem and SearchConfig MUST visit the same
// moves in every worker.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

// StreamWorker returns the stream name for search worker n.
func StreamWorker(n int) string {
	return fmt.Sprintf("worker_%d", n)
}

// PartitionedRNG provides deterministic, isolated RNG streams per search worker.
//
// Derivation: masterSeed XOR fnv1a64(streamName).
//
// Thread-safety: NOT thread-safe. Derive every stream before starting workers;
// each returned *rand.Rand is then owned by a single goroutine.
type PartitionedRNG struct {
	key     RunKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForStream returns a deterministically-seeded RNG for the named stream.
// The same name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForStream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// Key returns the RunKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
