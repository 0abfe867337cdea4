// Package randsrc is the engine's randomness abstraction, adapted from the
// teacher's utils/sampler package (Sampler/Source/WeightedWithoutReplacement).
// Spec §4.7 requires the engine be parameterized by a Randomness source:
// either deterministic "reverse-donkey" (take the first n in ballot order)
// or a seeded pseudo-random stream, with no process-wide state (spec §9).
package randsrc

import "math/rand"

// Source is a source of randomness independent of any process-wide state,
// the same shape as the teacher's sampler.Source.
type Source interface {
	Uint64() uint64
}

type mathRandSource struct {
	r *rand.Rand
}

// NewSeeded returns a Source backed by a seeded math/rand stream. Monte
// Carlo workers each derive their seed from a master seed plus worker
// index (spec §9), so two workers never share a stream.
func NewSeeded(seed int64) Source {
	return &mathRandSource{r: rand.New(rand.NewSource(seed))}
}

func (s *mathRandSource) Uint64() uint64 { return s.r.Uint64() }

// ReverseDonkey is the deterministic randomness source used by rule sets
// that don't actually require randomness for a result to be well defined:
// it always reports the ballots in their original order, so "the first n"
// is well defined without a stream.
type ReverseDonkey struct{}

func (ReverseDonkey) Uint64() uint64 { return 0 }

// WeightedWithoutReplacement samples without replacement from a population
// of the given weights, used to select NSW's random subset of a candidate's
// ballots to treat as "the surplus" (spec §4.7).
type WeightedWithoutReplacement struct {
	source Source
}

// NewWeightedWithoutReplacement returns a sampler drawing from source. If
// source is nil, a ReverseDonkey is used, making the result fully
// deterministic.
func NewWeightedWithoutReplacement(source Source) *WeightedWithoutReplacement {
	if source == nil {
		source = ReverseDonkey{}
	}
	return &WeightedWithoutReplacement{source: source}
}

// SampleIndices chooses k distinct indices out of [0, n) without
// replacement. With a ReverseDonkey source this always returns [0, k) —
// "the first k in ballot order" — matching spec §4.7's reverse-donkey
// definition.
func (w *WeightedWithoutReplacement) SampleIndices(n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if _, ok := w.source.(ReverseDonkey); ok {
		out := make([]int, k)
		for i := range out {
			out[i] = i
		}
		return out
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + int(w.source.Uint64()%uint64(n-i))
		pool[i], pool[j] = pool[j], pool[i]
	}
	out := make([]int, k)
	copy(out, pool[:k])
	return out
}
