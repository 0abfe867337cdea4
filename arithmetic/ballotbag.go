package arithmetic

import "github.com/rawblock/stv/ballot"

// BallotBag tracks per-candidate paper counts, generalized from the
// teacher's utils/bag.go Bag[T comparable] (there specialized to ids.ID
// vote tallying) to ballot.Candidate. Used for the "papers" half of
// spec §4.5's per-count status — tallies live in the Tally types above,
// but physical paper counts are always plain integers regardless of the
// rule set's tally type.
type BallotBag struct {
	counts map[ballot.Candidate]int
	size   int
}

// NewBallotBag returns an empty bag.
func NewBallotBag() BallotBag {
	return BallotBag{counts: make(map[ballot.Candidate]int)}
}

// Add increments the paper count for a candidate by one.
func (b *BallotBag) Add(c ballot.Candidate) { b.AddCount(c, 1) }

// AddCount adds count papers for a candidate. Non-positive counts are
// ignored.
func (b *BallotBag) AddCount(c ballot.Candidate, count int) {
	if count <= 0 {
		return
	}
	if b.counts == nil {
		b.counts = make(map[ballot.Candidate]int)
	}
	b.counts[c] += count
	b.size += count
}

// Count returns the paper count for a candidate.
func (b BallotBag) Count(c ballot.Candidate) int { return b.counts[c] }

// Len returns the total number of papers (with duplicates) in the bag.
func (b BallotBag) Len() int { return b.size }

// Mode returns the candidate with the highest paper count and that count.
func (b BallotBag) Mode() (mode ballot.Candidate, count int) {
	for c, n := range b.counts {
		if n > count {
			mode, count = c, n
		}
	}
	return mode, count
}

// List returns the candidates with a non-zero count.
func (b BallotBag) List() []ballot.Candidate {
	out := make([]ballot.Candidate, 0, len(b.counts))
	for c := range b.counts {
		out = append(out, c)
	}
	return out
}
