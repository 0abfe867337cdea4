// Package pile manages per-candidate vote piles: grouping of ballots by
// origin count / transfer value, and advancing a ballot to the next
// continuing candidate on its preference list (spec §4.2).
package pile

import (
	"sort"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/internal/candset"
)

// Subdivision controls whether piles are kept separate by the count at
// which they arrived (spec §4.1's "Subdivision by arrival count").
type Subdivision int

const (
	// SubdivisionNone merges all ballots for a candidate into a single
	// pile regardless of when they arrived.
	SubdivisionNone Subdivision = iota
	// SubdivisionFirstCount keys a pile by the first count at which
	// ballots of this transfer value arrived.
	SubdivisionFirstCount
	// SubdivisionEveryCount keys a pile by the exact count at which its
	// ballots arrived.
	SubdivisionEveryCount
)

// Key identifies one vote pile for one candidate.
type Key struct {
	Candidate ballot.Candidate
	// ArrivalCount is meaningful only under SubdivisionFirstCount/Every.
	ArrivalCount int
	// TransferValueKey is a canonical string form of the transfer value
	// (arithmetic.TransferValue doesn't implement comparable, so piles
	// are keyed by its rational string form).
	TransferValueKey string
}

// Ballot is one vote sitting in a pile: a multiplicity, a reference to its
// (shared, arena-owned) preference list, and the position up to which that
// list has already been consumed.
type Ballot struct {
	N           int
	Preferences []ballot.Candidate
	// NextIndex is the index into Preferences of the next preference to
	// consider when this ballot is advanced.
	NextIndex int
	Source    ballot.VoteSource
}

// Pile is one (candidate, arrival-count, transfer-value) bucket of
// ballots, carrying the transfer value and arrival count that apply to
// every ballot in it (spec §3's Vote pile).
type Pile struct {
	Key           Key
	TransferValue arithmetic.TransferValue
	ArrivalCount  int
	Ballots       []Ballot
}

// Papers returns the total number of physical ballot papers in the pile.
func (p *Pile) Papers() int {
	n := 0
	for _, b := range p.Ballots {
		n += b.N
	}
	return n
}

// Piles holds every candidate's piles, keyed by Key, plus the
// exhausted/set-aside overflow buckets that spec §3 requires.
type Piles struct {
	subdivision Subdivision
	byKey       map[Key]*Pile
	Exhausted   []Ballot
	SetAside    []Ballot
}

// New returns an empty Piles under the given subdivision policy.
func New(sub Subdivision) *Piles {
	return &Piles{subdivision: sub, byKey: make(map[Key]*Pile)}
}

// keyFor builds the Key for a (candidate, arrivalCount, tv) triple
// honoring the configured subdivision.
func (p *Piles) keyFor(c ballot.Candidate, arrivalCount int, tvKey string) Key {
	switch p.subdivision {
	case SubdivisionEveryCount:
		return Key{Candidate: c, ArrivalCount: arrivalCount, TransferValueKey: tvKey}
	case SubdivisionFirstCount:
		if existing, ok := p.firstArrivalFor(c, tvKey); ok {
			arrivalCount = existing
		}
		return Key{Candidate: c, ArrivalCount: arrivalCount, TransferValueKey: tvKey}
	default: // SubdivisionNone
		return Key{Candidate: c, TransferValueKey: tvKey}
	}
}

func (p *Piles) firstArrivalFor(c ballot.Candidate, tvKey string) (int, bool) {
	best := -1
	found := false
	for k, pile := range p.byKey {
		if k.Candidate == c && k.TransferValueKey == tvKey {
			if !found || pile.ArrivalCount < best {
				best, found = pile.ArrivalCount, true
			}
		}
	}
	return best, found
}

// Add places a ballot into the appropriate pile for c, creating it with
// the given transfer value if necessary.
func (p *Piles) Add(c ballot.Candidate, arrivalCount int, tv arithmetic.TransferValue, b Ballot) {
	key := p.keyFor(c, arrivalCount, tv.String())
	pile, ok := p.byKey[key]
	if !ok {
		pile = &Pile{Key: key, ArrivalCount: arrivalCount, TransferValue: tv}
		p.byKey[key] = pile
	}
	pile.Ballots = append(pile.Ballots, b)
}

// PilesFor returns every pile currently held for a candidate, ordered by
// arrival count then transfer value. Piles.byKey is a map, so without this
// ordering a caller that emits one transcript count per pile (doSurplus,
// doExclusion) would produce a count order that varies with Go's map
// iteration, breaking the byte-identical replay spec §8 requires.
func (p *Piles) PilesFor(c ballot.Candidate) []*Pile {
	var out []*Pile
	for k, pile := range p.byKey {
		if k.Candidate == c {
			out = append(out, pile)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ArrivalCount != out[j].Key.ArrivalCount {
			return out[i].Key.ArrivalCount < out[j].Key.ArrivalCount
		}
		return out[i].Key.TransferValueKey < out[j].Key.TransferValueKey
	})
	return out
}

// Papers sums the papers held across all of a candidate's piles.
func (p *Piles) Papers(c ballot.Candidate) int {
	n := 0
	for _, pile := range p.PilesFor(c) {
		n += pile.Papers()
	}
	return n
}

// RemoveAll clears every pile belonging to a candidate and returns the
// ballots that were in them, e.g. because that candidate has just been
// elected or excluded and their ballots must be redistributed.
func (p *Piles) RemoveAll(c ballot.Candidate) []Ballot {
	var out []Ballot
	for k, pile := range p.byKey {
		if k.Candidate == c {
			out = append(out, pile.Ballots...)
			delete(p.byKey, k)
		}
	}
	return out
}

// Snapshot returns a deep copy of every pile currently held, keyed the
// same way as the live map. Margin search's retroscope (spec §4.6) takes
// one of these after every count so it can later ask "what ballots did
// candidate c hold, at what transfer value, at count i" without the
// answer being mutated out from under it by the count that follows.
func (p *Piles) Snapshot() map[Key]*Pile {
	out := make(map[Key]*Pile, len(p.byKey))
	for k, pile := range p.byKey {
		cp := *pile
		cp.Ballots = append([]Ballot(nil), pile.Ballots...)
		out[k] = &cp
	}
	return out
}

// AdvanceToNextContinuing scans b's preference list, starting just after
// the preference that last delivered it here, for the first candidate
// still in continuing. It returns that candidate and true, or false if the
// ballot is now exhausted (spec §4.2).
func AdvanceToNextContinuing(b *Ballot, continuing candset.Set) (ballot.Candidate, bool) {
	for i := b.NextIndex; i < len(b.Preferences); i++ {
		if continuing.Contains(b.Preferences[i]) {
			b.NextIndex = i + 1
			return b.Preferences[i], true
		}
	}
	b.NextIndex = len(b.Preferences)
	return 0, false
}

// AddTally adds every ballot's papers to a BallotBag, used when computing
// first-preference tallies or a pile's paper count for the transcript.
func AddTally(bag *arithmetic.BallotBag, c ballot.Candidate, ballots []Ballot) {
	for _, b := range ballots {
		bag.AddCount(c, b.N)
	}
}
