package ballot

import "fmt"

// ATL is an above-the-line ballot: an ordered list of party indices with a
// multiplicity (the number of physical papers marked identically).
type ATL struct {
	Parties []Party
	N       int
}

// BTL is a below-the-line ballot: an ordered list of candidate indices with
// a multiplicity.
type BTL struct {
	Candidates []Candidate
	N          int
}

// Data is the complete, immutable input to a count: metadata, the formal
// ATL and BTL ballots, and the informal vote count. It is owned by the
// engine for the duration of a count and never mutated.
type Data struct {
	Metadata Metadata
	ATL      []ATL
	BTL      []BTL
	Informal int
}

// NumATL returns the number of formal above-the-line votes.
func (d *Data) NumATL() int {
	n := 0
	for _, a := range d.ATL {
		n += a.N
	}
	return n
}

// NumBTL returns the number of formal below-the-line votes.
func (d *Data) NumBTL() int {
	n := 0
	for _, b := range d.BTL {
		n += b.N
	}
	return n
}

// NumVotes returns the total number of formal votes.
func (d *Data) NumVotes() int { return d.NumATL() + d.NumBTL() }

// Validate checks the invariants spec §3 requires: candidate and party
// indices in range, no repeated candidate within one (expanded) ballot,
// and positive multiplicities. It returns the first violation found,
// wrapped for errors.Is(err, errkind.ErrInputMalformed) by the caller.
func (d *Data) Validate() error {
	numC := d.Metadata.NumCandidates()
	numP := len(d.Metadata.Parties)
	for i, a := range d.ATL {
		if a.N <= 0 {
			return fmt.Errorf("atl ballot %d: multiplicity %d is not positive", i, a.N)
		}
		for _, p := range a.Parties {
			if int(p) < 0 || int(p) >= numP {
				return fmt.Errorf("atl ballot %d: party index %d out of range", i, p)
			}
			if !d.Metadata.Parties[p].ATLAllowed {
				return fmt.Errorf("atl ballot %d: party %s does not permit ATL voting", i, d.Metadata.Parties[p].Name)
			}
		}
		seen := make(map[Candidate]bool)
		for _, p := range a.Parties {
			for _, c := range d.Metadata.Parties[p].Candidates {
				if seen[c] {
					return fmt.Errorf("atl ballot %d: candidate %s appears twice after expansion", i, c)
				}
				seen[c] = true
			}
		}
	}
	for i, b := range d.BTL {
		if b.N <= 0 {
			return fmt.Errorf("btl ballot %d: multiplicity %d is not positive", i, b.N)
		}
		seen := make(map[Candidate]bool)
		for _, c := range b.Candidates {
			if int(c) < 0 || int(c) >= numC {
				return fmt.Errorf("btl ballot %d: candidate index %d out of range", i, c)
			}
			if seen[c] {
				return fmt.Errorf("btl ballot %d: candidate %s appears twice", i, c)
			}
			seen[c] = true
		}
	}
	return nil
}

// VoteSource records whether a PartiallyDistributedVote originated as an
// ATL or a BTL ballot, and a pointer back to the originating record (used
// by margin search and extraction to recover "real" ballots).
type VoteSource struct {
	IsATL bool
	ATL   *ATL
	BTL   *BTL
}

// Arena expands ATL ballots into flat candidate-preference slices,
// concatenating each party's member list in ticket order, so that every
// physical vote — ATL or BTL — is represented identically as a preference
// list. It is populated once per count and is read-only afterwards; ballots
// reference its slices by shared borrow rather than copying them, mirroring
// stv/src/election_data.rs's typed_arena::Arena<CandidateIndex> use.
type Arena struct {
	expanded [][]Candidate
}

// PartiallyDistributedVote is one (possibly multi-paper) vote: a
// preference list, a multiplicity, and its origin.
type PartiallyDistributedVote struct {
	N           int
	Preferences []Candidate
	Source      VoteSource
}

// Resolve expands every ATL ballot into a flat candidate ordering and
// returns the combined list of votes, ATL and BTL alike, in the order they
// appear in Data.
func (d *Data) Resolve(arena *Arena) []PartiallyDistributedVote {
	votes := make([]PartiallyDistributedVote, 0, len(d.ATL)+len(d.BTL))
	for i := range d.ATL {
		a := &d.ATL[i]
		var prefs []Candidate
		for _, p := range a.Parties {
			prefs = append(prefs, d.Metadata.Parties[p].Candidates...)
		}
		arena.expanded = append(arena.expanded, prefs)
		votes = append(votes, PartiallyDistributedVote{
			N:           a.N,
			Preferences: arena.expanded[len(arena.expanded)-1],
			Source:      VoteSource{IsATL: true, ATL: a},
		})
	}
	for i := range d.BTL {
		b := &d.BTL[i]
		votes = append(votes, PartiallyDistributedVote{
			N:           b.N,
			Preferences: b.Candidates,
			Source:      VoteSource{IsATL: false, BTL: b},
		})
	}
	return votes
}
