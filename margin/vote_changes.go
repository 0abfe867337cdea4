// Package margin finds the smallest ballot edit that changes an election's
// outcome (spec §4.6): build a retroscope (a replay recording which
// ballots sat in which pile at which count), turn it into concrete,
// physically-available ballot edits, replay the engine, and diff the
// transcript. The outer loop binary-searches the size of each proposed
// edit, and a dominance-pruned catalog keeps only the non-redundant
// changes found.
//
// Grounded on margin/src/{vote_changes,record_changes,
// evaluate_and_optimize_vote_changes}.rs from the Rust original
// (_examples/original_source/margin/src/): VoteChange/VoteChanges's
// transfer/add/remove shape, ElectionChanges's dominance-pruned catalog,
// and optimise_work's binary-search-plus-doubling-retry loop are carried
// over closely. margin/src/retroscope.rs and margin/src/choose_votes.rs,
// which the Rust evaluate_and_optimize_vote_changes.rs imports from, were
// not present in the retrieved original_source tree (only the three files
// above were), so Retroscope and MakeConcrete below are an original
// design built from spec §4.6 and §9's description of what they must do
// (index by (candidate, count, transfer value); bound proposals by
// physically available ballots) rather than a port of Rust source.
package margin

import "github.com/rawblock/stv/ballot"

// VoteChange is one conceptual edit: move n votes from one candidate to
// another, or materialize/remove n votes entirely. MakeConcrete resolves
// it against real, physically available papers and touches exactly n of
// them; the transfer value a paper carries is not taken into account.
type VoteChange struct {
	N    int
	From *ballot.Candidate
	To   *ballot.Candidate
}

// VoteChanges is a list of conceptual edits considered together as one
// proposal.
type VoteChanges struct {
	Changes []VoteChange
}

// Transfer adds a command to move n votes from one candidate to another.
func (vc *VoteChanges) Transfer(n int, from, to ballot.Candidate) {
	vc.Changes = append(vc.Changes, VoteChange{N: n, From: &from, To: &to})
}

// Add adds a command to add n votes for a candidate out of nowhere (an
// addition, not a transfer).
func (vc *VoteChanges) Add(n int, to ballot.Candidate) {
	vc.Changes = append(vc.Changes, VoteChange{N: n, To: &to})
}

// Remove adds a command to remove n votes from a candidate.
func (vc *VoteChanges) Remove(n int, from ballot.Candidate) {
	vc.Changes = append(vc.Changes, VoteChange{N: n, From: &from})
}

// Clone returns a deep copy, safe for optimise's per-dimension mutation.
func (vc VoteChanges) Clone() VoteChanges {
	out := VoteChanges{Changes: append([]VoteChange(nil), vc.Changes...)}
	return out
}

// WithValue returns a copy of vc with the i'th change's N replaced by n,
// the same operation Rust's change_single_value performs for the
// per-dimension binary search in optimise.
func (vc VoteChanges) WithValue(i, n int) VoteChanges {
	out := vc.Clone()
	out.Changes[i].N = n
	return out
}

// TotalVotes sums every change's magnitude, the catalog's notion of "size"
// of a manipulation.
func (vc VoteChanges) TotalVotes() int {
	n := 0
	for _, c := range vc.Changes {
		n += c.N
	}
	return n
}
