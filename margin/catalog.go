package margin

import (
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/transcript"
)

// ChangeTypes categorizes which kinds of edit a BallotChanges required,
// grounded on record_changes.rs's ChangeTypes: the six independent
// booleans dominance pruning compares across.
type ChangeTypes struct {
	ChangedFirstPreference bool
	ChangedATL             bool
	AddedBallots           bool
	RemovedBallots         bool
	ChangedBallots         bool
	ChangedPhysicalBallots bool
}

// DeduceChangeTypes inspects bc's edits to determine which categories of
// manipulation it required (record_changes.rs's ChangeTypes::deduce).
func DeduceChangeTypes(bc *BallotChanges) ChangeTypes {
	var t ChangeTypes
	for _, e := range bc.Edits {
		switch e.Kind {
		case EditAdded:
			t.AddedBallots = true
		case EditRemoved:
			t.RemovedBallots = true
		case EditChanged:
			t.ChangedBallots = true
		}
		if e.SourceWasATL {
			t.ChangedATL = true
		}
		if e.FirstPreferenceWasFrom {
			t.ChangedFirstPreference = true
		}
		if !e.Unverifiable {
			t.ChangedPhysicalBallots = true
		}
	}
	return t
}

// IsDominatedByOrEquivalentTo reports whether t is of no interest given
// the existence of other: every category other uses, t also uses (so
// other is no more demanding in any respect).
func (t ChangeTypes) IsDominatedByOrEquivalentTo(other ChangeTypes) bool {
	return (t.ChangedFirstPreference || !other.ChangedFirstPreference) &&
		(t.ChangedATL || !other.ChangedATL) &&
		(t.AddedBallots || !other.AddedBallots) &&
		(t.RemovedBallots || !other.RemovedBallots) &&
		(t.ChangedBallots || !other.ChangedBallots) &&
		(t.ChangedPhysicalBallots || !other.ChangedPhysicalBallots)
}

// Change is one instance of a manipulation that alters the election
// outcome: what it required, the outcome delta, and the concrete ballots
// moved.
type Change struct {
	Outcome  transcript.ComparisonResult
	Requires ChangeTypes
	Ballots  *BallotChanges
}

// IsDominatedByOrEquivalentTo reports whether c is of no interest given
// the existence of other: same outcome, no more demanding in any
// ChangeTypes category, and no smaller (record_changes.rs's
// ElectionChange::is_dominated_by_or_equivalent_to).
func (c Change) IsDominatedByOrEquivalentTo(other Change) bool {
	return sameOutcome(c.Outcome, other.Outcome) &&
		c.Requires.IsDominatedByOrEquivalentTo(other.Requires) &&
		c.Ballots.N >= other.Ballots.N
}

// sameOutcome reports whether two diff results describe the same change
// to the elected set (record_changes.rs compares by the
// DeltasInCandidateLists itself, which is exactly this pair of lists).
func sameOutcome(a, b transcript.ComparisonResult) bool {
	if a.Difference != b.Difference {
		return false
	}
	return candListEqual(a.List1, b.List1) && candListEqual(a.List2, b.List2)
}

func candListEqual(a, b []ballot.Candidate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Catalog is a dominance-pruned collection of every distinct change found
// against one election (record_changes.rs's ElectionChanges).
type Catalog struct {
	Changes []Change
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog { return &Catalog{} }

// Add inserts change unless an existing entry already dominates it,
// removing any existing entries change itself dominates.
func (cat *Catalog) Add(change Change) {
	for _, existing := range cat.Changes {
		if change.IsDominatedByOrEquivalentTo(existing) {
			return
		}
	}
	kept := cat.Changes[:0]
	for _, existing := range cat.Changes {
		if !existing.IsDominatedByOrEquivalentTo(change) {
			kept = append(kept, existing)
		}
	}
	cat.Changes = append(kept, change)
}

// AddFound converts an Optimise result into a Change and Adds it.
func (cat *Catalog) AddFound(found *FoundChange) {
	if found == nil || found.Ballots == nil {
		return
	}
	cat.Add(Change{
		Outcome:  found.Deltas,
		Requires: DeduceChangeTypes(found.Ballots),
		Ballots:  found.Ballots,
	})
}

// SmallestManipulationFound returns the paper count of the smallest change
// in the catalog, or -1 if the catalog is empty.
func (cat *Catalog) SmallestManipulationFound() int {
	best := -1
	for _, c := range cat.Changes {
		if best == -1 || c.Ballots.N < best {
			best = c.Ballots.N
		}
	}
	return best
}
