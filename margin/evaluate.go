package margin

import (
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/engine"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
	"github.com/rawblock/stv/transcript"
)

// ChangeResult is the outcome of testing one concrete VoteChanges proposal
// (spec §4.6's three possible trial outcomes).
type ChangeResult struct {
	Kind   ChangeResultKind
	Deltas transcript.ComparisonResult
	Ballots *BallotChanges
}

type ChangeResultKind int

const (
	// NotEnoughVotesAvailable means MakeConcrete couldn't find enough
	// eligible papers — shrink the proposal's upper bound.
	NotEnoughVotesAvailable ChangeResultKind = iota
	// NoChange means the edit applied cleanly but the elected set came
	// out the same — grow the proposal's lower bound.
	NoChange
	// ChangeOccurred means the edit altered the elected set. Record it
	// and try to shrink further.
	ChangeOccurred
)

// Baseline bundles everything SimpleTest needs about the original count:
// its rule set, its vacancies/exclusions/EC decisions, and the elected
// list to diff every trial against.
type Baseline struct {
	Params    rules.Parameterization
	Vacancies int
	EC        *tieresolve.ECDecisions
	Elected   []ballot.Candidate
}

// SimpleTest applies vc to data via retro/opts, re-runs the engine under
// base's rule set, and reports which of spec §4.6's three outcomes
// resulted.
func SimpleTest(vc VoteChanges, data *ballot.Data, retro *Retroscope, opts Options, base Baseline) ChangeResult {
	changes, ok := MakeConcrete(vc, retro, data, opts)
	if !ok {
		return ChangeResult{Kind: NotEnoughVotesAvailable}
	}
	changedData := changes.Apply(data)
	e, err := engine.New(base.Params, changedData, base.Vacancies, base.EC, randsrc.ReverseDonkey{}, nil, nil)
	if err != nil {
		return ChangeResult{Kind: NotEnoughVotesAvailable}
	}
	tr, err := e.Run()
	if err != nil {
		return ChangeResult{Kind: NotEnoughVotesAvailable}
	}
	cmp := transcript.Compare(&transcript.Transcript{Elected: base.Elected}, &transcript.Transcript{Elected: tr.Elected})
	if cmp.Difference == transcript.DifferenceSame {
		return ChangeResult{Kind: NoChange, Ballots: changes}
	}
	return ChangeResult{Kind: ChangeOccurred, Deltas: cmp, Ballots: changes}
}

// FoundChange is the best proposal optimise settled on: the VoteChanges
// that produced it, the resulting outcome delta, and the concrete ballots
// moved.
type FoundChange struct {
	VoteChanges VoteChanges
	Deltas      transcript.ComparisonResult
	Ballots     *BallotChanges
}

// Optimise ports optimise_work from evaluate_and_optimize_vote_changes.rs:
// test vc as given; if there weren't enough votes available, give up; if
// nothing changed, double every magnitude once and retry; once a change is
// found, binary-search each dimension's magnitude down independently,
// repeating passes until no dimension can be shrunk further.
func Optimise(vc VoteChanges, data *ballot.Data, retro *Retroscope, opts Options, base Baseline) *FoundChange {
	return optimiseWork(vc, data, retro, opts, base, 0)
}

func optimiseWork(vc VoteChanges, data *ballot.Data, retro *Retroscope, opts Options, base Baseline, triedAlready int) *FoundChange {
	result := SimpleTest(vc, data, retro, opts, base)
	switch result.Kind {
	case NotEnoughVotesAvailable:
		return nil
	case NoChange:
		if triedAlready == 0 {
			doubled := vc.Clone()
			for i := range doubled.Changes {
				doubled.Changes[i].N *= 2
			}
			return optimiseWork(doubled, data, retro, opts, base, triedAlready+1)
		}
		return nil
	}

	best := &FoundChange{VoteChanges: vc.Clone(), Deltas: result.Deltas, Ballots: result.Ballots}
	current := vc.Clone()
	hadChange := true
	for hadChange {
		hadChange = false
		for i := range vc.Changes {
			currentN := current.Changes[i].N
			trial := func(n int) ChangeResult {
				return SimpleTest(current.WithValue(i, n), data, retro, opts, base)
			}
			if n, res, ok := binarySearch(trial, 0, currentN); ok {
				if n < currentN {
					current.Changes[i].N = n
					if len(vc.Changes) > 1 {
						hadChange = true
					}
					if best.Ballots == nil || res.Ballots.N <= best.Ballots.N {
						best = &FoundChange{VoteChanges: current.Clone(), Deltas: res.Deltas, Ballots: res.Ballots}
					}
				}
			}
		}
	}
	best.VoteChanges = dropZeroChanges(best.VoteChanges)
	return best
}

func dropZeroChanges(vc VoteChanges) VoteChanges {
	out := VoteChanges{}
	for _, c := range vc.Changes {
		if c.N != 0 {
			out.Changes = append(out.Changes, c)
		}
	}
	return out
}

// binarySearch finds the smallest n in [low, high] for which trial(n)
// reports Change, per spec §4.6: shrink the upper bound on
// NotEnoughVotesAvailable, raise the lower bound on NoChange, and record
// (but keep trying to shrink) on Change.
func binarySearch(trial func(int) ChangeResult, low, high int) (int, ChangeResult, bool) {
	var lastGood ChangeResult
	found := false
	bestN := 0
	for low < high || (low == high && (!found || bestN != low)) {
		mid := (low + high) / 2
		res := trial(mid)
		switch res.Kind {
		case NotEnoughVotesAvailable:
			if mid == 0 {
				return 0, ChangeResult{}, false
			}
			high = mid - 1
		case NoChange:
			low = mid + 1
		case ChangeOccurred:
			high = mid
			lastGood, bestN, found = res, mid, true
		}
	}
	return bestN, lastGood, found
}
