// Package transcript records, count by count, everything spec §4.5
// requires of a distribution-of-preferences count: the reason for the
// count, who was elected and why, who stopped continuing, how any new
// transfer value was derived, and the end-of-count per-candidate state.
// It also provides the three-level equivalence Compare spec §4.5 and
// §8 require.
//
// Grounded on stv/src/distribution_of_preferences_transcript.rs and
// stv/src/compare_transcripts.rs from the Rust original
// (_examples/original_source/stv/src/): SingleCount, PerCandidate,
// EndCountStatus, ReasonForCount, TransferValueCreation, and the
// Compare priority order (elected set, then order, then per-count
// values, then count count) are carried over with the same field
// shapes, generalized from Rust's generic Tally to this module's
// arithmetic.Tally interface.
package transcript

import (
	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
)

// CountIndex is the zero-based index of a count. The human-readable label
// shown to users (simple integer, major.minor, or derived from the
// count's reason) is a presentation concern of rules.CountNamingScheme,
// not of this index.
type CountIndex int

// PerCandidateTally holds a value that is primarily per-candidate but may
// also be attributed to exhaustion, rounding, or set-aside — used so that
// a conservation check (spec §8) can sum every bucket.
type PerCandidateTally struct {
	Candidate []arithmetic.Tally
	Exhausted arithmetic.Tally
	Rounding  arithmetic.Tally
	// SetAside is nil when the rule set has no set-aside concept.
	SetAside arithmetic.Tally
}

// PerCandidatePapers is the plain-integer analogue of PerCandidateTally,
// used for physical paper counts, which are always integers regardless
// of the rule set's tally type.
type PerCandidatePapers struct {
	Candidate []int
	Exhausted int
	Rounding  int
	SetAside  *int
}

// EndCountStatus is the state recorded at the end of a count.
type EndCountStatus struct {
	Tallies  PerCandidateTally
	Papers   PerCandidatePapers
	ATLPapers *PerCandidatePapers
}

// ReasonKind distinguishes the three kinds of count.
type ReasonKind int

const (
	ReasonFirstPreferences ReasonKind = iota
	ReasonExcessDistribution
	ReasonElimination
)

// Reason is the action a count performs. For ReasonExcessDistribution,
// Candidate names the elected candidate whose surplus is being
// distributed. For ReasonElimination, Candidates names every candidate
// being excluded this count (usually one, but federal rule 13A allows
// several at once).
type Reason struct {
	Kind       ReasonKind
	Candidate  ballot.Candidate
	Candidates []ballot.Candidate
}

// IsElimination reports whether this count is an exclusion.
func (r Reason) IsElimination() bool { return r.Kind == ReasonElimination }

// ElectionReason is why a candidate was declared elected this count.
type ElectionReason int

const (
	ReachedQuota ElectionReason = iota
	HighestOfLastTwoStanding
	AllRemainingMustBeElected
)

// CandidateElected records one candidate's election this count.
type CandidateElected struct {
	Who ballot.Candidate
	Why ElectionReason
}

// PortionOfReasonBeingDoneThisCount records progress within a count whose
// reason spans more than one count (a surplus distribution or exclusion
// subdivided into TV buckets).
type PortionOfReasonBeingDoneThisCount struct {
	TransferValue    *arithmetic.TransferValue
	WhenTVCreated    *CountIndex
	PapersCameFromCounts []CountIndex
}

// TransferValueSource records which of spec §4.1's four formulas derived
// a new transfer value.
type TransferValueSource int

const (
	SourceOverBallots TransferValueSource = iota
	SourceOverContinuingBallots
	SourceOverVotesTimesOriginalTransfer
	SourceLimited
	// SourceRandomSample is the NSW mechanism: surplus-many whole papers
	// drawn from the candidate's ballots and transferred at full value.
	SourceRandomSample
)

// TransferValueCreation records the derivation of a new transfer value.
type TransferValueCreation struct {
	Surplus             arithmetic.Tally
	Votes                arithmetic.Tally
	OriginalTransferValue *arithmetic.TransferValue
	BallotsConsidered    int
	ContinuingBallots    int
	TransferValue        arithmetic.TransferValue
	Source                TransferValueSource
}

// DecisionMadeByEC records that the electoral commission needed to make a
// tie-breaking decision affecting this set of candidates.
type DecisionMadeByEC struct {
	Affected []ballot.Candidate
}

// SingleCount is the complete record of one count.
type SingleCount struct {
	Reason              Reason
	Portion             PortionOfReasonBeingDoneThisCount
	ReasonCompleted     bool
	Elected             []CandidateElected
	NotContinuing       []ballot.Candidate
	CreatedTransferValue *TransferValueCreation
	Decisions           []DecisionMadeByEC
	Status              EndCountStatus
}

// QuotaInfo records the quota computed once at the start of the count and
// never recomputed (spec §4.4).
type QuotaInfo struct {
	Papers    int
	Vacancies int
	Quota     arithmetic.Tally
}

// Transcript is the complete record of a distribution of preferences.
type Transcript struct {
	Quota   QuotaInfo
	Counts  []SingleCount
	Elected []ballot.Candidate
}

// NumCounts implements tieresolve.History.
func (t *Transcript) NumCounts() int { return len(t.Counts) }

// TallyAtCount implements tieresolve.History.
func (t *Transcript) TallyAtCount(count int, c ballot.Candidate) arithmetic.Tally {
	return t.Counts[count].Status.Tallies.Candidate[c]
}

// Difference is the result of comparing two transcripts, declared in
// order from least to most serious; Compare reports the most serious
// difference found.
type Difference int

const (
	DifferenceSame Difference = iota
	DifferenceDifferentNumberOfCounts
	DifferenceDifferentValues
	DifferenceCandidatesOrderedDifferently
	DifferenceDifferentCandidatesElected
)

func (d Difference) String() string {
	switch d {
	case DifferenceSame:
		return "same"
	case DifferenceDifferentNumberOfCounts:
		return "different number of counts"
	case DifferenceDifferentValues:
		return "different values"
	case DifferenceCandidatesOrderedDifferently:
		return "candidates elected in a different order"
	case DifferenceDifferentCandidatesElected:
		return "different candidates elected"
	default:
		return "unknown"
	}
}

// ComparisonResult is Compare's full finding: the most serious difference
// found, and — when it is DifferenceDifferentValues — the count at which
// it first occurs.
type ComparisonResult struct {
	Difference Difference
	AtCount    CountIndex
	// List1/List2 are populated for the two elected-candidate-list
	// differences.
	List1, List2 []ballot.Candidate
}

// Compare finds the most serious difference between two transcripts
// (spec §4.5). It checks, in order: whether the same candidates were
// elected at all; whether they were elected in the same order; whether
// every count's recorded state matches; whether the two runs had the
// same number of counts.
func Compare(t1, t2 *Transcript) ComparisonResult {
	if !sameElements(t1.Elected, t2.Elected) {
		return ComparisonResult{
			Difference: DifferenceDifferentCandidatesElected,
			List1:      t1.Elected, List2: t2.Elected,
		}
	}
	if !candSliceEqual(t1.Elected, t2.Elected) {
		return ComparisonResult{
			Difference: DifferenceCandidatesOrderedDifferently,
			List1:      t1.Elected, List2: t2.Elected,
		}
	}
	n := len(t1.Counts)
	if len(t2.Counts) < n {
		n = len(t2.Counts)
	}
	for i := 0; i < n; i++ {
		c1, c2 := t1.Counts[i], t2.Counts[i]
		if !electedEqual(c1.Elected, c2.Elected) ||
			!candSliceEqual(c1.NotContinuing, c2.NotContinuing) ||
			!statusEqual(c1.Status, c2.Status) {
			return ComparisonResult{Difference: DifferenceDifferentValues, AtCount: CountIndex(i)}
		}
	}
	if len(t1.Counts) != len(t2.Counts) {
		return ComparisonResult{Difference: DifferenceDifferentNumberOfCounts}
	}
	return ComparisonResult{Difference: DifferenceSame}
}

func sameElements(a, b []ballot.Candidate) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[ballot.Candidate]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if !set[c] {
			return false
		}
	}
	return true
}

func candSliceEqual(a, b []ballot.Candidate) bool {
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

func electedEqual(a, b []CandidateElected) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Who != b[i].Who || a[i].Why != b[i].Why {
			return false
		}
	}
	return true
}

func tallyEqual(a, b arithmetic.Tally) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

func perCandidateTallyEqual(a, b PerCandidateTally) bool {
	if len(a.Candidate) != len(b.Candidate) {
		return false
	}
	for i := range a.Candidate {
		if !tallyEqual(a.Candidate[i], b.Candidate[i]) {
			return false
		}
	}
	if !tallyEqual(a.Exhausted, b.Exhausted) || !tallyEqual(a.Rounding, b.Rounding) {
		return false
	}
	return tallyEqual(a.SetAside, b.SetAside)
}

func perCandidatePapersEqual(a, b PerCandidatePapers) bool {
	if len(a.Candidate) != len(b.Candidate) {
		return false
	}
	for i := range a.Candidate {
		if a.Candidate[i] != b.Candidate[i] {
			return false
		}
	}
	if a.Exhausted != b.Exhausted || a.Rounding != b.Rounding {
		return false
	}
	switch {
	case a.SetAside == nil && b.SetAside == nil:
		return true
	case a.SetAside == nil || b.SetAside == nil:
		return false
	default:
		return *a.SetAside == *b.SetAside
	}
}

func statusEqual(a, b EndCountStatus) bool {
	if !perCandidateTallyEqual(a.Tallies, b.Tallies) {
		return false
	}
	if !perCandidatePapersEqual(a.Papers, b.Papers) {
		return false
	}
	switch {
	case a.ATLPapers == nil && b.ATLPapers == nil:
		return true
	case a.ATLPapers == nil || b.ATLPapers == nil:
		return false
	default:
		return perCandidatePapersEqual(*a.ATLPapers, *b.ATLPapers)
	}
}
