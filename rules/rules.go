// Package rules bundles the roughly two dozen decision points a
// jurisdiction's counting legislation fixes (spec §4.1) into one
// Parameterization the engine is polymorphic over — swapping rule sets
// requires no engine changes, only a different Parameterization value.
//
// Grounded on the teacher's protocol/wave/config.go: a flat Parameters
// struct, a package-level DefaultParameters-style constructor per
// jurisdiction, and a Verify method returning a wrapped sentinel error on
// the first violated constraint.
package rules

import (
	"errors"
	"fmt"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/pile"
	"github.com/rawblock/stv/tieresolve"
)

// ErrParameterizationInvalid is wrapped by every Validate failure.
var ErrParameterizationInvalid = errors.New("rules: parameterization invalid")

// TallyKind selects which arithmetic.Tally implementation backs candidate
// tallies.
type TallyKind int

const (
	TallyInt TallyKind = iota
	TallyDecimal
	TallyRational
)

// TVSource selects how a transfer value's numerator/denominator are
// formed (spec §4.1's transfer-value source (a)-(c); source (d), the
// min-with-one clamp, is the independent LimitTVToOne flag
// below since it composes with any of the three).
type TVSource int

const (
	// TVSourceAllBallots is surplus ÷ all of the elected candidate's
	// ballots.
	TVSourceAllBallots TVSource = iota
	// TVSourceContinuingBallots is surplus ÷ only the ballots that would
	// transfer to a continuing candidate.
	TVSourceContinuingBallots
	// TVSourceWeightedInclusiveGregory is surplus ÷ votes × the ballot's
	// prior transfer value.
	TVSourceWeightedInclusiveGregory
)

// LastParcelPolicy controls which of an elected candidate's ballots are
// walked when distributing their surplus.
type LastParcelPolicy int

const (
	// LastParcelOnly uses only the ballots received at the most recent
	// count.
	LastParcelOnly LastParcelPolicy = iota
	// AllParcels uses every ballot the candidate holds.
	AllParcels
)

// SurplusSubdivision controls how a surplus distribution is broken into
// counts.
type SurplusSubdivision int

const (
	// SingleAggregateTransfer moves the whole surplus as one transfer.
	SingleAggregateTransfer SurplusSubdivision = iota
	// DistinctTransferPerTVBucket emits one count per source pile: one per
	// distinct transfer value, and also one per arrival count when piles
	// are subdivided by count.
	DistinctTransferPerTVBucket
	// MergeSameTVAndScale merges buckets that already share a transfer
	// value before scaling.
	MergeSameTVAndScale
)

// CountNamingScheme controls how counts are labelled on the transcript.
type CountNamingScheme int

const (
	// CountNamingSimpleInteger numbers counts 1, 2, 3, ....
	CountNamingSimpleInteger CountNamingScheme = iota
	// CountNamingMajorMinor numbers counts "2.1", "2.2", ... within a
	// major count.
	CountNamingMajorMinor
	// CountNamingDerivedFromAction derives the label from the count's
	// reason (e.g. "Exclusion of #4").
	CountNamingDerivedFromAction
)

// CheckTiming selects the point in the count loop at which a shortcut
// election clause or a mid-action election check is evaluated.
type CheckTiming int

const (
	// CheckAtEvaluateOnly fires only when control returns to Evaluate,
	// never mid-transfer or mid-exclusion.
	CheckAtEvaluateOnly CheckTiming = iota
	// CheckAfterEveryTransfer fires after each TV-bucket sub-transfer
	// during a surplus distribution or exclusion.
	CheckAfterEveryTransfer
	// CheckNever disables the clause entirely.
	CheckNever
)

// ShortcutClause is one of the three independent early-termination rules
// spec §4.1 names (two continuing, continuing = vacancies, top few
// overwhelming).
type ShortcutClause struct {
	Enabled bool
	When    CheckTiming
}

// Fires reports whether the clause applies at this point in the count
// loop. atEvaluate is true when control has genuinely returned to the
// Evaluate state (the current count completed its reason), false for an
// intermediate TV-bucket count within an ongoing surplus distribution or
// exclusion.
func (c ShortcutClause) Fires(atEvaluate bool) bool {
	if !c.Enabled {
		return false
	}
	switch c.When {
	case CheckAtEvaluateOnly:
		return atEvaluate
	case CheckAfterEveryTransfer:
		return true
	default:
		return false
	}
}

// TieMethods bundles the four independently configured tie-resolution
// junctures spec §4.1 names.
type TieMethods struct {
	ElectingOneOfLastTwo     tieresolve.Method
	ElectingByQuota          tieresolve.Method
	ElectingAllRemaining     tieresolve.Method
	ChoosingLowestForExclude tieresolve.Method
}

// Parameterization is the full set of decision points a jurisdiction's
// legislation fixes (spec §4.1). The engine reads only this struct; it
// never branches on a jurisdiction name.
type Parameterization struct {
	Name string

	TallyKind          TallyKind
	DecimalPlaces      int32 // only meaningful when TallyKind == TallyDecimal
	Subdivision        pile.Subdivision
	TVSource           TVSource
	LimitTVToOne       bool
	LastParcel         LastParcelPolicy
	Rounding           arithmetic.RoundingPolicy
	SurplusSubdivision SurplusSubdivision
	SortExclusionsByTV bool

	Ties TieMethods

	MidSurplusElectionCheck   bool
	MidExclusionElectionCheck bool
	FinishAllCountsWhenAllElected bool

	TwoRemainingHigherWins    ShortcutClause
	ContinuingEqualsVacancies ShortcutClause
	TopFewOverwhelming        ShortcutClause

	// AllowRule13AMultiExclusion permits the federal "rule 13A" mass
	// exclusion of every bottom candidate whose cumulative tally is less
	// than the next-lowest continuing candidate's tally.
	AllowRule13AMultiExclusion bool

	// RandomSampleSurplus selects the NSW surplus mechanism: instead of
	// deriving a fractional transfer value, draw a number of papers equal
	// to the surplus from the elected candidate's ballots (at random, or
	// first-in-ballot-order under a reverse-donkey source) and transfer
	// them at full value, setting the rest aside with the candidate.
	RandomSampleSurplus bool

	CountNaming              CountNamingScheme
	ElectionForcesNewMajorCount bool
}

// Validate returns a non-nil error wrapping ErrParameterizationInvalid on
// the first inconsistency found.
func (p Parameterization) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: Name must not be empty", ErrParameterizationInvalid)
	case p.TallyKind == TallyDecimal && p.DecimalPlaces <= 0:
		return fmt.Errorf("%w: %s uses a decimal tally but DecimalPlaces = %d", ErrParameterizationInvalid, p.Name, p.DecimalPlaces)
	case p.Rounding == arithmetic.RoundExact && p.TallyKind != TallyRational:
		return fmt.Errorf("%w: %s selects exact rounding but tally kind is not Rational", ErrParameterizationInvalid, p.Name)
	case p.TopFewOverwhelming.Enabled && p.TopFewOverwhelming.When == CheckNever:
		return fmt.Errorf("%w: %s enables TopFewOverwhelming but gives it CheckNever timing", ErrParameterizationInvalid, p.Name)
	case p.TwoRemainingHigherWins.Enabled && p.TwoRemainingHigherWins.When == CheckNever:
		return fmt.Errorf("%w: %s enables TwoRemainingHigherWins but gives it CheckNever timing", ErrParameterizationInvalid, p.Name)
	case p.ContinuingEqualsVacancies.Enabled && p.ContinuingEqualsVacancies.When == CheckNever:
		return fmt.Errorf("%w: %s enables ContinuingEqualsVacancies but gives it CheckNever timing", ErrParameterizationInvalid, p.Name)
	case p.RandomSampleSurplus && p.TallyKind != TallyInt:
		return fmt.Errorf("%w: %s samples whole surplus papers but its tally kind is not integer", ErrParameterizationInvalid, p.Name)
	default:
		return nil
	}
}

// DefaultFederal is the Commonwealth Electoral Act 1918 Senate count:
// integer tallies, weighted inclusive Gregory, floor rounding, rule 13A
// mass exclusion allowed.
func DefaultFederal() Parameterization {
	return Parameterization{
		Name:               "AEC-Federal-Senate",
		TallyKind:          TallyInt,
		Subdivision:        pile.SubdivisionEveryCount,
		TVSource:           TVSourceWeightedInclusiveGregory,
		LimitTVToOne:       true,
		LastParcel:         AllParcels,
		Rounding:           arithmetic.RoundFloor,
		SurplusSubdivision: DistinctTransferPerTVBucket,
		SortExclusionsByTV: true,
		Ties: TieMethods{
			ElectingOneOfLastTwo:     tieresolve.MethodRequireAllDifferent,
			ElectingByQuota:          tieresolve.MethodRequireAllDifferent,
			ElectingAllRemaining:     tieresolve.MethodRequireAllDifferent,
			ChoosingLowestForExclude: tieresolve.MethodRequireAllDifferent,
		},
		MidSurplusElectionCheck:      false,
		MidExclusionElectionCheck:    false,
		FinishAllCountsWhenAllElected: true,
		TwoRemainingHigherWins:    ShortcutClause{Enabled: true, When: CheckAtEvaluateOnly},
		ContinuingEqualsVacancies: ShortcutClause{Enabled: true, When: CheckAtEvaluateOnly},
		TopFewOverwhelming:        ShortcutClause{Enabled: false, When: CheckNever},
		AllowRule13AMultiExclusion: true,
		CountNaming:                CountNamingSimpleInteger,
		ElectionForcesNewMajorCount: false,
	}
}

// DefaultACT is the ACT Legislative Assembly Hare-Clark count: six-decimal
// fixed-point tallies, surplus-over-all-ballots TV, round-half-down.
func DefaultACT() Parameterization {
	p := DefaultFederal()
	p.Name = "ACT-Legislative-Assembly"
	p.TallyKind = TallyDecimal
	p.DecimalPlaces = 6
	p.TVSource = TVSourceAllBallots
	p.Rounding = arithmetic.RoundHalfDown
	p.SurplusSubdivision = SingleAggregateTransfer
	p.AllowRule13AMultiExclusion = false
	p.CountNaming = CountNamingMajorMinor
	return p
}

// DefaultNSWLC is the NSW Legislative Council count: integer tallies,
// surplus-over-continuing-ballots TV, and mid-exclusion election checks.
func DefaultNSWLC() Parameterization {
	p := DefaultFederal()
	p.Name = "NSW-Legislative-Council"
	p.TVSource = TVSourceContinuingBallots
	p.LastParcel = LastParcelOnly
	p.RandomSampleSurplus = true
	p.MidExclusionElectionCheck = true
	p.AllowRule13AMultiExclusion = false
	p.CountNaming = CountNamingDerivedFromAction
	return p
}

// DefaultNSWLGE is the NSW Local Government Elections count, sharing the
// Legislative Council's TV source but checking for election mid-surplus
// as well as mid-exclusion (spec §9's Open Question on this point is
// resolved as a per-rule-set field, not hardcoded).
func DefaultNSWLGE() Parameterization {
	p := DefaultNSWLC()
	p.Name = "NSW-Local-Government"
	p.MidSurplusElectionCheck = true
	p.TopFewOverwhelming = ShortcutClause{Enabled: true, When: CheckAtEvaluateOnly}
	return p
}

// DefaultVIC is the Victorian Legislative Council count.
func DefaultVIC() Parameterization {
	p := DefaultFederal()
	p.Name = "VIC-Legislative-Council"
	p.TVSource = TVSourceContinuingBallots
	p.AllowRule13AMultiExclusion = false
	return p
}

// DefaultWA is the Western Australian Legislative Council count.
func DefaultWA() Parameterization {
	p := DefaultFederal()
	p.Name = "WA-Legislative-Council"
	p.AllowRule13AMultiExclusion = false
	return p
}

// DefaultSA is the South Australian Legislative Council count.
func DefaultSA() Parameterization {
	p := DefaultFederal()
	p.Name = "SA-Legislative-Council"
	p.TVSource = TVSourceContinuingBallots
	p.AllowRule13AMultiExclusion = false
	return p
}

// All returns every rule set this package ships, in a stable order.
func All() []Parameterization {
	return []Parameterization{
		DefaultFederal(), DefaultACT(), DefaultNSWLC(), DefaultNSWLGE(),
		DefaultVIC(), DefaultWA(), DefaultSA(), DefaultMinimal(),
	}
}

// ByName resolves a rule set from its Name, the form callers pass on a
// command line. Unknown names report errkind.ErrRuleUnsupported.
func ByName(name string) (Parameterization, error) {
	for _, p := range All() {
		if p.Name == name {
			return p, nil
		}
	}
	return Parameterization{}, fmt.Errorf("%w: %q", errkind.ErrRuleUnsupported, name)
}

// DefaultMinimal is a reference rule set with every optional clause
// disabled, useful for tests that want the plainest possible count loop.
func DefaultMinimal() Parameterization {
	return Parameterization{
		Name:               "Minimal-Reference",
		TallyKind:          TallyInt,
		Subdivision:        pile.SubdivisionNone,
		TVSource:           TVSourceAllBallots,
		LimitTVToOne:       true,
		LastParcel:         AllParcels,
		Rounding:           arithmetic.RoundFloor,
		SurplusSubdivision: SingleAggregateTransfer,
		SortExclusionsByTV: false,
		Ties: TieMethods{
			ElectingOneOfLastTwo:     tieresolve.MethodNone,
			ElectingByQuota:          tieresolve.MethodNone,
			ElectingAllRemaining:     tieresolve.MethodNone,
			ChoosingLowestForExclude: tieresolve.MethodNone,
		},
		MidSurplusElectionCheck:      false,
		MidExclusionElectionCheck:    false,
		FinishAllCountsWhenAllElected: false,
		TwoRemainingHigherWins:    ShortcutClause{Enabled: false, When: CheckNever},
		ContinuingEqualsVacancies: ShortcutClause{Enabled: false, When: CheckNever},
		TopFewOverwhelming:        ShortcutClause{Enabled: false, When: CheckNever},
		AllowRule13AMultiExclusion: false,
		CountNaming:                CountNamingSimpleInteger,
		ElectionForcesNewMajorCount: false,
	}
}
