package arithmetic

import (
	"fmt"
	"math/big"
)

// TransferValue is a non-negative rational in [0,1], applied to ballots
// being transferred so that a candidate's surplus is proportionally
// distributed (spec GLOSSARY). It is always stored exactly, regardless of
// which Tally type the rule set has selected for candidate tallies —
// spec §4.1's "exact-rational" use-transfer-value-rounding option needs the
// fraction itself to never lose precision, only its application to a paper
// count does.
type TransferValue struct {
	v *big.Rat
}

// One is the transfer value 1/1, used for first-preference ballots and for
// the "limited" TV-source rule when the nominal value would exceed 1.
func One() TransferValue { return TransferValue{v: big.NewRat(1, 1)} }

// Zero is the transfer value 0/1.
func Zero() TransferValue { return TransferValue{v: big.NewRat(0, 1)} }

// FromSurplusOverBallots constructs surplus ÷ all-ballots (spec §4.1's TV
// source (a)).
func FromSurplusOverBallots(surplusNumerator, ballots int64) TransferValue {
	if ballots == 0 {
		return Zero()
	}
	return TransferValue{v: big.NewRat(surplusNumerator, ballots)}
}

// FromSurplusOverContinuingBallots constructs surplus ÷ continuing-ballots
// (spec §4.1's TV source (b)).
func FromSurplusOverContinuingBallots(surplusNumerator, continuingBallots int64) TransferValue {
	return FromSurplusOverBallots(surplusNumerator, continuingBallots)
}

// FromSurplusTimesPriorTV constructs surplus ÷ votes × prior-TV — the
// "weighted inclusive Gregory" method (spec §4.1's TV source (c)).
func FromSurplusTimesPriorTV(surplusNumerator, votes int64, prior TransferValue) TransferValue {
	base := FromSurplusOverBallots(surplusNumerator, votes)
	return TransferValue{v: new(big.Rat).Mul(base.v, prior.v)}
}

// FromSurplusRatOverBallots is FromSurplusOverBallots generalized to a
// surplus that is itself an exact rational rather than an integer
// numerator, needed when the rule set's candidate tally kind is Decimal
// or Rational rather than Int.
func FromSurplusRatOverBallots(surplus *big.Rat, ballots int64) TransferValue {
	if ballots == 0 {
		return Zero()
	}
	return TransferValue{v: new(big.Rat).Quo(surplus, big.NewRat(ballots, 1))}
}

// FromSurplusRatTimesPriorTV is FromSurplusTimesPriorTV generalized to a
// rational surplus.
func FromSurplusRatTimesPriorTV(surplus *big.Rat, votes int64, prior TransferValue) TransferValue {
	base := FromSurplusRatOverBallots(surplus, votes)
	return TransferValue{v: new(big.Rat).Mul(base.v, prior.v)}
}

// Limited returns min(1, tv) — spec §4.1's TV source (d).
func (tv TransferValue) Limited() TransferValue {
	if tv.v.Cmp(big.NewRat(1, 1)) > 0 {
		return One()
	}
	return tv
}

func (tv TransferValue) Cmp(other TransferValue) int { return tv.v.Cmp(other.v) }
func (tv TransferValue) String() string              { return tv.v.RatString() }
func (tv TransferValue) Float64() float64 {
	f, _ := tv.v.Float64()
	return f
}

// RoundingPolicy converts TV × papers into a tally increment, tracking
// whatever the operation cannot represent exactly as rounding loss (spec
// §4.1's "Use-transfer-value rounding"). It is one of Floor,
// RoundHalfDown, or Exact.
type RoundingPolicy int

const (
	// RoundFloor takes floor(TV * papers): the legacy Federal behavior.
	RoundFloor RoundingPolicy = iota
	// RoundHalfDown rounds to the nearest integer, ties rounding down.
	RoundHalfDown
	// RoundExact keeps the full rational result with no loss; only valid
	// when the candidate tally type is Rational.
	RoundExact
)

// ApplyToInt multiplies tv by papers and applies the rounding policy,
// returning the integer increment and the fractional shortfall (which the
// caller adds to the rounding-loss bucket). ApplyToInt panics if called
// with RoundExact — exact application belongs on Rational tallies via
// ApplyExact.
func (p RoundingPolicy) ApplyToInt(tv TransferValue, papers int) (increment int64, loss *big.Rat) {
	product := new(big.Rat).Mul(tv.v, big.NewRat(int64(papers), 1))
	switch p {
	case RoundFloor:
		q := new(big.Int).Quo(product.Num(), product.Denom())
		// big.Int.Quo truncates toward zero; for our non-negative values
		// that's equivalent to floor.
		floor := new(big.Rat).SetFrac(q, big.NewInt(1))
		loss = new(big.Rat).Sub(product, floor)
		return q.Int64(), loss
	case RoundHalfDown:
		// floor(product), then bump up by one only if the fractional
		// remainder is strictly more than one half — ties round down.
		floorQ := new(big.Int).Quo(product.Num(), product.Denom())
		floor := new(big.Rat).SetFrac(floorQ, big.NewInt(1))
		frac := new(big.Rat).Sub(product, floor)
		if frac.Cmp(big.NewRat(1, 2)) > 0 {
			floorQ.Add(floorQ, big.NewInt(1))
		}
		rounded := new(big.Rat).SetFrac(floorQ, big.NewInt(1))
		loss = new(big.Rat).Sub(product, rounded)
		return floorQ.Int64(), loss
	default:
		panic(fmt.Sprintf("arithmetic: RoundingPolicy %d cannot ApplyToInt; use ApplyExact on a Rational tally", p))
	}
}

// ApplyExact multiplies tv by papers with no loss, for use with Rational
// tallies under RoundExact.
func (p RoundingPolicy) ApplyExact(tv TransferValue, papers int) *big.Rat {
	if p != RoundExact {
		panic("arithmetic: ApplyExact called with a non-exact RoundingPolicy")
	}
	return new(big.Rat).Mul(tv.v, big.NewRat(int64(papers), 1))
}
