// Package arithmetic provides the exact numeric types spec §3 requires: an
// unbounded-integer tally, a fixed-precision decimal tally (for
// jurisdictions like ACT that count to 6 decimal places), and an exact
// rational tally, plus the TransferValue fraction and the rounding
// policies used to convert TV*papers into a tally increment.
//
// Grounded on stv/src/fixed_precision_decimal.rs (the Rust original's
// 6-decimal fixed point type) and on
// other_examples/c31940c5_OpenSlides-openslides-vote-service__vote-stv_scottish.go.go,
// a real production STV counter that performs exactly this arithmetic with
// github.com/shopspring/decimal.
package arithmetic

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Tally is implemented by each of the three concrete tally representations
// a rule set may select (spec §4.1's "Tally type"). All pile-to-candidate
// additions and subtractions go through these methods so the conservation
// invariant (spec §8) holds regardless of which concrete type is in use.
type Tally interface {
	Add(Tally) Tally
	Sub(Tally) Tally
	Cmp(Tally) int
	IsZero() bool
	String() string
}

// ---- Int: unbounded integer tally (Federal, most jurisdictions) ----

// Int is an unbounded-integer tally, backed by math/big.Int so large
// electorates never overflow.
type Int struct{ v *big.Int }

// NewInt constructs an Int tally from a plain int.
func NewInt(n int) Int { return Int{v: big.NewInt(int64(n))} }

func (a Int) mustInt(b Tally) Int {
	bi, ok := b.(Int)
	if !ok {
		panic(fmt.Sprintf("arithmetic: mixed tally types: Int vs %T", b))
	}
	return bi
}

func (a Int) Add(b Tally) Tally { return Int{v: new(big.Int).Add(a.v, a.mustInt(b).v)} }
func (a Int) Sub(b Tally) Tally { return Int{v: new(big.Int).Sub(a.v, a.mustInt(b).v)} }
func (a Int) Cmp(b Tally) int   { return a.v.Cmp(a.mustInt(b).v) }
func (a Int) IsZero() bool      { return a.v.Sign() == 0 }
func (a Int) String() string    { return a.v.String() }

// Int64 returns the tally as an int64, for callers that need it as a
// machine integer (e.g. to compare against a quota derived from a plain
// ballot count).
func (a Int) Int64() int64 { return a.v.Int64() }

// ---- Decimal: fixed-precision decimal tally (ACT and similar) ----

// Decimal is a fixed-precision decimal tally backed by
// github.com/shopspring/decimal, truncated (never rounded) to a configured
// number of places whenever it is the result of a multiply — matching
// fixed_precision_decimal.rs's scaled-integer semantics, where the
// shortfall from truncation must be tracked as rounding loss rather than
// silently dropped.
type Decimal struct {
	v      decimal.Decimal
	places int32
}

// NewDecimal constructs a Decimal tally with the given number of decimal
// places (6 for ACT, per spec §3).
func NewDecimal(n int, places int32) Decimal {
	return Decimal{v: decimal.NewFromInt(int64(n)), places: places}
}

// DecimalFromString parses a decimal literal ("45.25") at the given
// precision, mirroring fixed_precision_decimal.rs's FromStr impl.
func DecimalFromString(s string, places int32) (Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{v: v.Truncate(places), places: places}, nil
}

func (a Decimal) mustDecimal(b Tally) Decimal {
	bd, ok := b.(Decimal)
	if !ok {
		panic(fmt.Sprintf("arithmetic: mixed tally types: Decimal vs %T", b))
	}
	return bd
}

func (a Decimal) Add(b Tally) Tally {
	bd := a.mustDecimal(b)
	return Decimal{v: a.v.Add(bd.v), places: a.places}
}
func (a Decimal) Sub(b Tally) Tally {
	bd := a.mustDecimal(b)
	return Decimal{v: a.v.Sub(bd.v), places: a.places}
}
func (a Decimal) Cmp(b Tally) int { return a.v.Cmp(a.mustDecimal(b).v) }
func (a Decimal) IsZero() bool    { return a.v.IsZero() }
func (a Decimal) String() string  { return a.v.Truncate(a.places).String() }

// Mul multiplies this decimal by a plain integer (papers). Since a is
// already truncated to its configured precision, multiplying by an
// integer never adds decimal places, so this step alone never loses
// precision — the truncation loss for a fixed-precision tally happens
// when the transfer value is first derived from a division, not here.
// See DecimalDivide.
func (a Decimal) Mul(papers int) Decimal {
	return Decimal{v: a.v.Mul(decimal.NewFromInt(int64(papers))), places: a.places}
}

// DecimalDivide computes numerator/denominator truncated to places decimal
// digits, and returns the truncated-away remainder as the rounding-loss
// contribution — the fixed-precision analogue of
// fixed_precision_decimal.rs's from_rational_rounding_down, which is how a
// jurisdiction like ACT derives a transfer value from surplus/ballots
// without ever representing it as an exact rational.
func DecimalDivide(numerator, denominator int64, places int32) (quotient, loss Decimal) {
	exact := decimal.NewFromInt(numerator).DivRound(decimal.NewFromInt(denominator), places+8)
	truncated := exact.Truncate(places)
	return Decimal{v: truncated, places: places}, Decimal{v: exact.Sub(truncated), places: places + 8}
}

// ---- Rational: exact rational tally (jurisdictions demanding exactness) ----

// Rational is an exact rational tally backed by math/big.Rat, used only
// where legislation demands exact (never-rounded) arithmetic (spec §9).
type Rational struct{ v *big.Rat }

// NewRational constructs a Rational tally from a plain int.
func NewRational(n int) Rational { return Rational{v: big.NewRat(int64(n), 1)} }

// NewRationalFromRat wraps an existing exact rational as a Rational
// tally, used when the engine has already computed a TV * papers product
// as a big.Rat and the rule set's tally kind is Rational.
func NewRationalFromRat(r *big.Rat) Rational { return Rational{v: new(big.Rat).Set(r)} }

// DecimalFromRat truncates an exact rational to places decimal digits and
// wraps it as a Decimal tally, used when the engine has computed a TV *
// papers product as a big.Rat and the rule set's tally kind is Decimal.
// Truncation is performed on the rational directly (scale by 10^places,
// integer-divide toward zero) so no floating-point rounding is involved.
func DecimalFromRat(r *big.Rat, places int32) Decimal {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))
	intPart := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	return Decimal{v: decimal.NewFromBigInt(intPart, -places), places: places}
}

func (a Rational) mustRational(b Tally) Rational {
	br, ok := b.(Rational)
	if !ok {
		panic(fmt.Sprintf("arithmetic: mixed tally types: Rational vs %T", b))
	}
	return br
}

func (a Rational) Add(b Tally) Tally { return Rational{v: new(big.Rat).Add(a.v, a.mustRational(b).v)} }
func (a Rational) Sub(b Tally) Tally { return Rational{v: new(big.Rat).Sub(a.v, a.mustRational(b).v)} }
func (a Rational) Cmp(b Tally) int   { return a.v.Cmp(a.mustRational(b).v) }
func (a Rational) IsZero() bool      { return a.v.Sign() == 0 }
func (a Rational) String() string    { return a.v.RatString() }

// Sum adds a slice of tallies together, starting from zero, the same type
// as the first element. Returns nil for an empty slice.
func Sum(ts []Tally) Tally {
	if len(ts) == 0 {
		return nil
	}
	sum := ts[0]
	for _, t := range ts[1:] {
		sum = sum.Add(t)
	}
	return sum
}
