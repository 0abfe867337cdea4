// Package tieresolve breaks ties between candidates with equal tallies,
// in the three stages spec §4.4 requires: look back through the count
// history for an earlier count at which the tied candidates differed,
// fall back to a list of decisions the electoral commission has already
// made (so a re-run reproduces a real count exactly), and only then fall
// back to randomness.
//
// Grounded on stv/src/tie_resolution.rs from the Rust original
// (_examples/original_source/stv/src/tie_resolution.rs): the Method enum,
// the granularity distinction between needing a total order and needing
// only the lowest candidates separated, and the two historical-lookback
// algorithms are carried over near verbatim, generalized from Rust's
// generic Tally: Ord bound to this module's arithmetic.Tally interface.
package tieresolve

import (
	"fmt"
	"sort"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/internal/randsrc"
)

// Method selects which historical-lookback algorithm applies, one of the
// four junctures spec §4.4 names (order elected, order excluded, who's
// excluded next, who's elected alongside a quota-reaching candidate).
type Method int

const (
	// MethodNone never resolves ties historically; every tie goes
	// straight to the EC decision list, then randomness.
	MethodNone Method = iota
	// MethodRequireAllDifferent requires a single earlier count at which
	// every tied candidate's tally was distinct (Commonwealth Electoral
	// Act 1918 s273(20)(b)).
	MethodRequireAllDifferent
	// MethodAnyDifferent accepts the first earlier count with at least
	// one difference, splitting the tied set into ordered groups and
	// recursing within any group still tied.
	MethodAnyDifferent
)

// Granularity controls how much of the ordering actually matters to the
// caller (spec §4.4: an exclusion only needs the single lowest candidate
// separated from the rest; computing order-elected needs a total order).
type Granularity struct {
	// Total requires the whole slice to end up in a strict order.
	Total bool
	// LowestSeparated, when Total is false, is the count of lowest
	// candidates that must be separated from the remainder.
	LowestSeparated int
}

// TotalOrder is the Granularity that demands a complete ordering.
func TotalOrder() Granularity { return Granularity{Total: true} }

// LowestN is the Granularity that only needs the lowest n candidates
// separated out.
func LowestN(n int) Granularity { return Granularity{LowestSeparated: n} }

// History is the per-count candidate tally record a resolver looks back
// through. transcript.Transcript implements this; it is expressed as an
// interface here so tieresolve never imports transcript.
type History interface {
	NumCounts() int
	TallyAtCount(count int, c ballot.Candidate) arithmetic.Tally
}

// ECDecision is a single order the electoral commission is known to have
// decided for some prior tie, low to high. Candidates not all present in
// a given tie are skipped when matching.
type ECDecision []ballot.Candidate

// ECDecisions is an ordered list of decisions an electoral commission has
// published, consulted when historical lookback fails to resolve a tie
// (spec §4.4's second stage).
type ECDecisions struct {
	decisions []ECDecision
}

// NewECDecisions validates that no decision repeats a candidate, mirroring
// tie_resolution.rs's constructor check.
func NewECDecisions(decisions []ECDecision) (*ECDecisions, error) {
	for _, d := range decisions {
		seen := make(map[ballot.Candidate]bool, len(d))
		for _, c := range d {
			if seen[c] {
				return nil, fmt.Errorf("tieresolve: decision %v contains a repeated candidate %v", d, c)
			}
			seen[c] = true
		}
	}
	return &ECDecisions{decisions: decisions}, nil
}

// Resolve orders tied low to high using the first decision whose
// candidate set is a superset of tied, in the decision's relative order.
// If no decision matches, tied is left sorted by candidate index, which
// is spec §4.4's documented last-resort convention ("earlier on the
// ballot paper ranks lower").
func (d *ECDecisions) Resolve(tied []ballot.Candidate) {
	if d.resolveExact(tied) {
		return
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
}

// resolveExact applies only a matching recorded decision, making no
// attempt at an index-order fallback. Used by ResolveOrError, which wants
// to distinguish "the EC already decided this" from "nobody has decided
// this yet".
func (d *ECDecisions) resolveExact(tied []ballot.Candidate) bool {
	tiedSet := make(map[ballot.Candidate]bool, len(tied))
	for _, c := range tied {
		tiedSet[c] = true
	}
	for _, decision := range d.decisions {
		var deemed []ballot.Candidate
		for _, c := range decision {
			if tiedSet[c] {
				deemed = append(deemed, c)
			}
		}
		if len(deemed) == len(tied) {
			copy(tied, deemed)
			return true
		}
	}
	return false
}

// MatchDecision applies only a recorded decision that covers every tied
// candidate, reporting whether one was found. Unlike Resolve, it
// never falls back to index order, so a caller can tell "the EC already
// decided this" apart from "nobody has decided this yet" and fall
// through to a further stage of its own (e.g. ResolveByRandomness) only
// in the latter case.
func (d *ECDecisions) MatchDecision(tied []ballot.Candidate) bool {
	return d.resolveExact(tied)
}

// ResolveOrError applies method, then (if still unresolved) any EC
// decision that covers every tied candidate, and returns
// errkind.ErrTieUnresolved if neither settles it — deliberately stopping
// short of the index-order/randomness fallbacks Resolve and
// ResolveByRandomness apply, since a caller asking this question needs to
// be able to tell "undecided" apart from "arbitrarily decided".
func ResolveOrError(method Method, tied []ballot.Candidate, hist History, g Granularity, ec *ECDecisions) ([]ballot.Candidate, error) {
	cp := append([]ballot.Candidate(nil), tied...)
	if method.Resolve(cp, hist, g) {
		return cp, nil
	}
	if ec != nil && ec.resolveExact(cp) {
		return cp, nil
	}
	return nil, fmt.Errorf("%w: %v", errkind.ErrTieUnresolved, tied)
}

// Resolve sorts tied low to high according to method, returning true if it
// fully resolved the tie to the requested granularity. On failure tied is
// left in its input order and the caller must fall back to ECDecisions,
// then randomness.
func (m Method) Resolve(tied []ballot.Candidate, hist History, g Granularity) bool {
	switch m {
	case MethodRequireAllDifferent:
		return resolveRequireAllDifferent(tied, hist)
	case MethodAnyDifferent:
		return resolveAnyDifferent(tied, hist, g)
	default:
		return false
	}
}

func resolveRequireAllDifferent(tied []ballot.Candidate, hist History) bool {
	for count := hist.NumCounts() - 1; count >= 0; count-- {
		seen := make(map[string]bool, len(tied))
		distinct := true
		for _, c := range tied {
			key := hist.TallyAtCount(count, c).String()
			if seen[key] {
				distinct = false
				break
			}
			seen[key] = true
		}
		if distinct {
			sort.Slice(tied, func(i, j int) bool {
				return hist.TallyAtCount(count, tied[i]).Cmp(hist.TallyAtCount(count, tied[j])) < 0
			})
			return true
		}
	}
	return false
}

func resolveAnyDifferent(tied []ballot.Candidate, hist History, g Granularity) bool {
	for count := hist.NumCounts() - 1; count >= 0; count-- {
		groups := groupByTally(tied, hist, count)
		if len(groups) <= 1 {
			continue
		}
		ok := true
		upto := 0
		for _, group := range groups {
			if len(group) > 1 {
				sub := g
				if !g.Total {
					loc := g.LowestSeparated
					if loc > upto && loc < upto+len(group) {
						sub = LowestN(loc - upto)
					} else {
						// Granularity already satisfied or not touched by
						// this group; don't recurse further.
						copy(tied[upto:upto+len(group)], group)
						upto += len(group)
						continue
					}
				}
				if !resolveAnyDifferent(group, hist, sub) {
					ok = false
				}
			}
			copy(tied[upto:upto+len(group)], group)
			upto += len(group)
		}
		return ok
	}
	return false
}

// groupByTally partitions tied into groups sharing the same tally at
// count, the groups themselves ordered low to high by tally.
func groupByTally(tied []ballot.Candidate, hist History, count int) [][]ballot.Candidate {
	byKey := make(map[string][]ballot.Candidate)
	var keys []string
	tallyOf := make(map[string]arithmetic.Tally)
	for _, c := range tied {
		t := hist.TallyAtCount(count, c)
		k := t.String()
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
			tallyOf[k] = t
		}
		byKey[k] = append(byKey[k], c)
	}
	sort.Slice(keys, func(i, j int) bool { return tallyOf[keys[i]].Cmp(tallyOf[keys[j]]) < 0 })
	groups := make([][]ballot.Candidate, len(keys))
	for i, k := range keys {
		groups[i] = byKey[k]
	}
	return groups
}

// ResolveByRandomness is the final fallback stage (spec §4.4), used only
// once both historical lookback and the EC decision list have failed to
// resolve a tie. It shuffles tied with a Fisher-Yates pass driven by
// source so the outcome is reproducible given the same seed.
func ResolveByRandomness(tied []ballot.Candidate, source randsrc.Source) {
	if source == nil {
		source = randsrc.ReverseDonkey{}
	}
	for i := len(tied) - 1; i > 0; i-- {
		j := int(source.Uint64() % uint64(i+1))
		tied[i], tied[j] = tied[j], tied[i]
	}
}
