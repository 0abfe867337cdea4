package margin

import (
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/pile"
)

// Options bounds what MakeConcrete is allowed to touch when turning a
// VoteChanges proposal into real ballot edits (spec §4.6: "may ATL be
// edited; may first preferences be edited; which vote types are
// considered unverifiable").
type Options struct {
	// AllowATLEdits permits touching ballots that arrived as an
	// above-the-line vote. When false, only BTL-origin ballots are
	// eligible source material for Transfer/Remove.
	AllowATLEdits bool
	// AllowFirstPreferenceEdits permits touching a ballot at the
	// candidate who was its literal first preference (position 0 of its
	// original, undistributed preference list). Many jurisdictions treat
	// a changed first preference as a materially different (and harder
	// to dismiss as a data-entry slip) kind of manipulation, so callers
	// wanting a conservative margin estimate leave this false.
	AllowFirstPreferenceEdits bool
	// IsUnverifiable reports whether a ballot's origin is one whose exact
	// content cannot be checked against a physical paper (e.g. an
	// electronically lodged "iVote"-style ballot). Nil means no vote type
	// is treated as unverifiable. Used only to label found changes
	// (ChangeTypes.ChangedPhysicalBallots is the negation), not to gate
	// eligibility.
	IsUnverifiable func(ballot.VoteSource) bool
}

// EditKind distinguishes the three ways a ballot edit touches the election
// data.
type EditKind int

const (
	EditAdded EditKind = iota
	EditRemoved
	EditChanged
)

// BallotEdit is one concrete, physically-boundable edit: peel Papers
// papers off an existing record (Removed/Changed) or synthesize a new one
// (Added).
type BallotEdit struct {
	Kind EditKind

	// SourceWasATL, FirstPreferenceWasFrom and Unverifiable describe the
	// peeled-off papers' origin, used by DeduceChangeTypes; irrelevant
	// for EditAdded.
	SourceWasATL            bool
	FirstPreferenceWasFrom  bool
	Unverifiable            bool

	// Original identifies, for Removed/Changed, which Data.ATL or
	// Data.BTL record (by index into the ballot.Data passed to
	// MakeConcrete) the papers are peeled from.
	OriginalIsATL  bool
	OriginalIndex  int

	Papers int

	// NewPreferences is the edited ballot's full preference list, for
	// EditAdded and EditChanged. Always represented as a concrete BTL
	// preference list regardless of the source's original ATL/BTL shape
	// — from the affected voter's point of view a margin edit just
	// changes their effective preference order.
	NewPreferences []ballot.Candidate
}

// BallotChanges is a fully concrete set of edits, ready to Apply to an
// ballot.Data and re-run through the engine.
type BallotChanges struct {
	// N is the total number of ballot papers touched across every edit
	// (spec §4.6's BallotPaperCount; this implementation does not weight
	// by transfer value).
	N     int
	Edits []BallotEdit
}

// eligibleBallots gathers a candidate's final held ballots from the
// retroscope into a flat, edit-eligible list, filtering by opts.
func eligibleBallots(piles []*pile.Pile, opts Options) []pile.Ballot {
	var out []pile.Ballot
	for _, p := range piles {
		for _, b := range p.Ballots {
			if b.Source.IsATL && !opts.AllowATLEdits {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}

func firstPreference(b pile.Ballot) ballot.Candidate {
	if len(b.Preferences) == 0 {
		return -1
	}
	return b.Preferences[0]
}

func unverifiable(opts Options, b pile.Ballot) bool {
	if opts.IsUnverifiable == nil {
		return false
	}
	return opts.IsUnverifiable(b.Source)
}

// originalRecord locates which Data.ATL or Data.BTL element b was resolved
// from, by pointer identity (ballot.Data.Resolve hands out pointers into
// those very slices), returning its index within data.ATL/data.BTL.
func originalRecord(data *ballot.Data, b pile.Ballot) (isATL bool, idx int) {
	if b.Source.IsATL {
		for i := range data.ATL {
			if &data.ATL[i] == b.Source.ATL {
				return true, i
			}
		}
		return true, -1
	}
	for i := range data.BTL {
		if &data.BTL[i] == b.Source.BTL {
			return false, i
		}
	}
	return false, -1
}

// MakeConcrete resolves every VoteChange in vc against real ballots
// recorded in the retroscope, bounded by what is physically available and
// by opts. It returns ok=false (spec §4.6's NotEnoughVotesAvailable) if any
// single change cannot find enough eligible papers.
func MakeConcrete(vc VoteChanges, retro *Retroscope, data *ballot.Data, opts Options) (*BallotChanges, bool) {
	out := &BallotChanges{}
	for _, change := range vc.Changes {
		if change.N <= 0 {
			continue
		}
		switch {
		case change.From == nil && change.To != nil:
			out.Edits = append(out.Edits, BallotEdit{
				Kind:           EditAdded,
				Papers:         change.N,
				NewPreferences: []ballot.Candidate{*change.To},
			})
			out.N += change.N

		case change.From != nil && change.To == nil:
			edits, got := removeEdits(*change.From, change.N, retro, data, opts)
			if !got {
				return nil, false
			}
			out.Edits = append(out.Edits, edits...)
			out.N += change.N

		case change.From != nil && change.To != nil:
			edits, got := transferEdits(*change.From, *change.To, change.N, retro, data, opts)
			if !got {
				return nil, false
			}
			out.Edits = append(out.Edits, edits...)
			out.N += change.N

		default:
			continue // both nil: a no-op change, ignore.
		}
	}
	return out, true
}

// removeEdits peels up to n papers off from's eligible held ballots.
func removeEdits(from ballot.Candidate, n int, retro *Retroscope, data *ballot.Data, opts Options) ([]BallotEdit, bool) {
	ballots := eligibleBallots(retro.LastHoldingsOf(from), opts)
	var edits []BallotEdit
	remaining := n
	for _, b := range ballots {
		if remaining <= 0 {
			break
		}
		fp := firstPreference(b) == from
		if fp && !opts.AllowFirstPreferenceEdits {
			continue
		}
		isATL, idx := originalRecord(data, b)
		if idx < 0 {
			continue
		}
		take := b.N
		if take > remaining {
			take = remaining
		}
		edits = append(edits, BallotEdit{
			Kind:                   EditRemoved,
			SourceWasATL:           b.Source.IsATL,
			FirstPreferenceWasFrom: fp,
			Unverifiable:           unverifiable(opts, b),
			OriginalIsATL:          isATL,
			OriginalIndex:          idx,
			Papers:                 take,
		})
		remaining -= take
	}
	return edits, remaining == 0
}

// transferEdits peels up to n papers off from's eligible held ballots and
// rewrites each one's preference list so that to receives the vote
// instead of from, leaving from in place afterwards (the voter is modeled
// as having preferred to over from, not as having struck from out
// entirely — a ballot still continuing past to would reach from exactly
// as before).
func transferEdits(from, to ballot.Candidate, n int, retro *Retroscope, data *ballot.Data, opts Options) ([]BallotEdit, bool) {
	ballots := eligibleBallots(retro.LastHoldingsOf(from), opts)
	var edits []BallotEdit
	remaining := n
	for _, b := range ballots {
		if remaining <= 0 {
			break
		}
		fp := firstPreference(b) == from
		if fp && !opts.AllowFirstPreferenceEdits {
			continue
		}
		idx := b.NextIndex - 1
		if idx < 0 || idx >= len(b.Preferences) || b.Preferences[idx] != from {
			continue // snapshot doesn't let us locate from's position; skip.
		}
		alreadyRanked := false
		for _, p := range b.Preferences[:idx] {
			if p == to {
				alreadyRanked = true
				break
			}
		}
		if alreadyRanked {
			continue // to is already ranked above from; no edit to make.
		}
		origIsATL, origIdx := originalRecord(data, b)
		if origIdx < 0 {
			continue
		}
		take := b.N
		if take > remaining {
			take = remaining
		}
		newPrefs := make([]ballot.Candidate, 0, len(b.Preferences)+1)
		newPrefs = append(newPrefs, b.Preferences[:idx]...)
		newPrefs = append(newPrefs, to)
		newPrefs = append(newPrefs, b.Preferences[idx:]...)

		edits = append(edits, BallotEdit{
			Kind:                   EditChanged,
			SourceWasATL:           b.Source.IsATL,
			FirstPreferenceWasFrom: fp,
			Unverifiable:           unverifiable(opts, b),
			OriginalIsATL:          origIsATL,
			OriginalIndex:          origIdx,
			Papers:                 take,
			NewPreferences:         newPrefs,
		})
		remaining -= take
	}
	return edits, remaining == 0
}

// Apply builds a fresh ballot.Data with every edit applied, splitting a
// partially-edited record's multiplicity into an untouched remainder and a
// changed/removed portion. The original data is never mutated.
func (bc *BallotChanges) Apply(data *ballot.Data) *ballot.Data {
	out := &ballot.Data{Metadata: data.Metadata, Informal: data.Informal}
	out.ATL = append([]ballot.ATL(nil), data.ATL...)
	out.BTL = append([]ballot.BTL(nil), data.BTL...)

	for _, e := range bc.Edits {
		switch e.Kind {
		case EditAdded:
			out.BTL = append(out.BTL, ballot.BTL{Candidates: e.NewPreferences, N: e.Papers})
		case EditRemoved:
			reduceOriginal(out, e)
		case EditChanged:
			reduceOriginal(out, e)
			out.BTL = append(out.BTL, ballot.BTL{Candidates: e.NewPreferences, N: e.Papers})
		}
	}

	// Drop any record whose multiplicity was reduced to zero or below —
	// ballot.Data.Validate rejects non-positive multiplicities.
	filteredATL := out.ATL[:0]
	for _, a := range out.ATL {
		if a.N > 0 {
			filteredATL = append(filteredATL, a)
		}
	}
	out.ATL = filteredATL
	filteredBTL := out.BTL[:0]
	for _, b := range out.BTL {
		if b.N > 0 {
			filteredBTL = append(filteredBTL, b)
		}
	}
	out.BTL = filteredBTL
	return out
}

// reduceOriginal peels e.Papers off the original record e.OriginalIndex
// names. out.ATL/out.BTL start as a positional copy of the source data, so
// the same index that located the ballot in data.ATL/data.BTL still
// locates it in out — Apply only ever appends new records, never reorders
// the originals.
func reduceOriginal(out *ballot.Data, e BallotEdit) {
	if e.OriginalIsATL {
		out.ATL[e.OriginalIndex].N -= e.Papers
		return
	}
	out.BTL[e.OriginalIndex].N -= e.Papers
}
