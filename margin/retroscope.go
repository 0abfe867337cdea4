package margin

import (
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/engine"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/pile"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
	"github.com/rawblock/stv/transcript"
)

// Retroscope is a replay of one count, recording which ballots sat in
// which (candidate, transfer-value) pile after every count (spec §4.6,
// §9's "index-based arena... avoids aliasing issues across the many
// speculative replays"). A Retroscope is built once per election and
// reused to generate every candidate proposal, so it must never be
// mutated by a caller.
type Retroscope struct {
	// ByCount[i] is the complete pile state after count i.
	ByCount []map[pile.Key]*pile.Pile
}

// BuildRetroscope replays data under params and records a snapshot after
// every count using engine.Observer. It returns both the retroscope and
// the transcript the replay produced, since callers (margin.Search) need
// the original transcript's elected list as the baseline to diff against.
func BuildRetroscope(params rules.Parameterization, data *ballot.Data, vacancies int, ec *tieresolve.ECDecisions) (*Retroscope, *transcript.Transcript, error) {
	rs := &Retroscope{}
	e, err := engine.New(params, data, vacancies, ec, randsrc.ReverseDonkey{}, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	e.SetObserver(engine.ObserverFunc(func(count int, piles *pile.Piles) {
		rs.ByCount = append(rs.ByCount, piles.Snapshot())
	}))
	tr, err := e.Run()
	if err != nil {
		return nil, nil, err
	}
	return rs, tr, nil
}

// LastHoldingsOf returns every ballot candidate c held, at the last count
// before their piles were emptied (by election or exclusion), along with
// the transfer value each pile carried. Returns nil if c never held any
// ballots (impossible for a validated election, but defensive against a
// candidate excluded with zero votes at count 0).
func (r *Retroscope) LastHoldingsOf(c ballot.Candidate) []*pile.Pile {
	for i := len(r.ByCount) - 1; i >= 0; i-- {
		var piles []*pile.Pile
		for k, p := range r.ByCount[i] {
			if k.Candidate == c {
				piles = append(piles, p)
			}
		}
		if len(piles) > 0 {
			return piles
		}
	}
	return nil
}
