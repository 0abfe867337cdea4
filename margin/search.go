// Package margin's outer driver: generate candidate vote-change proposals
// from a retroscope, evaluate each (in parallel, spec §5's batch-layer
// concurrency) via Optimise, and fold survivors into a dominance-pruned
// Catalog.
package margin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/internal/candset"
	"github.com/rawblock/stv/internal/stvmetrics"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
)

// SearchOptions configures a full margin search over one election.
type SearchOptions struct {
	Params    rules.Parameterization
	Data      *ballot.Data
	Vacancies int
	EC        *tieresolve.ECDecisions

	// Edit bounds MakeConcrete's eligibility.
	Edit Options

	// NumWorkers bounds how many proposals are evaluated concurrently.
	// Zero or negative means serial.
	NumWorkers int

	// Metrics, if non-nil, is incremented once per proposal evaluated.
	Metrics *stvmetrics.Metrics
}

// Search runs spec §4.6's full margin search: every elected/non-elected
// candidate pair is proposed as a transfer target in both directions,
// each proposal is optimised independently, and every improvement is
// folded into the returned Catalog.
func Search(ctx context.Context, opts SearchOptions) (*Catalog, error) {
	retro, tr, err := BuildRetroscope(opts.Params, opts.Data, opts.Vacancies, opts.EC)
	if err != nil {
		return nil, err
	}
	base := Baseline{Params: opts.Params, Vacancies: opts.Vacancies, EC: opts.EC, Elected: tr.Elected}

	elected := candset.Of(tr.Elected...)
	numCandidates := opts.Data.Metadata.NumCandidates()
	var notElected []ballot.Candidate
	for i := 0; i < numCandidates; i++ {
		c := ballot.Candidate(i)
		if !elected.Contains(c) {
			notElected = append(notElected, c)
		}
	}

	proposals := buildProposals(tr.Elected, notElected, retro)

	cat := NewCatalog()
	workers := opts.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(proposals) {
		workers = len(proposals)
	}
	if workers == 0 {
		return cat, nil
	}

	results := make([]*FoundChange, len(proposals))
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	g.Go(func() error {
		defer close(jobs)
		for i := range proposals {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = Optimise(proposals[i], opts.Data, retro, opts.Edit, base)
				opts.Metrics.ObserveMarginProposal()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		cat.AddFound(r)
	}
	return cat, nil
}

// buildProposals enumerates one transfer proposal per (elected,
// not-elected) pair in each direction, seeded with an upper bound of
// "every paper the source candidate actually holds" (per the retroscope's
// final snapshot of that candidate's piles) for Optimise's binary search
// to shrink from. Seeding with the whole electorate's vote count instead
// would make SimpleTest's very first trial fail as
// NotEnoughVotesAvailable for almost any real election, and
// optimiseWork gives up immediately on that outcome without ever
// shrinking the bound.
func buildProposals(elected, notElected []ballot.Candidate, retro *Retroscope) []VoteChanges {
	var out []VoteChanges
	for _, e := range elected {
		for _, ne := range notElected {
			if upper := heldPapers(retro, e); upper > 0 {
				var vc VoteChanges
				vc.Transfer(upper, e, ne)
				out = append(out, vc)
			}
			if upper := heldPapers(retro, ne); upper > 0 {
				var vc2 VoteChanges
				vc2.Transfer(upper, ne, e)
				out = append(out, vc2)
			}
		}
	}
	return out
}

// heldPapers sums the papers c held across every pile in its last
// non-empty holdings.
func heldPapers(retro *Retroscope, c ballot.Candidate) int {
	n := 0
	for _, p := range retro.LastHoldingsOf(c) {
		n += p.Papers()
	}
	return n
}
