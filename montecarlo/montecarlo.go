// Package montecarlo runs the same count repeatedly with independent
// randomness sources and tallies who gets elected each time, so a
// tie-reliant rule set's sensitivity to the coin flip can be measured
// rather than assumed (spec §4.7).
//
// Grounded on stv/src/monte_carlo.rs's minimal SampleWithReplacement helper
// for the idea of repeated sampling, and on
// nsw/src/run_election_multiple_times.rs's PossibleResults /
// ResultForACandidate / new_from_runs_multithreaded for the actual batch
// harness — ported from std::thread::spawn+join to golang.org/x/sync/errgroup.
package montecarlo

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/engine"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/internal/stvmetrics"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
)

// ResultForCandidate tallies how often one candidate was elected across a
// batch of randomized counts, and at what average position.
type ResultForCandidate struct {
	Candidate      ballot.Candidate
	TimesElected   int
	SumOfPositions int
}

// MeanPosition is the average 1-indexed position this candidate was
// elected at, across the runs where they were elected at all.
func (r ResultForCandidate) MeanPosition() float64 {
	if r.TimesElected == 0 {
		return math.NaN()
	}
	return float64(r.SumOfPositions) / float64(r.TimesElected)
}

func (r *ResultForCandidate) merge(other ResultForCandidate) {
	r.TimesElected += other.TimesElected
	r.SumOfPositions += other.SumOfPositions
}

// PossibleResults accumulates the outcome of running the same election
// repeatedly with independent randomness.
type PossibleResults struct {
	NumRuns    int
	Candidates []ResultForCandidate
}

// NewPossibleResults returns an empty accumulator for an election with
// numCandidates candidates.
func NewPossibleResults(numCandidates int) *PossibleResults {
	cs := make([]ResultForCandidate, numCandidates)
	for i := range cs {
		cs[i].Candidate = ballot.Candidate(i)
	}
	return &PossibleResults{Candidates: cs}
}

// AddRun records one completed count's elected list.
func (p *PossibleResults) AddRun(elected []ballot.Candidate) {
	p.NumRuns++
	for i, c := range elected {
		p.Candidates[c].TimesElected++
		p.Candidates[c].SumOfPositions += i + 1
	}
}

// Merge folds other's counts into p.
func (p *PossibleResults) Merge(other *PossibleResults) {
	p.NumRuns += other.NumRuns
	for i := range p.Candidates {
		p.Candidates[i].merge(other.Candidates[i])
	}
}

// PossibleWinners returns every candidate elected at least once, most
// frequently elected first, ties broken by whoever was on average elected
// earlier.
func (p *PossibleResults) PossibleWinners() []ResultForCandidate {
	var out []ResultForCandidate
	for _, c := range p.Candidates {
		if c.TimesElected > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimesElected != out[j].TimesElected {
			return out[i].TimesElected > out[j].TimesElected
		}
		return out[i].MeanPosition() < out[j].MeanPosition()
	})
	return out
}

// IsCloseToExpectedProbWinning reports whether the observed win rate for a
// candidate is within five standard deviations of expectedProbWinning under
// a binomial model. Ported from
// run_election_multiple_times.rs's is_close_to_expected_prob_winning: a
// coarse sanity check, not a rigorous statistical test, intended for tests
// that assert a tie-break split is roughly fair rather than an exact count.
func (p *PossibleResults) IsCloseToExpectedProbWinning(c ballot.Candidate, expectedProbWinning float64) bool {
	expectedWins := expectedProbWinning * float64(p.NumRuns)
	expectedSD := math.Sqrt(expectedWins * (1 - expectedProbWinning))
	diff := float64(p.Candidates[c].TimesElected) - expectedWins
	if expectedSD == 0 {
		return diff == 0
	}
	sigmas := diff / expectedSD
	if sigmas < 0 {
		sigmas = -sigmas
	}
	return sigmas < 5
}

// RunOptions configures a batch of randomized counts over the same
// election data.
type RunOptions struct {
	Params    rules.Parameterization
	Data      *ballot.Data
	Vacancies int
	EC        *tieresolve.ECDecisions
	// Times is the total number of counts to run.
	Times int
	// MasterSeed seeds each worker's independent stream: worker i uses
	// MasterSeed+int64(i), so two workers never draw from the same stream
	// (spec §9's "no process-wide randomness state").
	MasterSeed int64
	// NumWorkers bounds how many counts run concurrently. Zero or negative
	// means run everything on a single worker — still correct, just serial.
	NumWorkers int
	// Metrics, if non-nil, is incremented once per completed count.
	Metrics *stvmetrics.Metrics
}

// Run runs opts.Times independent counts, splitting the work across
// opts.NumWorkers goroutines, and merges their outcomes into one
// PossibleResults. It stops at the first count that returns an error.
func Run(ctx context.Context, opts RunOptions) (*PossibleResults, error) {
	numCandidates := opts.Data.Metadata.NumCandidates()
	if opts.Times <= 0 {
		return NewPossibleResults(numCandidates), nil
	}
	workers := opts.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > opts.Times {
		workers = opts.Times
	}

	partials := make([]*PossibleResults, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		numToDo := opts.Times / workers
		if opts.Times%workers > w {
			numToDo++
		}
		g.Go(func() error {
			rnd := randsrc.NewSeeded(opts.MasterSeed + int64(w))
			partial := NewPossibleResults(numCandidates)
			for i := 0; i < numToDo; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				e, err := engine.New(opts.Params, opts.Data, opts.Vacancies, opts.EC, rnd, nil, nil)
				if err != nil {
					return err
				}
				tr, err := e.Run()
				if err != nil {
					return err
				}
				partial.AddRun(tr.Elected)
				opts.Metrics.ObserveMonteCarloRun()
			}
			partials[w] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res := NewPossibleResults(numCandidates)
	for _, p := range partials {
		res.Merge(p)
	}
	return res, nil
}
