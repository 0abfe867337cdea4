package montecarlo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/rules"
)

func twoCandidateTiedData() *ballot.Data {
	return &ballot.Data{
		Metadata: ballot.Metadata{
			Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
			Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}},
		},
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 10},
			{Candidates: []ballot.Candidate{1}, N: 10},
		},
	}
}

// TestRunDeterministicRuleSetAlwaysPicksSameWinner confirms that repeating
// a count with no real tie among tallies produces the same outcome every
// time, regardless of worker count.
func TestRunDeterministicRuleSetAlwaysPicksSameWinner(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: ballot.Metadata{
			Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
			Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}},
		},
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 60},
			{Candidates: []ballot.Candidate{1}, N: 40},
		},
	}

	res, err := Run(context.Background(), RunOptions{
		Params:     rules.DefaultMinimal(),
		Data:       data,
		Vacancies:  1,
		Times:      20,
		MasterSeed: 1,
		NumWorkers: 4,
	})
	require.NoError(err)
	require.Equal(20, res.NumRuns)
	winners := res.PossibleWinners()
	require.Len(winners, 1)
	require.Equal(ballot.Candidate(0), winners[0].Candidate)
	require.Equal(20, winners[0].TimesElected)
}

// TestRunSplitsWorkAcrossWorkers checks that the per-worker split sums to
// the requested total regardless of whether it divides evenly.
func TestRunSplitsWorkAcrossWorkers(t *testing.T) {
	require := require.New(t)

	data := twoCandidateTiedData()
	res, err := Run(context.Background(), RunOptions{
		Params:     rules.DefaultMinimal(),
		Data:       data,
		Vacancies:  1,
		Times:      7,
		MasterSeed: 42,
		NumWorkers: 3,
	})
	require.NoError(err)
	require.Equal(7, res.NumRuns)

	total := 0
	for _, c := range res.Candidates {
		total += c.TimesElected
	}
	require.Equal(7, total)
}

func TestRunZeroTimesReturnsEmptyResult(t *testing.T) {
	require := require.New(t)

	res, err := Run(context.Background(), RunOptions{
		Params:    rules.DefaultMinimal(),
		Data:      twoCandidateTiedData(),
		Vacancies: 1,
		Times:     0,
	})
	require.NoError(err)
	require.Equal(0, res.NumRuns)
}

func TestIsCloseToExpectedProbWinningExactMatchRequiredAtCertainty(t *testing.T) {
	require := require.New(t)

	res := NewPossibleResults(2)
	res.NumRuns = 10
	res.Candidates[0].TimesElected = 10
	require.True(res.IsCloseToExpectedProbWinning(0, 1.0))
	res.Candidates[0].TimesElected = 9
	require.False(res.IsCloseToExpectedProbWinning(0, 1.0))
}
