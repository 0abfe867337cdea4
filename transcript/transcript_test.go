package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
)

func sampleCount(tallies ...int) SingleCount {
	cs := make([]arithmetic.Tally, len(tallies))
	for i, n := range tallies {
		cs[i] = arithmetic.NewInt(n)
	}
	return SingleCount{
		Status: EndCountStatus{
			Tallies: PerCandidateTally{
				Candidate: cs,
				Exhausted: arithmetic.NewInt(0),
				Rounding:  arithmetic.NewInt(0),
			},
			Papers: PerCandidatePapers{Candidate: tallies},
		},
	}
}

func TestCompareSameTranscript(t *testing.T) {
	require := require.New(t)

	t1 := &Transcript{
		Elected: []ballot.Candidate{0, 1},
		Counts:  []SingleCount{sampleCount(10, 20), sampleCount(15, 25)},
	}
	t2 := &Transcript{
		Elected: []ballot.Candidate{0, 1},
		Counts:  []SingleCount{sampleCount(10, 20), sampleCount(15, 25)},
	}

	result := Compare(t1, t2)
	require.Equal(DifferenceSame, result.Difference)
}

func TestCompareDifferentCandidatesElected(t *testing.T) {
	require := require.New(t)

	t1 := &Transcript{Elected: []ballot.Candidate{0, 1}}
	t2 := &Transcript{Elected: []ballot.Candidate{0, 2}}

	result := Compare(t1, t2)
	require.Equal(DifferenceDifferentCandidatesElected, result.Difference)
}

func TestCompareCandidatesOrderedDifferently(t *testing.T) {
	require := require.New(t)

	t1 := &Transcript{Elected: []ballot.Candidate{0, 1}}
	t2 := &Transcript{Elected: []ballot.Candidate{1, 0}}

	result := Compare(t1, t2)
	require.Equal(DifferenceCandidatesOrderedDifferently, result.Difference)
}

func TestCompareDifferentValuesAtCount(t *testing.T) {
	require := require.New(t)

	t1 := &Transcript{
		Elected: []ballot.Candidate{0},
		Counts:  []SingleCount{sampleCount(10), sampleCount(20)},
	}
	t2 := &Transcript{
		Elected: []ballot.Candidate{0},
		Counts:  []SingleCount{sampleCount(10), sampleCount(21)},
	}

	result := Compare(t1, t2)
	require.Equal(DifferenceDifferentValues, result.Difference)
	require.Equal(CountIndex(1), result.AtCount)
}

func TestCompareDifferentNumberOfCounts(t *testing.T) {
	require := require.New(t)

	t1 := &Transcript{
		Elected: []ballot.Candidate{0},
		Counts:  []SingleCount{sampleCount(10)},
	}
	t2 := &Transcript{
		Elected: []ballot.Candidate{0},
		Counts:  []SingleCount{sampleCount(10), sampleCount(20)},
	}

	result := Compare(t1, t2)
	require.Equal(DifferenceDifferentNumberOfCounts, result.Difference)
}

func TestTranscriptImplementsHistory(t *testing.T) {
	require := require.New(t)

	tr := &Transcript{Counts: []SingleCount{sampleCount(5, 7), sampleCount(6, 9)}}
	require.Equal(2, tr.NumCounts())
	require.Equal(0, tr.TallyAtCount(0, 0).Cmp(arithmetic.NewInt(5)))
	require.Equal(0, tr.TallyAtCount(1, 1).Cmp(arithmetic.NewInt(9)))
}

func TestReasonIsElimination(t *testing.T) {
	require := require.New(t)

	require.True(Reason{Kind: ReasonElimination, Candidates: []ballot.Candidate{1}}.IsElimination())
	require.False(Reason{Kind: ReasonFirstPreferences}.IsElimination())
}
