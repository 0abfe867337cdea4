package arithmetic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/ballot"
)

func TestBallotBag(t *testing.T) {
	tests := []struct {
		name           string
		adds           []ballot.Candidate
		expectedCounts map[ballot.Candidate]int
	}{
		{
			name:           "empty",
			adds:           nil,
			expectedCounts: map[ballot.Candidate]int{},
		},
		{
			name: "unique candidates",
			adds: []ballot.Candidate{0, 1, 2},
			expectedCounts: map[ballot.Candidate]int{
				0: 1, 1: 1, 2: 1,
			},
		},
		{
			name: "duplicate candidates",
			adds: []ballot.Candidate{0, 1, 0, 1, 0},
			expectedCounts: map[ballot.Candidate]int{
				0: 3, 1: 2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			b := NewBallotBag()
			for _, c := range tt.adds {
				b.Add(c)
			}

			require.Equal(len(tt.adds), b.Len())
			for cand, count := range tt.expectedCounts {
				require.Equal(count, b.Count(cand))
			}
		})
	}
}

func TestBallotBagMode(t *testing.T) {
	require := require.New(t)
	b := NewBallotBag()
	b.AddCount(1, 5)
	b.AddCount(2, 9)
	b.AddCount(3, 3)

	mode, count := b.Mode()
	require.Equal(ballot.Candidate(2), mode)
	require.Equal(9, count)
}
