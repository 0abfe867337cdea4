package extract

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/engine"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/extract/extractmock"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/pile"
	"github.com/rawblock/stv/rules"
)

type fakeSource struct {
	data      *ballot.Data
	electedBy map[ballot.Candidate][]pile.Ballot
}

func (f *fakeSource) Data() *ballot.Data { return f.data }
func (f *fakeSource) BallotsThatElected(c ballot.Candidate) []pile.Ballot {
	return f.electedBy[c]
}

func TestVotesUsedToElectCandidateWritesOnlyThatCandidatesBallots(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: ballot.Metadata{
			Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
			Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}},
		},
	}
	src := &fakeSource{
		data: data,
		electedBy: map[ballot.Candidate][]pile.Ballot{
			0: {
				{N: 40, Preferences: []ballot.Candidate{0, 1}, Source: ballot.VoteSource{IsATL: false, BTL: &ballot.BTL{Candidates: []ballot.Candidate{0, 1}, N: 40}}},
			},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "extracted.json")
	req := Request{What: VotesUsedToElectCandidate, Candidate: 0, Sink: FileSink{Path: path}}
	require.NoError(req.Run(src))

	raw, err := os.ReadFile(path)
	require.NoError(err)
	var got ballot.Data
	require.NoError(json.Unmarshal(raw, &got))
	require.Len(got.BTL, 1)
	require.Equal(40, got.BTL[0].N)
	require.Equal([]ballot.Candidate{0, 1}, got.BTL[0].Candidates)
}

func TestVotesUsedToElectCandidateUsesFuncSink(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{Metadata: ballot.Metadata{Candidates: []ballot.CandidateInfo{{Name: "Alice"}}}}
	src := &fakeSource{data: data, electedBy: map[ballot.Candidate][]pile.Ballot{}}

	var received *ballot.Data
	req := Request{
		What:      VotesUsedToElectCandidate,
		Candidate: 0,
		Sink:      FuncSink{Fn: func(d *ballot.Data) error { received = d; return nil }},
	}
	require.NoError(req.Run(src))
	require.NotNil(received)
	require.Empty(received.BTL)
}

// TestExtractFromCompletedEngineRun drives the ACT casual-vacancy path
// end to end: a completed engine run is the Source, and the ballots that
// elected the departing member come back out as standalone election data.
func TestExtractFromCompletedEngineRun(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: ballot.Metadata{
			Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
			Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}},
		},
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1}, N: 60},
			{Candidates: []ballot.Candidate{1}, N: 25},
			{Candidates: []ballot.Candidate{2}, N: 15},
		},
	}
	e, err := engine.New(rules.DefaultMinimal(), data, 1, nil, randsrc.ReverseDonkey{}, nil, nil)
	require.NoError(err)
	tr, err := e.Run()
	require.NoError(err)
	require.Equal([]ballot.Candidate{0}, tr.Elected)

	var got *ballot.Data
	req := Request{
		What:      VotesUsedToElectCandidate,
		Candidate: 0,
		Sink:      FuncSink{Fn: func(d *ballot.Data) error { got = d; return nil }},
	}
	require.NoError(req.Run(e))
	require.NotNil(got)
	require.Equal(60, got.NumVotes(), "exactly the papers Alice held at the moment of election")
	require.Len(got.BTL, 1)
	require.Equal([]ballot.Candidate{0, 1}, got.BTL[0].Candidates)
}

func TestRunWrapsSinkRefusalAsExtractionFailed(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	src := extractmock.NewMockSource(ctrl)
	src.EXPECT().BallotsThatElected(ballot.Candidate(0)).Return(nil)
	src.EXPECT().Data().Return(&ballot.Data{})

	sink := extractmock.NewMockSink(ctrl)
	sink.EXPECT().Receive(gomock.Any()).Return(errors.New("disk full"))

	req := Request{What: VotesUsedToElectCandidate, Candidate: 0, Sink: sink}
	err := req.Run(src)
	require.ErrorIs(err, errkind.ErrExtractionFailed)
}

func TestRunDeliversExtractedDataToSink(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	data := &ballot.Data{Metadata: ballot.Metadata{Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}}}}
	src := extractmock.NewMockSource(ctrl)
	src.EXPECT().BallotsThatElected(ballot.Candidate(1)).Return([]pile.Ballot{
		{N: 7, Preferences: []ballot.Candidate{1, 0}, Source: ballot.VoteSource{BTL: &ballot.BTL{Candidates: []ballot.Candidate{1, 0}, N: 7}}},
	})
	src.EXPECT().Data().Return(data)

	sink := extractmock.NewMockSink(ctrl)
	sink.EXPECT().Receive(gomock.Any()).DoAndReturn(func(d *ballot.Data) error {
		require.Len(d.BTL, 1)
		require.Equal(7, d.BTL[0].N)
		return nil
	})

	req := Request{What: VotesUsedToElectCandidate, Candidate: 1, Sink: sink}
	require.NoError(req.Run(src))
}

func TestParseMarkingsTreatsEmptyFieldAsBlank(t *testing.T) {
	require := require.New(t)

	m := ParseMarkings("1,,3")
	require.Len(m, 3)
	require.False(m[0].Blank)
	require.Equal(ballot.Candidate(1), m[0].Candidate)
	require.True(m[1].Blank)
	require.Equal(ballot.Candidate(3), m[2].Candidate)
}

func TestComputeFindMyVoteRanksExactMatchHighest(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1, 2}, N: 1},
			{Candidates: []ballot.Candidate{0, 2, 1}, N: 1},
			{Candidates: []ballot.Candidate{1, 0, 2}, N: 1},
		},
	}
	query := FindMyVoteQuery{Preferences: []Marking{{Candidate: 0}, {Candidate: 1}, {Candidate: 2}}}

	res := ComputeFindMyVote(data, query, nil)
	require.NotEmpty(res.Best)
	require.Equal(3, res.Best[0].Score)
	require.Len(res.Best[0].Hits, 1)
	require.Equal([]ballot.Candidate{0, 1, 2}, res.Best[0].Hits[0].Votes)
}

func TestComputeFindMyVoteBlankMatchesAnything(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1}, N: 1},
			{Candidates: []ballot.Candidate{0, 2}, N: 1},
		},
	}
	query := FindMyVoteQuery{
		Preferences:          []Marking{{Candidate: 0}, {Blank: true}},
		BlankMatchesAnything: true,
	}

	res := ComputeFindMyVote(data, query, nil)
	require.Len(res.Best, 1)
	require.Equal(2, res.Best[0].Score)
	require.Len(res.Best[0].Hits, 2)
}

func TestFindWhereToInsertCapsDistinctScoresAndHitsPerScore(t *testing.T) {
	require := require.New(t)

	var res FindMyVoteResult
	for s := 10 - maxScoresWanted - 1; s <= 10; s++ {
		i := res.findWhereToInsert(s)
		require.GreaterOrEqual(i, 0)
		res.Best[i].Hits = append(res.Best[i].Hits, FindVoteHit{})
	}
	require.Len(res.Best, maxScoresWanted)

	worstKept := res.Best[len(res.Best)-1].Score
	require.Equal(-1, res.findWhereToInsert(worstKept-1))

	for i := 1; i < maxHitsPerScoreWanted; i++ {
		res.Best[0].Hits = append(res.Best[0].Hits, FindVoteHit{})
	}
	idx := res.findWhereToInsert(res.Best[0].Score)
	require.Equal(-1, idx)
	require.Equal(1, res.Best[0].Truncated)
}
