package margin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/transcript"
)

func twoCandidateMetadata() ballot.Metadata {
	return ballot.Metadata{
		Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
		Candidates: []ballot.CandidateInfo{{Name: "Alice"}, {Name: "Bob"}},
	}
}

// twoCandidateData is a 100-paper, single-preference, 2-candidate, 1-vacancy
// election where Alice (candidate 0) wins outright on first preferences
// (53 >= the quota of 51) and Bob (candidate 1) does not.
func twoCandidateData() *ballot.Data {
	return &ballot.Data{
		Metadata: twoCandidateMetadata(),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 53},
			{Candidates: []ballot.Candidate{1}, N: 47},
		},
	}
}

func TestVoteChangesBasics(t *testing.T) {
	require := require.New(t)

	var vc VoteChanges
	vc.Transfer(10, 0, 1)
	vc.Add(5, 2)
	vc.Remove(3, 0)
	require.Equal(18, vc.TotalVotes())
	require.Len(vc.Changes, 3)
	require.Equal(ballot.Candidate(0), *vc.Changes[0].From)
	require.Equal(ballot.Candidate(1), *vc.Changes[0].To)
	require.Nil(vc.Changes[1].From)
	require.Equal(ballot.Candidate(2), *vc.Changes[1].To)
	require.Equal(ballot.Candidate(0), *vc.Changes[2].From)
	require.Nil(vc.Changes[2].To)

	cp := vc.WithValue(0, 99)
	require.Equal(99, cp.Changes[0].N)
	require.Equal(10, vc.Changes[0].N, "WithValue must not mutate the receiver")

	clone := vc.Clone()
	clone.Changes[0].N = 1
	require.Equal(10, vc.Changes[0].N, "Clone must be independent of the original")
}

func TestBuildRetroscopeTracksFinalHoldings(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, tr, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)
	require.Equal([]ballot.Candidate{0}, tr.Elected)

	aliceHeld := 0
	for _, p := range retro.LastHoldingsOf(0) {
		aliceHeld += p.Papers()
	}
	require.Equal(53, aliceHeld)

	bobHeld := 0
	for _, p := range retro.LastHoldingsOf(1) {
		bobHeld += p.Papers()
	}
	require.Equal(47, bobHeld)
}

func TestMakeConcreteRejectsFirstPreferenceEditsByDefault(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, _, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)

	var vc VoteChanges
	vc.Transfer(10, 0, 1)

	_, ok := MakeConcrete(vc, retro, data, Options{})
	require.False(ok, "every one of Alice's ballots is a bare first preference, so a conservative search must refuse to touch them")
}

func TestMakeConcreteAndApplyTransferFirstPreferences(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, _, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)

	var vc VoteChanges
	vc.Transfer(10, 0, 1)

	changes, ok := MakeConcrete(vc, retro, data, Options{AllowFirstPreferenceEdits: true})
	require.True(ok)
	require.Equal(10, changes.N)
	require.Len(changes.Edits, 1)
	require.Equal(EditChanged, changes.Edits[0].Kind)
	require.True(changes.Edits[0].FirstPreferenceWasFrom)
	require.Equal([]ballot.Candidate{1, 0}, changes.Edits[0].NewPreferences)

	edited := changes.Apply(data)
	require.Equal(100, edited.NumBTL())
	require.Equal(100, edited.NumVotes())

	var sawRemainder, sawNew bool
	for _, b := range edited.BTL {
		switch {
		case len(b.Candidates) == 1 && b.Candidates[0] == 0:
			require.Equal(43, b.N, "53 - 10 papers transferred should remain as plain Alice-only ballots")
			sawRemainder = true
		case len(b.Candidates) == 2 && b.Candidates[0] == 1 && b.Candidates[1] == 0:
			require.Equal(10, b.N)
			sawNew = true
		}
	}
	require.True(sawRemainder)
	require.True(sawNew)

	// The original data must be untouched.
	require.Equal(53, data.BTL[0].N)
}

func TestSimpleTestDetectsOutcomeChange(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, tr, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)
	base := Baseline{Params: rules.DefaultMinimal(), Vacancies: 1, Elected: tr.Elected}

	var vc VoteChanges
	vc.Transfer(10, 0, 1)
	opts := Options{AllowFirstPreferenceEdits: true}

	result := SimpleTest(vc, data, retro, opts, base)
	require.Equal(ChangeOccurred, result.Kind)
	require.NotEqual(transcript.DifferenceSame, result.Deltas.Difference)
	require.Equal([]ballot.Candidate{1}, result.Deltas.List2)
}

func TestSimpleTestNoChangeForASmallTransfer(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, tr, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)
	base := Baseline{Params: rules.DefaultMinimal(), Vacancies: 1, Elected: tr.Elected}

	var vc VoteChanges
	vc.Transfer(1, 0, 1)
	opts := Options{AllowFirstPreferenceEdits: true}

	result := SimpleTest(vc, data, retro, opts, base)
	require.Equal(NoChange, result.Kind, "moving a single paper leaves Alice at 52, still above the 51 quota")
}

func TestOptimiseFindsAChange(t *testing.T) {
	require := require.New(t)

	data := twoCandidateData()
	retro, tr, err := BuildRetroscope(rules.DefaultMinimal(), data, 1, nil)
	require.NoError(err)
	base := Baseline{Params: rules.DefaultMinimal(), Vacancies: 1, Elected: tr.Elected}

	var vc VoteChanges
	vc.Transfer(53, 0, 1)
	opts := Options{AllowFirstPreferenceEdits: true}

	found := Optimise(vc, data, retro, opts, base)
	require.NotNil(found)
	require.Equal([]ballot.Candidate{1}, found.Deltas.List2)
	require.NotEqual(tr.Elected, found.Deltas.List2)
	require.LessOrEqual(found.Ballots.N, 53)
	require.Greater(found.Ballots.N, 0)
}

func TestSearchRespectsFirstPreferenceOption(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	data := twoCandidateData()

	conservative, err := Search(ctx, SearchOptions{
		Params:    rules.DefaultMinimal(),
		Data:      data,
		Vacancies: 1,
		Edit:      Options{AllowFirstPreferenceEdits: false},
		NumWorkers: 2,
	})
	require.NoError(err)
	require.Equal(-1, conservative.SmallestManipulationFound(), "every ballot here is a bare first preference, so no change should be found without AllowFirstPreferenceEdits")

	permissive, err := Search(ctx, SearchOptions{
		Params:    rules.DefaultMinimal(),
		Data:      data,
		Vacancies: 1,
		Edit:      Options{AllowFirstPreferenceEdits: true},
		NumWorkers: 2,
	})
	require.NoError(err)
	smallest := permissive.SmallestManipulationFound()
	require.Greater(smallest, 0)
	// Alice sits 2 papers above the quota of 51, so rewriting 4 ballots in
	// Bob's favor gives him 51 and flips the seat; the binary search must
	// find an edit that small.
	require.LessOrEqual(smallest, 5)
	require.NotEmpty(permissive.Changes)
	for _, c := range permissive.Changes {
		require.True(c.Requires.ChangedFirstPreference)
	}
}

func TestCatalogDominancePruning(t *testing.T) {
	require := require.New(t)

	sameOutcome := transcript.ComparisonResult{
		Difference: transcript.DifferenceDifferentCandidatesElected,
		List1:      []ballot.Candidate{0},
		List2:      []ballot.Candidate{1},
	}
	cheap := Change{
		Outcome:  sameOutcome,
		Requires: ChangeTypes{},
		Ballots:  &BallotChanges{N: 4},
	}
	expensive := Change{
		Outcome:  sameOutcome,
		Requires: ChangeTypes{},
		Ballots:  &BallotChanges{N: 10},
	}

	cat := NewCatalog()
	cat.Add(expensive)
	cat.Add(cheap)
	require.Len(cat.Changes, 1, "the cheaper change of the same kind dominates the costlier one")
	require.Equal(4, cat.SmallestManipulationFound())

	// A change that needs an extra category (an ATL edit) and also costs
	// more is dominated by the cheap one, so it is not added.
	moreDemanding := Change{
		Outcome:  sameOutcome,
		Requires: ChangeTypes{ChangedATL: true},
		Ballots:  &BallotChanges{N: 20},
	}
	cat.Add(moreDemanding)
	require.Len(cat.Changes, 1)
}

func TestDeduceChangeTypes(t *testing.T) {
	require := require.New(t)

	bc := &BallotChanges{
		N: 3,
		Edits: []BallotEdit{
			{Kind: EditAdded, Papers: 1},
			{Kind: EditRemoved, Papers: 1, SourceWasATL: true},
			{Kind: EditChanged, Papers: 1, FirstPreferenceWasFrom: true, Unverifiable: true},
		},
	}
	types := DeduceChangeTypes(bc)
	require.True(types.AddedBallots)
	require.True(types.RemovedBallots)
	require.True(types.ChangedBallots)
	require.True(types.ChangedATL)
	require.True(types.ChangedFirstPreference)
	// The third edit was marked unverifiable, the first two weren't, so at
	// least one physical-ballot edit occurred.
	require.True(types.ChangedPhysicalBallots)
}
