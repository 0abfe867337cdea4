package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/pile"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
	"github.com/rawblock/stv/transcript"
)

func metadataFor(names ...string) ballot.Metadata {
	infos := make([]ballot.CandidateInfo, len(names))
	for i, n := range names {
		infos[i] = ballot.CandidateInfo{Name: n}
	}
	return ballot.Metadata{
		Name:       ballot.ElectionName{Year: "2026", Name: "Test", Electorate: "Testville"},
		Candidates: infos,
	}
}

func mustRun(t *testing.T, params rules.Parameterization, data *ballot.Data, vacancies int, ec *tieresolve.ECDecisions) *transcript.Transcript {
	t.Helper()
	e, err := New(params, data, vacancies, ec, randsrc.ReverseDonkey{}, nil, nil)
	require.NoError(t, err)
	tr, err := e.Run()
	require.NoError(t, err)
	return tr
}

// TestOverwhelmingVotesClauseElectsTopThree: six candidates, three
// vacancies, quota 10001. Nobody reaches quota on first preferences; the
// exclusion of the lowest candidate pushes one leader over quota, and the
// NSW local-government overwhelming-votes clause elects the other two
// leaders outright. The whole count takes exactly two counts.
func TestOverwhelmingVotesClauseElectsTopThree(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: metadataFor("A", "B", "C", "D", "E", "F"),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 10000},
			{Candidates: []ballot.Candidate{1}, N: 10000},
			{Candidates: []ballot.Candidate{2}, N: 10000},
			{Candidates: []ballot.Candidate{3}, N: 9000},
			{Candidates: []ballot.Candidate{4}, N: 900},
			{Candidates: []ballot.Candidate{5, 0}, N: 100},
		},
	}

	tr := mustRun(t, rules.DefaultNSWLGE(), data, 3, nil)
	require.Equal("10001", tr.Quota.Quota.String())
	require.Len(tr.Counts, 2)
	require.Len(tr.Elected, 3)
	require.Contains(tr.Elected, ballot.Candidate(0))
	require.Contains(tr.Elected, ballot.Candidate(1))
	require.Contains(tr.Elected, ballot.Candidate(2))

	last := tr.Counts[1]
	require.True(last.Reason.IsElimination())
	require.Equal([]ballot.Candidate{5}, last.Reason.Candidates)
}

// TestSurplusTransferWithExhaustionTracksRoundingLoss: a candidate
// elected at first preferences whose surplus partially exhausts. Under a
// decimal tally with floor rounding, the truncated-away fractions land in
// the rounding column, the elected candidate is held at exactly quota,
// and no uninvolved tally moves.
func TestSurplusTransferWithExhaustionTracksRoundingLoss(t *testing.T) {
	require := require.New(t)

	params := rules.DefaultACT()
	params.Rounding = arithmetic.RoundFloor

	data := &ballot.Data{
		Metadata: metadataFor("A", "B", "C"),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1}, N: 35},
			{Candidates: []ballot.Candidate{0}, N: 25},
			{Candidates: []ballot.Candidate{1}, N: 25},
			{Candidates: []ballot.Candidate{2}, N: 15},
		},
	}

	// Quota 34; A polls 60 and is elected with a surplus of 26 at a
	// transfer value of 26/60. The 35 onward-preferenced papers yield
	// floor(35*26/60) = 15 to B (losing 1/6), the 25 exhausting papers
	// yield floor(25*26/60) = 10 (losing 5/6).
	tr := mustRun(t, params, data, 2, nil)

	final := tr.Counts[len(tr.Counts)-1].Status
	require.Equal("34", final.Tallies.Candidate[0].String(), "elected candidate reduced to exactly quota")
	require.Equal("40", final.Tallies.Candidate[1].String())
	require.Equal("15", final.Tallies.Candidate[2].String(), "uninvolved candidate untouched")
	require.Equal("10", final.Tallies.Exhausted.String())
	require.Equal("0.999999", final.Tallies.Rounding.String())
	require.Equal([]ballot.Candidate{0, 1}, tr.Elected)
}

// TestTieAtLastTwoSurfacesUnresolvedThenHonorsECDecision: two candidates
// with identical tallies at every count and no recorded decision. Strict
// resolution reports ErrTieUnresolved naming both; supplying an EC
// decision completes the count in the decided direction.
func TestTieAtLastTwoSurfacesUnresolvedThenHonorsECDecision(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: metadataFor("A", "B", "C"),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 40},
			{Candidates: []ballot.Candidate{1}, N: 30},
			{Candidates: []ballot.Candidate{2, 1}, N: 30},
		},
	}

	e, err := New(rules.DefaultMinimal(), data, 1, nil, randsrc.ReverseDonkey{}, nil, nil)
	require.NoError(err)
	e.UseStrictTieResolution()
	_, err = e.Run()
	require.ErrorIs(err, errkind.ErrTieUnresolved)
	require.Contains(err.Error(), "#1")
	require.Contains(err.Error(), "#2")

	// Re-invoked with the commission preferring B: C is put lowest,
	// excluded, and its papers elect B.
	ec, err := tieresolve.NewECDecisions([]tieresolve.ECDecision{{2, 1}})
	require.NoError(err)
	e2, err := New(rules.DefaultMinimal(), data, 1, ec, randsrc.ReverseDonkey{}, nil, nil)
	require.NoError(err)
	e2.UseStrictTieResolution()
	tr, err := e2.Run()
	require.NoError(err)
	require.Equal([]ballot.Candidate{1}, tr.Elected)

	sawDecision := false
	for _, c := range tr.Counts {
		for _, d := range c.Decisions {
			sawDecision = true
			require.Contains(d.Affected, ballot.Candidate(1))
			require.Contains(d.Affected, ballot.Candidate(2))
		}
	}
	require.True(sawDecision, "consuming a recorded EC decision must be noted on the transcript")
}

// TestMetadataTieResolutionsAreHonored: the same tie, decided through the
// data file's recorded resolutions instead of an explicit list.
func TestMetadataTieResolutionsAreHonored(t *testing.T) {
	require := require.New(t)

	md := metadataFor("A", "B", "C")
	md.TieResolutions = [][]ballot.Candidate{{2, 1}}
	data := &ballot.Data{
		Metadata: md,
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 40},
			{Candidates: []ballot.Candidate{1}, N: 30},
			{Candidates: []ballot.Candidate{2, 1}, N: 30},
		},
	}

	tr := mustRun(t, rules.DefaultMinimal(), data, 1, nil)
	require.Equal([]ballot.Candidate{1}, tr.Elected)
}

func rule13AData() *ballot.Data {
	return &ballot.Data{
		Metadata: metadataFor("A", "B", "C", "D", "E", "F"),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 40},
			{Candidates: []ballot.Candidate{1}, N: 22},
			{Candidates: []ballot.Candidate{2, 1}, N: 21},
			{Candidates: []ballot.Candidate{3, 1}, N: 4},
			{Candidates: []ballot.Candidate{4, 1}, N: 2},
			{Candidates: []ballot.Candidate{5, 1}, N: 1},
		},
	}
}

// TestRule13AMassExclusion: the bottom three candidates' cumulative tally
// (7) stays below the fourth-lowest (21), so with rule 13A enabled all
// three leave in one exclusion; with it disabled they take one count
// each. The winner is the same either way.
func TestRule13AMassExclusion(t *testing.T) {
	require := require.New(t)

	on := mustRun(t, rules.DefaultFederal(), rule13AData(), 1, nil)

	var exclusions [][]ballot.Candidate
	for _, c := range on.Counts {
		if c.Reason.IsElimination() && c.ReasonCompleted {
			exclusions = append(exclusions, c.Reason.Candidates)
		}
	}
	require.Len(exclusions, 2)
	require.ElementsMatch([]ballot.Candidate{3, 4, 5}, exclusions[0], "one count names the whole 13A pack")
	require.Equal([]ballot.Candidate{2}, exclusions[1])

	off := rules.DefaultFederal()
	off.AllowRule13AMultiExclusion = false
	separate := mustRun(t, off, rule13AData(), 1, nil)

	exclusions = nil
	for _, c := range separate.Counts {
		if c.Reason.IsElimination() && c.ReasonCompleted {
			exclusions = append(exclusions, c.Reason.Candidates)
		}
	}
	require.Len(exclusions, 4, "without 13A each bottom candidate is excluded on its own count")

	require.Equal(on.Elected, separate.Elected)
}

// TestLastParcelVersusWholePileSurplus: two rule sets differing only in
// LastParcelPolicy derive different transfer values from different ballot
// pools, and the transcripts disagree count by count.
func TestLastParcelVersusWholePileSurplus(t *testing.T) {
	require := require.New(t)

	makeData := func() *ballot.Data {
		return &ballot.Data{
			Metadata: metadataFor("A", "B", "C", "D"),
			BTL: []ballot.BTL{
				{Candidates: []ballot.Candidate{0, 2}, N: 18},
				{Candidates: []ballot.Candidate{1, 0, 2}, N: 6},
				{Candidates: []ballot.Candidate{2}, N: 17},
				{Candidates: []ballot.Candidate{3}, N: 14},
			},
		}
	}

	base := rules.DefaultMinimal()
	base.Subdivision = pile.SubdivisionEveryCount

	lastParcel := base
	lastParcel.LastParcel = rules.LastParcelOnly
	wholePile := base
	wholePile.LastParcel = rules.AllParcels

	trLast := mustRun(t, lastParcel, makeData(), 2, nil)
	trWhole := mustRun(t, wholePile, makeData(), 2, nil)

	findCreation := func(tr *transcript.Transcript) *transcript.TransferValueCreation {
		for _, c := range tr.Counts {
			if c.CreatedTransferValue != nil {
				return c.CreatedTransferValue
			}
		}
		return nil
	}
	last, whole := findCreation(trLast), findCreation(trWhole)
	require.NotNil(last)
	require.NotNil(whole)
	require.Equal(6, last.BallotsConsidered, "only the parcel that arrived with the exclusion is considered")
	require.Equal(24, whole.BallotsConsidered, "the whole pile is considered")
	require.Equal("5/6", last.TransferValue.String())
	require.Equal("5/24", whole.TransferValue.String())

	require.Equal(trLast.Elected, trWhole.Elected)
	cmp := transcript.Compare(trLast, trWhole)
	require.Equal(transcript.DifferenceDifferentValues, cmp.Difference)
}

// TestRandomSampleSurplusSetsPapersAside: under the NSW mechanism the
// surplus moves as whole papers at full value and the undrawn papers land
// in the set-aside bucket, with papers conserved across every bucket.
func TestRandomSampleSurplusSetsPapersAside(t *testing.T) {
	require := require.New(t)

	data := &ballot.Data{
		Metadata: metadataFor("A", "B", "C"),
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1}, N: 30},
			{Candidates: []ballot.Candidate{1}, N: 10},
			{Candidates: []ballot.Candidate{2}, N: 15},
		},
	}

	// Quota 19; A polls 30, surplus 11. A reverse-donkey source draws the
	// first 11 papers, all flowing to B (10+11 = 21 >= quota).
	tr := mustRun(t, rules.DefaultNSWLC(), data, 2, nil)
	require.Equal([]ballot.Candidate{0, 1}, tr.Elected)

	var surplusCount *transcript.SingleCount
	for i := range tr.Counts {
		if tr.Counts[i].Reason.Kind == transcript.ReasonExcessDistribution {
			surplusCount = &tr.Counts[i]
		}
	}
	require.NotNil(surplusCount)
	require.Equal("1", surplusCount.Portion.TransferValue.String(), "sampled papers transfer at full value")
	require.Equal(transcript.SourceRandomSample, surplusCount.CreatedTransferValue.Source)

	final := tr.Counts[len(tr.Counts)-1].Status
	require.NotNil(final.Papers.SetAside)
	require.Equal(19, *final.Papers.SetAside)
	require.Equal("19", final.Tallies.Candidate[0].String())
	require.Equal("21", final.Tallies.Candidate[1].String())

	papers := final.Papers.Exhausted + *final.Papers.SetAside
	for _, n := range final.Papers.Candidate {
		papers += n
	}
	require.Equal(55, papers, "papers conserved across candidates, exhausted and set-aside")
}

// TestConservationAcrossCounts: for an integer-tally rule set whose
// transfers all occur at full value, candidate tallies plus exhausted
// votes sum to the formal total at the end of every count.
func TestConservationAcrossCounts(t *testing.T) {
	require := require.New(t)

	tr := mustRun(t, rules.DefaultFederal(), rule13AData(), 1, nil)
	for i, c := range tr.Counts {
		sum := arithmetic.Sum(c.Status.Tallies.Candidate).Add(c.Status.Tallies.Exhausted)
		require.Equal(0, sum.Cmp(arithmetic.NewInt(90)), "count %d does not conserve votes", i)
	}
}

// TestDeterministicReplay: identical data, rules and seed produce
// count-for-count identical transcripts, including through the NSW
// random-sample surplus path.
func TestDeterministicReplay(t *testing.T) {
	require := require.New(t)

	makeData := func() *ballot.Data {
		return &ballot.Data{
			Metadata: metadataFor("A", "B", "C"),
			BTL: []ballot.BTL{
				{Candidates: []ballot.Candidate{0, 1}, N: 30},
				{Candidates: []ballot.Candidate{1, 2}, N: 10},
				{Candidates: []ballot.Candidate{2, 1}, N: 15},
			},
		}
	}

	run := func() *transcript.Transcript {
		e, err := New(rules.DefaultNSWLC(), makeData(), 2, nil, randsrc.NewSeeded(7), nil, nil)
		require.NoError(err)
		tr, err := e.Run()
		require.NoError(err)
		return tr
	}

	cmp := transcript.Compare(run(), run())
	require.Equal(transcript.DifferenceSame, cmp.Difference)
}

// TestRuleDispatchDependsOnlyOnParameters: two rule sets identical except
// for their display name behave identically.
func TestRuleDispatchDependsOnlyOnParameters(t *testing.T) {
	require := require.New(t)

	renamed := rules.DefaultFederal()
	renamed.Name = "Federal-By-Any-Other-Name"

	t1 := mustRun(t, rules.DefaultFederal(), rule13AData(), 1, nil)
	t2 := mustRun(t, renamed, rule13AData(), 1, nil)
	require.Equal(transcript.DifferenceSame, transcript.Compare(t1, t2).Difference)
}

// TestExcludedAtOutsetNeverReceivesVotes: a candidate excluded before the
// first count (e.g. deceased) is skipped by every ballot that preferences
// them.
func TestExcludedAtOutsetNeverReceivesVotes(t *testing.T) {
	require := require.New(t)

	md := metadataFor("A", "B", "C")
	md.Excluded = []ballot.Candidate{0}
	data := &ballot.Data{
		Metadata: md,
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0, 1}, N: 60},
			{Candidates: []ballot.Candidate{1}, N: 10},
			{Candidates: []ballot.Candidate{2}, N: 30},
		},
	}

	tr := mustRun(t, rules.DefaultMinimal(), data, 1, nil)
	require.Equal([]ballot.Candidate{1}, tr.Elected)
	for _, c := range tr.Counts {
		require.True(c.Status.Tallies.Candidate[0].IsZero())
	}
}

// TestVacanciesReadFromMetadata: passing zero vacancies defers to the
// count recorded in the data file.
func TestVacanciesReadFromMetadata(t *testing.T) {
	require := require.New(t)

	md := metadataFor("A", "B", "C")
	one := 1
	md.Vacancies = &one
	data := &ballot.Data{
		Metadata: md,
		BTL: []ballot.BTL{
			{Candidates: []ballot.Candidate{0}, N: 60},
			{Candidates: []ballot.Candidate{1}, N: 30},
			{Candidates: []ballot.Candidate{2}, N: 10},
		},
	}

	e, err := New(rules.DefaultMinimal(), data, 0, nil, randsrc.ReverseDonkey{}, nil, nil)
	require.NoError(err)
	tr, err := e.Run()
	require.NoError(err)
	require.Equal(1, tr.Quota.Vacancies)
	require.Equal([]ballot.Candidate{0}, tr.Elected)
}
