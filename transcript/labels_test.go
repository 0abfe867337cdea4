package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/rules"
)

func labelFixture() *Transcript {
	return &Transcript{Counts: []SingleCount{
		{Reason: Reason{Kind: ReasonFirstPreferences}, ReasonCompleted: true},
		{Reason: Reason{Kind: ReasonExcessDistribution, Candidate: 2}, ReasonCompleted: false},
		{Reason: Reason{Kind: ReasonExcessDistribution, Candidate: 2}, ReasonCompleted: true},
		{Reason: Reason{Kind: ReasonElimination, Candidates: []ballot.Candidate{4, 5}}, ReasonCompleted: true},
	}}
}

func TestLabelsSimpleInteger(t *testing.T) {
	require := require.New(t)

	p := rules.DefaultFederal()
	require.Equal(rules.CountNamingSimpleInteger, p.CountNaming)
	require.Equal([]string{"1", "2", "3", "4"}, labelFixture().Labels(p))
}

func TestLabelsMajorMinorGroupsAMultiCountReason(t *testing.T) {
	require := require.New(t)

	p := rules.DefaultACT()
	require.Equal(rules.CountNamingMajorMinor, p.CountNaming)
	require.Equal([]string{"1.1", "2.1", "2.2", "3.1"}, labelFixture().Labels(p))
}

func TestLabelsDerivedFromAction(t *testing.T) {
	require := require.New(t)

	p := rules.DefaultNSWLC()
	require.Equal(rules.CountNamingDerivedFromAction, p.CountNaming)
	require.Equal([]string{
		"First preferences",
		"Surplus of #2",
		"Surplus of #2 (part 2)",
		"Exclusion of #4, #5",
	}, labelFixture().Labels(p))
}

func TestLabelsElectionForcesNewMajorCount(t *testing.T) {
	require := require.New(t)

	tr := &Transcript{Counts: []SingleCount{
		{Reason: Reason{Kind: ReasonElimination, Candidates: []ballot.Candidate{3}}, ReasonCompleted: false,
			Elected: []CandidateElected{{Who: 0, Why: ReachedQuota}}},
		{Reason: Reason{Kind: ReasonElimination, Candidates: []ballot.Candidate{3}}, ReasonCompleted: true},
	}}

	p := rules.DefaultACT()
	require.Equal([]string{"1.1", "1.2"}, tr.Labels(p))

	p.ElectionForcesNewMajorCount = true
	require.Equal([]string{"1.1", "2.1"}, tr.Labels(p))
}
