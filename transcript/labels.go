package transcript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rawblock/stv/rules"
)

// Labels derives the human-readable name of every count under the rule
// set's naming scheme. The labels are presentation only — count identity
// throughout this package is the zero-based CountIndex — but a transcript
// meant to be read against a commission's published DoP needs to number
// its counts the way the commission does: the AEC counts 1, 2, 3, ...,
// Elections ACT numbers minor counts within a major count ("2.1"), and
// the NSWEC headlines each count with the action it performed.
func (t *Transcript) Labels(p rules.Parameterization) []string {
	labels := make([]string, len(t.Counts))
	major, minor := 0, 0
	for i, c := range t.Counts {
		newMajor := i == 0 || t.Counts[i-1].ReasonCompleted ||
			(p.ElectionForcesNewMajorCount && len(t.Counts[i-1].Elected) > 0)
		if newMajor {
			major++
			minor = 1
		} else {
			minor++
		}
		switch p.CountNaming {
		case rules.CountNamingMajorMinor:
			labels[i] = fmt.Sprintf("%d.%d", major, minor)
		case rules.CountNamingDerivedFromAction:
			labels[i] = describeReason(c.Reason, minor)
		default:
			labels[i] = strconv.Itoa(i + 1)
		}
	}
	return labels
}

func describeReason(r Reason, minor int) string {
	var s string
	switch r.Kind {
	case ReasonFirstPreferences:
		s = "First preferences"
	case ReasonExcessDistribution:
		s = fmt.Sprintf("Surplus of %v", r.Candidate)
	default:
		names := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			names[i] = c.String()
		}
		s = "Exclusion of " + strings.Join(names, ", ")
	}
	if minor > 1 {
		s = fmt.Sprintf("%s (part %d)", s, minor)
	}
	return s
}
