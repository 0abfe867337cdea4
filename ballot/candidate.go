// Package ballot holds the election data model: candidates, parties,
// above-the-line / below-the-line preference records, and the immutable
// ElectionData an engine run is given.
//
// Grounded on stv/src/ballot_metadata.rs and stv/src/election_data.rs from
// the Rust original (_examples/original_source/stv/src/). Candidate and
// Party are plain small-integer indices per spec §3, rather than the
// hash-based ids.ID the teacher uses for network identifiers — there is no
// network here, so there is nothing for a content-addressed ID to buy.
package ballot

import "fmt"

// Candidate is an index into ElectionMetadata.Candidates. Zero is the first
// candidate on the ballot paper.
type Candidate int

func (c Candidate) String() string {
	return fmt.Sprintf("#%d", int(c))
}

// Party is an index into ElectionMetadata.Parties.
type Party int

func (p Party) String() string {
	return fmt.Sprintf("party#%d", int(p))
}

// CandidateInfo is the static information recorded about a candidate.
type CandidateInfo struct {
	Name string
	// Party is the candidate's party, if any.
	Party *Party
	// Position is the candidate's position on the party ticket. 1 means
	// first place.
	Position *int
	// ECID is the electoral commission's internal identifier for this
	// candidate, if known.
	ECID *string
}

// PartyInfo is the static information recorded about a party.
type PartyInfo struct {
	// ColumnID is the name of the column on the ballot paper, typically
	// a letter.
	ColumnID string
	Name     string
	Abbreviation *string
	// ATLAllowed is true if above-the-line voting is permitted for this
	// party. Parties with no submitted group voting ticket, or the
	// pseudo-party "ungrouped", have this false.
	ATLAllowed bool
	// Candidates lists this party's candidates in preference order.
	Candidates []Candidate
	// Tickets holds the group voting ticket(s) for this party, each a
	// full candidate ordering, used by jurisdictions that still allow
	// group voting tickets.
	Tickets [][]Candidate
}

// DataSource documents where an election's raw data files came from.
type DataSource struct {
	URL      string
	Files    []string
	Comments string
}

// ElectionName identifies a specific contest.
type ElectionName struct {
	Year         string
	Authority    string
	Name         string
	Electorate   string
	Modifications []string
	Comment      string
}

func (n ElectionName) HumanReadable() string {
	s := fmt.Sprintf("%s %s election for %s", n.Year, n.Name, n.Electorate)
	for _, m := range n.Modifications {
		s += " & " + m
	}
	return s
}

// Metadata is the static information about an election: its name,
// candidates, parties, provenance, and official results if known.
type Metadata struct {
	Name       ElectionName
	Candidates []CandidateInfo
	Parties    []PartyInfo
	Source     []DataSource
	// Results is the official elected-candidate list, if known, used to
	// compare this engine's output against a commission's.
	Results []Candidate
	// Vacancies is the number of seats being filled, when the data file
	// records it. A caller may override it at engine construction.
	Vacancies *int
	// Enrolment is the number of enrolled voters, when known.
	Enrolment *int
	// SecondaryVacancies is the number of seats for a second, concurrent
	// periodic count (some NSW council elections fill two cohorts from one
	// set of ballots), when the data file records it.
	SecondaryVacancies *int
	// Excluded lists candidates out of the contest before the first count,
	// e.g. a candidate who died between nomination and polling day.
	Excluded []Candidate
	// TieResolutions records tie decisions the commission is known to have
	// made for this contest, each ordered low to high, so a re-count
	// reproduces the official result without re-tossing any coin.
	TieResolutions [][]Candidate
}

func (m *Metadata) CandidateInfo(c Candidate) CandidateInfo { return m.Candidates[c] }
func (m *Metadata) PartyInfo(p Party) PartyInfo             { return m.Parties[p] }

// CandidateByName builds a name -> Candidate lookup table.
func (m *Metadata) CandidateByName() map[string]Candidate {
	out := make(map[string]Candidate, len(m.Candidates))
	for i, c := range m.Candidates {
		out[c.Name] = Candidate(i)
	}
	return out
}

// CandidateByECID builds an EC-id -> Candidate lookup table, skipping
// candidates with no recorded EC id.
func (m *Metadata) CandidateByECID() map[string]Candidate {
	out := make(map[string]Candidate)
	for i, c := range m.Candidates {
		if c.ECID != nil {
			out[*c.ECID] = Candidate(i)
		}
	}
	return out
}

// NumCandidates returns the number of candidates on the ballot.
func (m *Metadata) NumCandidates() int { return len(m.Candidates) }
