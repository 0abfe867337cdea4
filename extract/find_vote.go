package extract

import (
	"strconv"
	"strings"

	"github.com/rawblock/stv/ballot"
)

// Marking is one query position: either a specific candidate, or a blank
// (no preference expressed at that position), mirroring
// stv/src/ballot_paper.rs's RawBallotMarking enum.
type Marking struct {
	Candidate ballot.Candidate
	Blank     bool
}

// ParseMarkings turns a comma-separated preference string into Markings,
// treating an empty field as Blank.
func ParseMarkings(query string) []Marking {
	fields := strings.Split(query, ",")
	out := make([]Marking, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			out = append(out, Marking{Blank: true})
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			out = append(out, Marking{Blank: true})
			continue
		}
		out = append(out, Marking{Candidate: ballot.Candidate(n)})
	}
	return out
}

// FindMyVoteQuery is a voter's own recollection of how they numbered their
// ballot, to be matched against the formal BTL votes.
type FindMyVoteQuery struct {
	Preferences          []Marking
	BlankMatchesAnything bool
}

// FindVoteHit is one formal ballot that matched a query, with whatever
// metadata the caller wants attached (count location, batch id, ...).
type FindVoteHit struct {
	Metadata map[string]string
	Votes    []ballot.Candidate
}

// SearchMatchesWithSameScore groups every hit that tied on Score, truncated
// once a bucket grows past maxHitsPerScoreWanted.
type SearchMatchesWithSameScore struct {
	Score     int
	Hits      []FindVoteHit
	Truncated int
}

// FindMyVoteResult holds the best-scoring buckets found, highest score
// first, capped at maxScoresWanted distinct scores.
type FindMyVoteResult struct {
	Best []SearchMatchesWithSameScore
}

const (
	maxScoresWanted       = 3
	maxHitsPerScoreWanted = 10
)

// findWhereToInsert returns the index into r.Best of the bucket a hit of
// the given score should be appended to, or -1 if the result set has no
// room for it (either
// maxScoresWanted distinct, better-or-equal scores already exist, or this
// score's bucket is already full). Ported from
// stv/src/find_vote.rs's find_where_to_insert.
func (r *FindMyVoteResult) findWhereToInsert(score int) int {
	skip := 0
	for skip < len(r.Best) && r.Best[skip].Score > score {
		skip++
	}
	if skip >= maxScoresWanted {
		return -1
	}
	if skip < len(r.Best) && r.Best[skip].Score == score {
		if len(r.Best[skip].Hits) == maxHitsPerScoreWanted {
			r.Best[skip].Truncated++
			return -1
		}
		return skip
	}
	r.Best = append(r.Best, SearchMatchesWithSameScore{})
	copy(r.Best[skip+1:], r.Best[skip:])
	r.Best[skip] = SearchMatchesWithSameScore{Score: score}
	if len(r.Best) > maxScoresWanted {
		r.Best = r.Best[:maxScoresWanted]
	}
	return skip
}

// ComputeFindMyVote scores every formal BTL vote against query and returns
// the best-matching buckets.
func ComputeFindMyVote(data *ballot.Data, query FindMyVoteQuery, meta func(ballot.BTL) map[string]string) FindMyVoteResult {
	var res FindMyVoteResult
	for _, b := range data.BTL {
		score := scoreAgainst(b.Candidates, query)
		i := res.findWhereToInsert(score)
		if i < 0 {
			continue
		}
		var m map[string]string
		if meta != nil {
			m = meta(b)
		}
		res.Best[i].Hits = append(res.Best[i].Hits, FindVoteHit{
			Metadata: m,
			Votes:    append([]ballot.Candidate(nil), b.Candidates...),
		})
	}
	return res
}

func scoreAgainst(prefs []ballot.Candidate, query FindMyVoteQuery) int {
	n := len(prefs)
	if len(query.Preferences) < n {
		n = len(query.Preferences)
	}
	score := 0
	for i := 0; i < n; i++ {
		m := query.Preferences[i]
		if m.Blank {
			if query.BlankMatchesAnything {
				score++
			}
			continue
		}
		if m.Candidate == prefs[i] {
			score++
		}
	}
	return score
}
