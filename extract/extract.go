// Package extract pulls a subset of a count's ballots back out as a fresh
// ballot.Data, for use cases that need the original papers rather than just
// the transcript: a casual-vacancy recount under Schedule 4 Part 4.3 of the
// Electoral Act 1992 (ACT), which re-counts only the votes that elected the
// departing member, or a "find my vote" search for a specific preference
// sequence among the formal ballots.
//
// Grounded on stv/src/extract_votes_in_pile.rs's WhatToExtract /
// WhatToDoWithExtractedVotes / ExtractionRequest shapes, adapted from a
// Rust enum-plus-trait-object split into a Go interface (Sink) so callers
// can plug in their own destination without a boxed closure.
package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/pile"
)

// WhatToExtract selects which votes a Request pulls out of a completed
// count.
type WhatToExtract int

const (
	// VotesUsedToElectCandidate selects the ballots held in a candidate's
	// piles at the instant they reached quota, before any surplus was
	// redistributed away from them — the ACT Schedule 4.3 casual-vacancy
	// definition of "the votes by which [the member] was elected".
	VotesUsedToElectCandidate WhatToExtract = iota
)

// Source is anything a Request can pull ballots from. *engine.Engine
// satisfies this once Run has completed.
type Source interface {
	Data() *ballot.Data
	BallotsThatElected(c ballot.Candidate) []pile.Ballot
}

// Sink receives extracted election data. FileSink and FuncSink are the two
// provided implementations, mirroring the teacher's SaveToFile/CallFunction
// split.
type Sink interface {
	Receive(data *ballot.Data) error
}

// FileSink writes the extracted election data as indented JSON to Path.
type FileSink struct {
	Path string
}

func (s FileSink) Receive(data *ballot.Data) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("extract: creating %s: %w", s.Path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// FuncSink calls Fn with the extracted data instead of writing it anywhere,
// e.g. to feed it directly into a second, in-process count.
type FuncSink struct {
	Fn func(*ballot.Data) error
}

func (s FuncSink) Receive(data *ballot.Data) error { return s.Fn(data) }

// Request describes one extraction: which votes, which candidate (when
// What needs one), and where the result should go.
type Request struct {
	What      WhatToExtract
	Candidate ballot.Candidate
	Sink      Sink
}

// Run performs the extraction against a completed count. A sink that
// refuses the payload is reported as errkind.ErrExtractionFailed.
func (r Request) Run(src Source) error {
	switch r.What {
	case VotesUsedToElectCandidate:
		if err := r.votesUsedToElect(src); err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrExtractionFailed, err)
		}
		return nil
	default:
		return fmt.Errorf("extract: unknown WhatToExtract %d", r.What)
	}
}

func (r Request) votesUsedToElect(src Source) error {
	ballots := src.BallotsThatElected(r.Candidate)
	data := src.Data()
	extracted := &ballot.Data{Metadata: data.Metadata}
	for _, b := range ballots {
		if b.Source.IsATL {
			extracted.ATL = append(extracted.ATL, ballot.ATL{
				Parties: append([]ballot.Party(nil), b.Source.ATL.Parties...),
				N:       b.N,
			})
		} else {
			extracted.BTL = append(extracted.BTL, ballot.BTL{
				Candidates: append([]ballot.Candidate(nil), b.Preferences...),
				N:          b.N,
			})
		}
	}
	return r.Sink.Receive(extracted)
}
