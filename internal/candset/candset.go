// Package candset is a generalization of the teacher's utils/set.Set[T]
// specialized to ballot.Candidate, used for the continuing/elected/excluded
// partition the engine maintains every count (spec §4.3's invariant that
// every candidate is in exactly one of those three sets).
package candset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/rawblock/stv/ballot"
)

const minSetSize = 16

var _ json.Marshaler = (*Set)(nil)

// Set is a set of candidates.
type Set map[ballot.Candidate]struct{}

// Of returns a Set initialized with elts.
func Of(elts ...ballot.Candidate) Set {
	s := New(len(elts))
	s.Add(elts...)
	return s
}

// New returns a new set with initial capacity size.
func New(size int) Set {
	if size < 0 {
		return Set{}
	}
	return make(map[ballot.Candidate]struct{}, size)
}

func (s *Set) resize(size int) {
	if len(*s) == 0 {
		if size < minSetSize {
			size = minSetSize
		}
		*s = make(map[ballot.Candidate]struct{}, size)
	}
}

// Add adds all the elements to this set.
func (s *Set) Add(elts ...ballot.Candidate) {
	s.resize(2 * len(elts))
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
}

// Remove removes elts from the set.
func (s *Set) Remove(elts ...ballot.Candidate) {
	for _, elt := range elts {
		delete(*s, elt)
	}
}

// Contains returns true iff the set contains elt.
func (s Set) Contains(elt ballot.Candidate) bool {
	_, ok := s[elt]
	return ok
}

// Len returns the number of elements in this set.
func (s Set) Len() int { return len(s) }

// List converts this set into a sorted list — candidate indices are
// ordered, unlike the teacher's arbitrary ids.ID, so a deterministic order
// is cheap and worth providing for reproducible transcripts (spec §8's
// "deterministic replay" property).
func (s Set) List() []ballot.Candidate {
	l := maps.Keys(s)
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	return l
}

// Clone returns a copy of this set.
func (s Set) Clone() Set {
	out := New(len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var l []ballot.Candidate
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	*s = New(len(l))
	s.Add(l...)
	return nil
}

func (s Set) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, c := range s.List() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", c)
	}
	sb.WriteString("}")
	return sb.String()
}
