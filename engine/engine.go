// Package engine is the distribution-of-preferences state machine (spec
// §4.3): Start computes first preferences and the quota; Evaluate checks
// for newly-elected candidates and the shortcut clauses; DistributeSurplus
// and Exclude walk ballots to their next continuing preference; Terminate
// is reached once every vacancy is filled. The engine is polymorphic in
// rules.Parameterization — it never branches on a jurisdiction name.
//
// Grounded on spec §4.3 for the state shape, and on the teacher's
// protocol/wave/wave.go for the idiom of a struct carrying all mutable
// state plus small single-purpose methods that each advance it by one
// step, with constructor validation up front.
package engine

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/stv/arithmetic"
	"github.com/rawblock/stv/ballot"
	"github.com/rawblock/stv/errkind"
	"github.com/rawblock/stv/internal/candset"
	"github.com/rawblock/stv/internal/randsrc"
	"github.com/rawblock/stv/internal/stvlog"
	"github.com/rawblock/stv/internal/stvmetrics"
	"github.com/rawblock/stv/pile"
	"github.com/rawblock/stv/rules"
	"github.com/rawblock/stv/tieresolve"
	"github.com/rawblock/stv/transcript"
)

// Engine runs one distribution of preferences to completion.
type Engine struct {
	params    rules.Parameterization
	data      *ballot.Data
	vacancies int

	piles      *pile.Piles
	continuing candset.Set
	elected    candset.Set

	tally  []arithmetic.Tally
	papers []int

	exhaustedTally arithmetic.Tally
	exhaustedPapers int
	roundingTally  arithmetic.Tally
	setAsidePapers int

	electedOrder  []ballot.Candidate
	pendingSurplus []ballot.Candidate
	electedSnapshot map[ballot.Candidate][]pile.Ballot

	// pendingDecisions accumulates DecisionMadeByEC events since the last
	// finishCount call, so they land on the count whose tie they settled.
	pendingDecisions []transcript.DecisionMadeByEC

	quota        arithmetic.Tally
	totalFormal  int
	transcript   *transcript.Transcript

	ec  *tieresolve.ECDecisions
	rnd randsrc.Source

	log     stvlog.Logger
	metrics *stvmetrics.Metrics

	strict bool
	tieErr error

	observer Observer
}

// Observer is notified after every count is finalized. margin's retroscope
// is the only caller that needs this: it snapshots the pile state after
// each count so it can later generate concrete vote-change proposals
// against "what ballots candidate c held at count i" (spec §4.6, §9's
// "index-based arena" note). A nil Observer (the default) costs nothing.
type Observer interface {
	OnCount(count int, piles *pile.Piles)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(count int, piles *pile.Piles)

func (f ObserverFunc) OnCount(count int, piles *pile.Piles) { f(count, piles) }

// SetObserver registers an Observer called after every finalized count.
// Must be called before Run.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// New constructs an Engine ready to Run. It validates params and data up
// front so a caller never has to guard against a malformed configuration
// mid-count. Pass vacancies 0 to use the count recorded in the data's
// metadata; an explicit tie-decision list overrides the metadata's
// recorded resolutions.
func New(params rules.Parameterization, data *ballot.Data, vacancies int, ec *tieresolve.ECDecisions, rnd randsrc.Source, log stvlog.Logger, metrics *stvmetrics.Metrics) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrInputMalformed, err)
	}
	numCandidates := data.Metadata.NumCandidates()
	if vacancies == 0 && data.Metadata.Vacancies != nil {
		vacancies = *data.Metadata.Vacancies
	}
	continuing := candset.New(numCandidates)
	for i := 0; i < numCandidates; i++ {
		continuing.Add(ballot.Candidate(i))
	}
	for _, c := range data.Metadata.Excluded {
		if int(c) < 0 || int(c) >= numCandidates {
			return nil, fmt.Errorf("%w: excluded candidate %v out of range", errkind.ErrInputMalformed, c)
		}
		continuing.Remove(c)
	}
	if vacancies <= 0 || vacancies >= continuing.Len() {
		return nil, fmt.Errorf("%w: %d vacancies is invalid for %d continuing candidates", errkind.ErrInputMalformed, vacancies, continuing.Len())
	}
	if ec == nil {
		var decisions []tieresolve.ECDecision
		for _, d := range data.Metadata.TieResolutions {
			decisions = append(decisions, tieresolve.ECDecision(d))
		}
		var err error
		ec, err = tieresolve.NewECDecisions(decisions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errkind.ErrInputMalformed, err)
		}
	}
	if log == nil {
		log = stvlog.NewNop()
	}
	e := &Engine{
		params:     params,
		data:       data,
		vacancies:  vacancies,
		piles:      pile.New(params.Subdivision),
		continuing: continuing,
		elected:    candset.New(vacancies),
		ec:         ec,
		rnd:        rnd,
		log:        log,
		metrics:    metrics,
	}
	e.tally = make([]arithmetic.Tally, numCandidates)
	e.papers = make([]int, numCandidates)
	for i := range e.tally {
		e.tally[i] = e.zeroTally()
	}
	e.exhaustedTally = e.zeroTally()
	e.roundingTally = e.zeroTally()
	return e, nil
}

func (e *Engine) zeroTally() arithmetic.Tally  { return e.intTally(0) }
func (e *Engine) intTally(n int) arithmetic.Tally {
	switch e.params.TallyKind {
	case rules.TallyDecimal:
		return arithmetic.NewDecimal(n, e.params.DecimalPlaces)
	case rules.TallyRational:
		return arithmetic.NewRational(n)
	default:
		return arithmetic.NewInt(n)
	}
}

func tallyAsRat(t arithmetic.Tally) *big.Rat {
	r, ok := new(big.Rat).SetString(t.String())
	if !ok {
		panic(fmt.Sprintf("engine: tally %q is not a parseable rational", t.String()))
	}
	return r
}

// Run drives the state machine to Terminate and returns the completed
// transcript.
func (e *Engine) Run() (*transcript.Transcript, error) {
	e.start()
	if e.tieErr != nil {
		return e.transcript, e.tieErr
	}
	for !e.finished() {
		if err := e.step(); err != nil {
			return e.transcript, err
		}
		if e.tieErr != nil {
			return e.transcript, e.tieErr
		}
	}
	return e.transcript, nil
}

func (e *Engine) finished() bool {
	return len(e.electedOrder) >= e.vacancies
}

// step performs one DistributeSurplus or Exclude action (spec §4.3).
func (e *Engine) step() error {
	if len(e.pendingSurplus) > 0 {
		c := e.nextPendingSurplus()
		e.doSurplus(c)
		return nil
	}
	excluded, err := e.chooseExclusion()
	if err != nil {
		return err
	}
	e.doExclusion(excluded)
	return nil
}

// ---- Start ----

func (e *Engine) start() {
	arena := &ballot.Arena{}
	votes := e.data.Resolve(arena)
	e.totalFormal = e.data.NumVotes()

	bag := arithmetic.NewBallotBag()
	for _, v := range votes {
		b := pile.Ballot{N: v.N, Preferences: v.Preferences, Source: v.Source}
		dest, ok := pile.AdvanceToNextContinuing(&b, e.continuing)
		if !ok {
			e.piles.Exhausted = append(e.piles.Exhausted, b)
			e.exhaustedTally = e.exhaustedTally.Add(e.intTally(v.N))
			e.exhaustedPapers += v.N
			continue
		}
		e.piles.Add(dest, 0, arithmetic.One(), b)
		e.tally[dest] = e.tally[dest].Add(e.intTally(v.N))
		pile.AddTally(&bag, dest, []pile.Ballot{b})
	}
	for _, c := range bag.List() {
		e.papers[c] = bag.Count(c)
	}

	e.quota = e.intTally(e.totalFormal/(e.vacancies+1) + 1)
	e.transcript = &transcript.Transcript{
		Quota: transcript.QuotaInfo{Papers: e.totalFormal, Vacancies: e.vacancies, Quota: e.quota},
	}
	e.log.Info("first preferences computed", zap.Int("formal", e.totalFormal), zap.String("quota", e.quota.String()))
	e.finishCount(transcript.Reason{Kind: transcript.ReasonFirstPreferences}, true, nil, nil, nil, true)
}

// ---- finishCount: shared Evaluate logic attached to every count ----

// finishCount records a completed (sub-)count, then applies the quota
// check and shortcut clauses spec §4.3's Evaluate state performs, in the
// same transcript entry — an electoral commission's transcript records
// elections alongside the action that caused them, not as a separate row.
func (e *Engine) finishCount(reason transcript.Reason, completed bool, portion *transcript.PortionOfReasonBeingDoneThisCount, tvCreation *transcript.TransferValueCreation, alreadyNotContinuing []ballot.Candidate, checkElections bool) {
	started := time.Now()
	if portion == nil {
		portion = &transcript.PortionOfReasonBeingDoneThisCount{}
	}
	var elected []transcript.CandidateElected
	notContinuing := append([]ballot.Candidate(nil), alreadyNotContinuing...)

	if checkElections {
		elected, notContinuing = e.electByQuota(elected, notContinuing)
		elected, notContinuing = e.applyShortcutClauses(elected, notContinuing, completed)
	}

	decisions := e.pendingDecisions
	e.pendingDecisions = nil

	e.transcript.Counts = append(e.transcript.Counts, transcript.SingleCount{
		Reason:               reason,
		Portion:              *portion,
		ReasonCompleted:      completed,
		Elected:              elected,
		NotContinuing:        notContinuing,
		CreatedTransferValue: tvCreation,
		Decisions:            decisions,
		Status:               e.snapshot(),
	})
	e.transcript.Elected = append([]ballot.Candidate(nil), e.electedOrder...)
	e.metrics.ObserveCount()
	e.metrics.ObserveCountDuration(time.Since(started))
	if e.observer != nil {
		e.observer.OnCount(len(e.transcript.Counts)-1, e.piles)
	}
}

func (e *Engine) snapshot() transcript.EndCountStatus {
	cand := make([]arithmetic.Tally, len(e.tally))
	copy(cand, e.tally)
	papers := make([]int, len(e.papers))
	copy(papers, e.papers)
	status := transcript.EndCountStatus{
		Tallies: transcript.PerCandidateTally{Candidate: cand, Exhausted: e.exhaustedTally, Rounding: e.roundingTally},
		Papers:  transcript.PerCandidatePapers{Candidate: papers, Exhausted: e.exhaustedPapers},
	}
	if e.params.RandomSampleSurplus {
		// Set-aside papers keep their vote value with the elected candidate
		// (who is held at exactly quota), so only the paper count needs a
		// bucket of its own.
		setAside := e.setAsidePapers
		status.Tallies.SetAside = e.zeroTally()
		status.Papers.SetAside = &setAside
	}
	return status
}

func (e *Engine) electByQuota(elected []transcript.CandidateElected, notContinuing []ballot.Candidate) ([]transcript.CandidateElected, []ballot.Candidate) {
	var reached []ballot.Candidate
	for _, c := range e.continuing.List() {
		if e.tally[c].Cmp(e.quota) >= 0 {
			reached = append(reached, c)
		}
	}
	if len(reached) == 0 {
		return elected, notContinuing
	}
	ordered := e.orderDescendingByTally(reached, e.params.Ties.ElectingByQuota)
	for _, c := range ordered {
		e.elect(c)
		elected = append(elected, transcript.CandidateElected{Who: c, Why: transcript.ReachedQuota})
		notContinuing = append(notContinuing, c)
		if e.finished() {
			break
		}
	}
	return elected, notContinuing
}

// applyShortcutClauses checks the three early-termination clauses spec
// §4.1 names, each gated by its own CheckTiming: atEvaluate is true when
// this call originates from a count that completes its reason and control
// genuinely returns to Evaluate, false for an intermediate TV-bucket count
// within an ongoing surplus distribution or exclusion.
func (e *Engine) applyShortcutClauses(elected []transcript.CandidateElected, notContinuing []ballot.Candidate, atEvaluate bool) ([]transcript.CandidateElected, []ballot.Candidate) {
	if e.finished() {
		return elected, notContinuing
	}
	remaining := e.vacancies - len(e.electedOrder)

	if e.params.ContinuingEqualsVacancies.Fires(atEvaluate) && e.continuing.Len() == remaining && remaining > 0 {
		ordered := e.orderDescendingByTally(e.continuing.List(), e.params.Ties.ElectingAllRemaining)
		for _, c := range ordered {
			e.elect(c)
			elected = append(elected, transcript.CandidateElected{Who: c, Why: transcript.AllRemainingMustBeElected})
			notContinuing = append(notContinuing, c)
		}
		return elected, notContinuing
	}

	// The two-remaining clause waits until no surplus is pending, since a
	// pending surplus can still reorder the last two.
	if e.params.TwoRemainingHigherWins.Fires(atEvaluate) && remaining == 1 && e.continuing.Len() == 2 && len(e.pendingSurplus) == 0 {
		ordered := e.orderDescendingByTally(e.continuing.List(), e.params.Ties.ElectingOneOfLastTwo)
		winner := ordered[0]
		e.elect(winner)
		elected = append(elected, transcript.CandidateElected{Who: winner, Why: transcript.HighestOfLastTwoStanding})
		notContinuing = append(notContinuing, winner)
		return elected, notContinuing
	}

	if e.params.TopFewOverwhelming.Fires(atEvaluate) && remaining > 0 {
		if winners, ok := e.overwhelmingWinners(remaining); ok {
			for _, c := range winners {
				e.elect(c)
				elected = append(elected, transcript.CandidateElected{Who: c, Why: transcript.ReachedQuota})
				notContinuing = append(notContinuing, c)
			}
		}
	}
	return elected, notContinuing
}

// overwhelmingWinners applies a sufficient (but not exhaustive) test for
// spec §4.1's "top few have overwhelming votes" clause: the top n
// continuing candidates by tally each individually exceed the combined
// tally of every other continuing candidate, so no redistribution of
// votes among the others could catch them up. This is sound but more
// conservative than a full what-if analysis of every possible
// redistribution; among the shipped rule sets only NSW local government
// enables the clause.
func (e *Engine) overwhelmingWinners(n int) ([]ballot.Candidate, bool) {
	all := e.continuing.List()
	if len(all) <= n {
		return nil, false
	}
	sort.Slice(all, func(i, j int) bool { return e.tally[all[i]].Cmp(e.tally[all[j]]) > 0 })
	top, rest := all[:n], all[n:]
	restTotal := e.zeroTally()
	for _, c := range rest {
		restTotal = restTotal.Add(e.tally[c])
	}
	for _, c := range top {
		if e.tally[c].Cmp(restTotal) <= 0 {
			return nil, false
		}
	}
	return top, true
}

func (e *Engine) elect(c ballot.Candidate) {
	e.continuing.Remove(c)
	e.elected.Add(c)
	e.electedOrder = append(e.electedOrder, c)
	e.recordElectionSnapshot(c)
	if !e.finished() {
		e.pendingSurplus = append(e.pendingSurplus, c)
	}
}

// recordElectionSnapshot copies the ballots held in c's piles at the
// instant of election, before any surplus is distributed away from them.
// extract.ExtractVotesUsedToElect reads this back for the ACT Schedule
// 4.3-style casual-vacancy extraction, which operates on the votes that
// elected a candidate rather than whatever remains in their pile later.
func (e *Engine) recordElectionSnapshot(c ballot.Candidate) {
	if e.electedSnapshot == nil {
		e.electedSnapshot = make(map[ballot.Candidate][]pile.Ballot)
	}
	var ballots []pile.Ballot
	for _, p := range e.piles.PilesFor(c) {
		ballots = append(ballots, p.Ballots...)
	}
	e.electedSnapshot[c] = ballots
}

// BallotsThatElected returns the ballots held by c's piles at the moment
// c was elected, or nil if c was never elected.
func (e *Engine) BallotsThatElected(c ballot.Candidate) []pile.Ballot {
	return e.electedSnapshot[c]
}

// orderDescendingByTally sorts cands from highest to lowest tally,
// breaking any exact ties with method (tieresolve sorts low to high, so
// a tied group is reversed after resolution).
func (e *Engine) orderDescendingByTally(cands []ballot.Candidate, method tieresolve.Method) []ballot.Candidate {
	sorted := append([]ballot.Candidate(nil), cands...)
	sort.Slice(sorted, func(i, j int) bool { return e.tally[sorted[i]].Cmp(e.tally[sorted[j]]) > 0 })

	out := make([]ballot.Candidate, 0, len(sorted))
	i := 0
	for i < len(sorted) {
		j := i + 1
		for j < len(sorted) && e.tally[sorted[j]].Cmp(e.tally[sorted[i]]) == 0 {
			j++
		}
		group := sorted[i:j]
		if len(group) > 1 {
			group = e.breakTie(group, method, tieresolve.TotalOrder())
			// breakTie resolves low to high; this group is a tie so
			// reverse for highest-first.
			for l, r := 0, len(group)-1; l < r; l, r = l+1, r-1 {
				group[l], group[r] = group[r], group[l]
			}
		}
		out = append(out, group...)
		i = j
	}
	return out
}

// breakTie resolves tied low to high via method, falling back to any
// matching EC decision, then randomness (spec §4.3/§4.4's three-stage
// cascade). A tie settled by an EC decision is recorded via
// recordECDecision so it lands on the count that consumed it (spec §4.5's
// "any EC-decision events needed").
func (e *Engine) breakTie(tied []ballot.Candidate, method tieresolve.Method, g tieresolve.Granularity) []ballot.Candidate {
	cp := append([]ballot.Candidate(nil), tied...)
	if method.Resolve(cp, e.transcript, g) {
		e.metrics.ObserveTie(true)
		return cp
	}
	if e.ec.MatchDecision(cp) {
		e.recordECDecision(tied)
		e.metrics.ObserveTie(true)
		return cp
	}
	if e.strict {
		if e.tieErr == nil {
			e.tieErr = fmt.Errorf("%w: %v", errkind.ErrTieUnresolved, tied)
			e.metrics.ObserveTie(false)
		}
		return append([]ballot.Candidate(nil), tied...)
	}
	tieresolve.ResolveByRandomness(cp, e.rnd)
	e.metrics.ObserveTie(true)
	return cp
}

// recordECDecision notes that resolving this tie consumed a recorded EC
// decision, to be attached to the next finishCount call.
func (e *Engine) recordECDecision(affected []ballot.Candidate) {
	e.pendingDecisions = append(e.pendingDecisions, transcript.DecisionMadeByEC{
		Affected: append([]ballot.Candidate(nil), affected...),
	})
}

// UseStrictTieResolution stops breakTie from ever resorting to
// randomness: Run stops and reports errkind.ErrTieUnresolved the first
// time a tie cannot be settled by history or a recorded EC decision.
// This is how a returning officer's count behaves — the law does not let
// software toss the coin — and lets a caller distinguish "this outcome
// is certain" from "this outcome depends on an undecided tie".
func (e *Engine) UseStrictTieResolution() { e.strict = true }

func (e *Engine) nextPendingSurplus() ballot.Candidate {
	bestIdx := 0
	bestSurplus := e.surplusOf(e.pendingSurplus[0])
	for i, c := range e.pendingSurplus {
		if s := e.surplusOf(c); s.Cmp(bestSurplus) > 0 {
			bestSurplus, bestIdx = s, i
		}
	}
	c := e.pendingSurplus[bestIdx]
	e.pendingSurplus = append(e.pendingSurplus[:bestIdx], e.pendingSurplus[bestIdx+1:]...)
	return c
}

func (e *Engine) surplusOf(c ballot.Candidate) arithmetic.Tally {
	return e.tally[c].Sub(e.quota)
}

// Data returns the election data this engine is counting. Used by extract
// and margin, which need the original ballots alongside the transcript
// Run produces.
func (e *Engine) Data() *ballot.Data { return e.data }

// PilesFor returns the piles currently held by candidate c, for callers
// that need to inspect which ballots are presently contributing to a
// candidate's tally (e.g. an ACT-style casual-vacancy vote extraction).
// It must be called after Run, once the candidate in question has been
// elected and their final piles are no longer being mutated.
func (e *Engine) PilesFor(c ballot.Candidate) []*pile.Pile { return e.piles.PilesFor(c) }

// chooseExclusion picks the candidate(s) to exclude next: ordinarily the
// single lowest continuing candidate, tie-broken via
// Ties.ChoosingLowestForExclude, or — when AllowRule13AMultiExclusion is
// set — every bottom candidate whose cumulative tally remains below the
// next-lowest continuing candidate's tally (Commonwealth Electoral Act
// 1918 s273(13A)).
func (e *Engine) chooseExclusion() ([]ballot.Candidate, error) {
	cont := e.continuing.List()
	if len(cont) == 0 {
		return nil, fmt.Errorf("%w: no continuing candidates remain with vacancies unfilled", errkind.ErrInputMalformed)
	}
	sort.Slice(cont, func(i, j int) bool { return e.tally[cont[i]].Cmp(e.tally[cont[j]]) < 0 })

	if e.params.AllowRule13AMultiExclusion && len(cont) > 1 {
		// The 13A group is the largest k such that the bottom k candidates'
		// cumulative tally stays below the (k+1)-th lowest candidate's
		// tally, capped so that enough candidates remain continuing to
		// fill the unfilled vacancies.
		remaining := e.vacancies - len(e.electedOrder)
		maxGroup := len(cont) - remaining
		cum := e.zeroTally()
		k := 0
		for i, c := range cont {
			next := cum.Add(e.tally[c])
			if i+1 >= len(cont) || i+1 > maxGroup || next.Cmp(e.tally[cont[i+1]]) >= 0 {
				break
			}
			cum = next
			k = i + 1
		}
		if k > 1 {
			return append([]ballot.Candidate(nil), cont[:k]...), nil
		}
	}

	lowest := e.tally[cont[0]]
	var tied []ballot.Candidate
	for _, c := range cont {
		if e.tally[c].Cmp(lowest) != 0 {
			break
		}
		tied = append(tied, c)
	}
	if len(tied) == 1 {
		return tied, nil
	}
	ordered := e.breakTie(tied, e.params.Ties.ChoosingLowestForExclude, tieresolve.LowestN(1))
	return []ballot.Candidate{ordered[0]}, nil
}

// doSurplus distributes an elected candidate's surplus over quota,
// bucketed by the source ballots' incoming transfer value (spec §4.2's
// TV-bucket subdivision; a weighted-inclusive-Gregory rule set always
// subdivides this way since the bucket's incoming TV is itself an input
// to that bucket's outgoing TV — the configured SurplusSubdivision is
// honored for every other TV source).
func (e *Engine) doSurplus(c ballot.Candidate) {
	if e.params.RandomSampleSurplus {
		e.doSurplusRandomSample(c)
		return
	}
	process := e.surplusParcels(c)

	processedPapers := 0
	var allProcessBallots []pile.Ballot
	for _, p := range process {
		processedPapers += p.Papers()
		allProcessBallots = append(allProcessBallots, p.Ballots...)
	}

	surplusSnapshot := e.surplusOf(c)
	surplusRat := tallyAsRat(surplusSnapshot)

	continuingDenominator := processedPapers
	if e.params.TVSource == rules.TVSourceContinuingBallots {
		continuingDenominator = e.papersHeadingToContinuing(allProcessBallots)
	}

	type bucket struct {
		priorTV  arithmetic.TransferValue
		arrivals []int
		ballots  []pile.Ballot
	}
	forceGregoryBuckets := e.params.TVSource == rules.TVSourceWeightedInclusiveGregory
	aggregate := e.params.SurplusSubdivision == rules.SingleAggregateTransfer && !forceGregoryBuckets
	mergeSameTV := e.params.SurplusSubdivision == rules.MergeSameTVAndScale || forceGregoryBuckets

	var buckets []bucket
	if aggregate {
		buckets = []bucket{{ballots: allProcessBallots}}
	} else {
		// Under MergeSameTVAndScale, piles sharing an incoming transfer
		// value move as one bucket; this is also safe for Gregory, whose
		// outgoing value depends only on the shared incoming value.
		byTV := make(map[string]int)
		for _, p := range process {
			if mergeSameTV {
				key := p.TransferValue.String()
				if i, ok := byTV[key]; ok {
					buckets[i].ballots = append(buckets[i].ballots, p.Ballots...)
					buckets[i].arrivals = append(buckets[i].arrivals, p.ArrivalCount)
					continue
				}
				byTV[key] = len(buckets)
			}
			buckets = append(buckets, bucket{
				priorTV:  p.TransferValue,
				arrivals: []int{p.ArrivalCount},
				ballots:  append([]pile.Ballot(nil), p.Ballots...),
			})
		}
	}

	e.piles.RemoveAll(c)
	e.papers[c] -= processedPapers
	e.tally[c] = e.quota

	for i, bk := range buckets {
		thisCount := len(e.transcript.Counts)
		var tv arithmetic.TransferValue
		var source transcript.TransferValueSource
		switch e.params.TVSource {
		case rules.TVSourceWeightedInclusiveGregory:
			tv = arithmetic.FromSurplusRatTimesPriorTV(surplusRat, int64(processedPapers), bk.priorTV)
			source = transcript.SourceOverVotesTimesOriginalTransfer
		case rules.TVSourceContinuingBallots:
			tv = arithmetic.FromSurplusRatOverBallots(surplusRat, int64(continuingDenominator))
			source = transcript.SourceOverContinuingBallots
		default:
			tv = arithmetic.FromSurplusRatOverBallots(surplusRat, int64(processedPapers))
			source = transcript.SourceOverBallots
		}
		if e.params.LimitTVToOne && tv.Cmp(arithmetic.One()) > 0 {
			tv = tv.Limited()
			source = transcript.SourceLimited
		}

		e.redistribute(bk.ballots, tv, thisCount)

		portion := transcript.PortionOfReasonBeingDoneThisCount{TransferValue: &tv}
		if !aggregate && len(bk.arrivals) > 0 {
			wc := transcript.CountIndex(bk.arrivals[0])
			portion.WhenTVCreated = &wc
			for _, a := range bk.arrivals {
				portion.PapersCameFromCounts = append(portion.PapersCameFromCounts, transcript.CountIndex(a))
			}
		}
		creation := &transcript.TransferValueCreation{
			Surplus:           surplusSnapshot,
			Votes:             e.intTally(processedPapers),
			BallotsConsidered: processedPapers,
			ContinuingBallots: continuingDenominator,
			TransferValue:     tv,
			Source:            source,
		}
		if e.params.TVSource == rules.TVSourceWeightedInclusiveGregory {
			prior := bk.priorTV
			creation.OriginalTransferValue = &prior
		}
		reason := transcript.Reason{Kind: transcript.ReasonExcessDistribution, Candidate: c}
		last := i == len(buckets)-1
		e.finishCount(reason, last, &portion, creation, []ballot.Candidate{c}, last || e.params.MidSurplusElectionCheck)

		if e.finished() && !e.params.FinishAllCountsWhenAllElected {
			return
		}
	}
}

// surplusParcels returns the piles whose ballots participate in c's
// surplus distribution, honoring the last-parcel policy: under
// LastParcelOnly only the most-recently-arrived piles are walked, the
// rest having already done their job electing the candidate.
func (e *Engine) surplusParcels(c ballot.Candidate) []*pile.Pile {
	piles := e.piles.PilesFor(c)
	if e.params.LastParcel != rules.LastParcelOnly || len(piles) <= 1 {
		return piles
	}
	maxArrival := piles[0].ArrivalCount
	for _, p := range piles {
		if p.ArrivalCount > maxArrival {
			maxArrival = p.ArrivalCount
		}
	}
	var process []*pile.Pile
	for _, p := range piles {
		if p.ArrivalCount == maxArrival {
			process = append(process, p)
		}
	}
	return process
}

// doSurplusRandomSample transfers an elected candidate's surplus the NSW
// way: draw surplus-many papers from the candidate's ballots (at random,
// or the first papers in ballot order under a reverse-donkey source) and
// transfer them onward at full value. The papers not drawn are set aside;
// their vote value stays with the candidate, who is held at exactly
// quota.
func (e *Engine) doSurplusRandomSample(c ballot.Candidate) {
	process := e.surplusParcels(c)
	processedPapers := 0
	var all []pile.Ballot
	for _, p := range process {
		processedPapers += p.Papers()
		all = append(all, p.Ballots...)
	}

	surplusSnapshot := e.surplusOf(c)
	surplusRat := tallyAsRat(surplusSnapshot)
	n := int(new(big.Int).Quo(surplusRat.Num(), surplusRat.Denom()).Int64())
	if n < 0 {
		n = 0
	}

	sampler := randsrc.NewWeightedWithoutReplacement(e.rnd)
	idxs := sampler.SampleIndices(processedPapers, n)
	sort.Ints(idxs)
	selected, remainder := splitByPaperIndex(all, idxs)

	e.piles.RemoveAll(c)
	e.papers[c] -= processedPapers
	e.tally[c] = e.quota

	for _, b := range remainder {
		e.piles.SetAside = append(e.piles.SetAside, b)
		e.setAsidePapers += b.N
	}

	thisCount := len(e.transcript.Counts)
	tv := arithmetic.One()
	e.redistribute(selected, tv, thisCount)

	portion := transcript.PortionOfReasonBeingDoneThisCount{TransferValue: &tv}
	creation := &transcript.TransferValueCreation{
		Surplus:           surplusSnapshot,
		Votes:             e.intTally(processedPapers),
		BallotsConsidered: processedPapers,
		ContinuingBallots: processedPapers,
		TransferValue:     tv,
		Source:            transcript.SourceRandomSample,
	}
	reason := transcript.Reason{Kind: transcript.ReasonExcessDistribution, Candidate: c}
	e.finishCount(reason, true, &portion, creation, []ballot.Candidate{c}, true)
}

// splitByPaperIndex partitions ballots at single-paper granularity: idxs
// (sorted ascending) are positions in the flattened paper sequence, and a
// ballot whose papers straddle the selection boundary is split into a
// selected part and a remainder part sharing the same preference state.
func splitByPaperIndex(ballots []pile.Ballot, idxs []int) (selected, remainder []pile.Ballot) {
	off := 0
	j := 0
	for _, b := range ballots {
		k := 0
		for j < len(idxs) && idxs[j] < off+b.N {
			k++
			j++
		}
		switch {
		case k == 0:
			remainder = append(remainder, b)
		case k == b.N:
			selected = append(selected, b)
		default:
			sel, rem := b, b
			sel.N = k
			rem.N = b.N - k
			selected = append(selected, sel)
			remainder = append(remainder, rem)
		}
		off += b.N
	}
	return selected, remainder
}

// doExclusion redistributes every excluded candidate's ballots, grouped
// by their existing transfer value — exclusion never derives a new
// transfer value, it only continues the ballots at whatever value they
// already carried (spec §4.2).
func (e *Engine) doExclusion(excluded []ballot.Candidate) {
	type bucket struct {
		tv      arithmetic.TransferValue
		ballots []pile.Ballot
	}
	// Piles sharing a transfer value are merged into one bucket, across
	// every candidate in the exclusion: papers of equal value transfer in
	// one count no matter which pile (or which 13A-grouped candidate) they
	// sat in.
	var buckets []bucket
	byTV := make(map[string]int)
	for _, c := range excluded {
		for _, p := range e.piles.PilesFor(c) {
			key := p.TransferValue.String()
			if i, ok := byTV[key]; ok {
				buckets[i].ballots = append(buckets[i].ballots, p.Ballots...)
				continue
			}
			byTV[key] = len(buckets)
			buckets = append(buckets, bucket{tv: p.TransferValue, ballots: append([]pile.Ballot(nil), p.Ballots...)})
		}
	}
	if e.params.SortExclusionsByTV {
		// Stable: buckets already arrive in a deterministic order (excluded
		// candidates in chooseExclusion's order, each candidate's own piles
		// sorted by PilesFor), and equal-TV buckets must keep that relative
		// order rather than fall back to whatever order the map backing
		// PilesFor happened to produce before it was sorted.
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].tv.Cmp(buckets[j].tv) > 0 })
	}
	for _, c := range excluded {
		e.piles.RemoveAll(c)
		e.continuing.Remove(c)
		e.papers[c] = 0
		e.tally[c] = e.zeroTally()
	}

	if len(buckets) == 0 {
		reason := transcript.Reason{Kind: transcript.ReasonElimination, Candidates: excluded}
		e.finishCount(reason, true, nil, nil, excluded, true)
		return
	}

	for i, bk := range buckets {
		thisCount := len(e.transcript.Counts)
		e.redistribute(bk.ballots, bk.tv, thisCount)

		tv := bk.tv
		portion := transcript.PortionOfReasonBeingDoneThisCount{TransferValue: &tv}
		reason := transcript.Reason{Kind: transcript.ReasonElimination, Candidates: excluded}
		last := i == len(buckets)-1
		e.finishCount(reason, last, &portion, nil, excluded, last || e.params.MidExclusionElectionCheck)

		if e.finished() && !e.params.FinishAllCountsWhenAllElected {
			return
		}
	}
}

// redistribute advances every ballot in ballots to its next continuing
// preference (or exhaustion) at transfer value tv, placing it in its new
// pile and applying the resulting tally increment.
func (e *Engine) redistribute(ballots []pile.Ballot, tv arithmetic.TransferValue, thisCount int) {
	byDest := make(map[ballot.Candidate][]pile.Ballot)
	exhaustedPapers := 0
	for _, b := range ballots {
		dest, ok := pile.AdvanceToNextContinuing(&b, e.continuing)
		if !ok {
			e.piles.Exhausted = append(e.piles.Exhausted, b)
			exhaustedPapers += b.N
			continue
		}
		byDest[dest] = append(byDest[dest], b)
	}
	for dest, ds := range byDest {
		papers := 0
		for _, b := range ds {
			papers += b.N
			e.piles.Add(dest, thisCount, tv, b)
		}
		e.papers[dest] += papers
		e.applyIncrement(dest, tv, papers)
	}
	if exhaustedPapers > 0 {
		e.exhaustedPapers += exhaustedPapers
		e.applyExhausted(tv, exhaustedPapers)
	}
}

// applyIncrement adds tv*papers to dest's tally, applying the configured
// rounding policy and tracking whatever it truncates away.
func (e *Engine) applyIncrement(dest ballot.Candidate, tv arithmetic.TransferValue, papers int) {
	if e.params.Rounding == arithmetic.RoundExact {
		exact := e.params.Rounding.ApplyExact(tv, papers)
		e.tally[dest] = e.tally[dest].Add(arithmetic.NewRationalFromRat(exact))
		return
	}
	inc, loss := e.params.Rounding.ApplyToInt(tv, papers)
	e.tally[dest] = e.tally[dest].Add(e.intTally(int(inc)))
	e.addRoundingLoss(loss)
}

// applyExhausted adds tv*papers to the exhausted-votes tally, the same
// way applyIncrement does for a candidate.
func (e *Engine) applyExhausted(tv arithmetic.TransferValue, papers int) {
	if e.params.Rounding == arithmetic.RoundExact {
		exact := e.params.Rounding.ApplyExact(tv, papers)
		e.exhaustedTally = e.exhaustedTally.Add(arithmetic.NewRationalFromRat(exact))
		return
	}
	inc, loss := e.params.Rounding.ApplyToInt(tv, papers)
	e.exhaustedTally = e.exhaustedTally.Add(e.intTally(int(inc)))
	e.addRoundingLoss(loss)
}

// addRoundingLoss tracks the fractional remainder ApplyToInt truncated
// away. An Int-tallied rule set (Federal) has no fractional bucket to put
// it in — that loss is simply absorbed, matching Commonwealth Electoral
// Act 1918 practice, where the floor-rounded remainder is not itself
// redistributed.
func (e *Engine) addRoundingLoss(loss *big.Rat) {
	switch e.params.TallyKind {
	case rules.TallyDecimal:
		e.roundingTally = e.roundingTally.Add(arithmetic.DecimalFromRat(loss, e.params.DecimalPlaces))
	case rules.TallyRational:
		e.roundingTally = e.roundingTally.Add(arithmetic.NewRationalFromRat(loss))
	}
}

// papersHeadingToContinuing counts, without mutating any ballot, how many
// papers among ballots would land on a still-continuing candidate if
// advanced now — the denominator spec §4.1's "continuing ballots"
// transfer-value source needs.
func (e *Engine) papersHeadingToContinuing(ballots []pile.Ballot) int {
	n := 0
	for _, b := range ballots {
		peek := b
		if _, ok := pile.AdvanceToNextContinuing(&peek, e.continuing); ok {
			n += peek.N
		}
	}
	return n
}
