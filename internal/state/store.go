// Package state holds the monitor's in-memory evaluation state: the shared
// previous-probability cache and the per-(rule, market) alert state. All state
// is process-lifetime only; a restart clears every map.
package state

import "time"

// RuleState tracks the firing history of one rule against one market. It is
// created lazily on first evaluation and mutated only by the rule evaluator.
type RuleState struct {
	// LastFiredAt is zero when the rule has never fired for this market.
	LastFiredAt  time.Time
	HasFiredOnce bool
	// PrevConditionTrue drives edge detection: a rule may only fire on a
	// false -> true transition of its condition.
	PrevConditionTrue bool
}

// Store owns the two state maps. It is read and written exclusively by the
// monitor loop's single goroutine, so it carries no locking.
type Store struct {
	prevProb  map[string]float64
	ruleState map[string]*RuleState
}

// New creates an empty store.
func New() *Store {
	return &Store{
		prevProb:  make(map[string]float64),
		ruleState: make(map[string]*RuleState),
	}
}

// PrevProbability returns the last observed probability for a market. The
// cache is keyed by market id only and is shared across all rules watching
// that market.
func (s *Store) PrevProbability(marketID string) (float64, bool) {
	p, ok := s.prevProb[marketID]
	return p, ok
}

// SetPrevProbability records the probability observed this cycle. The monitor
// calls this strictly after rule evaluation has read the prior value.
func (s *Store) SetPrevProbability(marketID string, p float64) {
	s.prevProb[marketID] = p
}

// RuleState returns the alert state for a (rule, market) pair, creating it on
// first access.
func (s *Store) RuleState(ruleID, marketID string) *RuleState {
	key := ruleID + ":" + marketID
	st, ok := s.ruleState[key]
	if !ok {
		st = &RuleState{}
		s.ruleState[key] = st
	}
	return st
}

// Markets returns the number of markets with a cached probability.
func (s *Store) Markets() int {
	return len(s.prevProb)
}

// RuleStates returns the number of (rule, market) pairs tracked so far.
func (s *Store) RuleStates() int {
	return len(s.ruleState)
}
