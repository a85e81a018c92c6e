// Package rules implements stateful alert-rule evaluation: threshold
// conditions, edge triggering, cooldown, once-only suppression, and severity
// escalation with message formatting.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/state"
)

// Evaluator applies rules to events against their per-(rule, market) state.
type Evaluator struct {
	log *logrus.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(log *logrus.Logger) *Evaluator {
	return &Evaluator{log: log}
}

// Evaluate runs one rule against one event. It returns the finished alert and
// true when the rule fires. The state machine per (rule, market) pair:
//
//   - the condition is the AND of every threshold field present on the rule;
//     a rule with no threshold fields never evaluates true
//   - a fire requires an edge: condition true now, false on the previous
//     observation (level-held conditions never re-fire)
//   - a fire inside the cooldown window is suppressed, but the state still
//     records the true condition so cooldown expiry alone cannot re-fire
//   - once-only rules are permanently exhausted after their first fire
//   - whenever the condition is false the state re-arms
func (ev *Evaluator) Evaluate(rule models.AlertRule, event models.MarketEvent, st *state.RuleState, now time.Time) (models.AlertMessage, bool) {
	if rule.MarketID != event.MarketID {
		return models.AlertMessage{}, false
	}

	condTrue, reason := conditionTrue(rule.MinProbability, rule.MaxProbability, rule.MinDelta, event)
	if !condTrue {
		st.PrevConditionTrue = false
		return models.AlertMessage{}, false
	}

	if rule.Once && st.HasFiredOnce {
		// Exhausted for the remainder of the process lifetime.
		st.PrevConditionTrue = true
		return models.AlertMessage{}, false
	}

	if st.PrevConditionTrue {
		// Level-held condition, no edge.
		return models.AlertMessage{}, false
	}

	if rule.Cooldown > 0 && !st.LastFiredAt.IsZero() && now.Sub(st.LastFiredAt) < rule.Cooldown {
		// Suppressed, but record the true condition so the expired cooldown
		// does not fire without a fresh false -> true transition.
		st.PrevConditionTrue = true
		ev.log.WithFields(logrus.Fields{
			"rule":      rule.ID,
			"market_id": event.MarketID,
		}).Debug("alert suppressed by cooldown")
		return models.AlertMessage{}, false
	}

	st.LastFiredAt = now
	st.HasFiredOnce = true
	st.PrevConditionTrue = true

	severity := ResolveSeverity(rule, event)
	msg := models.AlertMessage{
		MarketID:    event.MarketID,
		Severity:    severity,
		Probability: event.Probability,
		Delta:       event.Delta,
		Reason:      FormatReason(rule, event, reason, severity),
		Timestamp:   event.Timestamp,
	}
	msg.Message = formatMessage(msg)
	return msg, true
}

// conditionTrue evaluates the AND of the present threshold fields and builds
// the short trigger description. The min_delta check can only hold when the
// event carries a delta; a market's first-ever observation has none.
func conditionTrue(minProb, maxProb, minDelta *float64, event models.MarketEvent) (bool, string) {
	if minProb == nil && maxProb == nil && minDelta == nil {
		return false, ""
	}

	var parts []string
	if minProb != nil {
		if event.Probability < *minProb {
			return false, ""
		}
		parts = append(parts, fmt.Sprintf("probability %.4f >= min %.4f", event.Probability, *minProb))
	}
	if maxProb != nil {
		if event.Probability > *maxProb {
			return false, ""
		}
		parts = append(parts, fmt.Sprintf("probability %.4f <= max %.4f", event.Probability, *maxProb))
	}
	if minDelta != nil {
		if event.Delta == nil || *event.Delta < *minDelta {
			return false, ""
		}
		parts = append(parts, fmt.Sprintf("delta %.4f >= min %.4f", *event.Delta, *minDelta))
	}
	return true, strings.Join(parts, ", ")
}

// formatMessage renders the default human-readable alert line.
func formatMessage(msg models.AlertMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert for market_id=%s | severity=%s | probability=%.4f", msg.MarketID, msg.Severity, msg.Probability)
	if msg.Delta != nil {
		fmt.Fprintf(&b, " | delta=%.4f", *msg.Delta)
	}
	fmt.Fprintf(&b, " | reason: %s", msg.Reason)
	return b.String()
}
