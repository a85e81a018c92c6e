package rules

import (
	"fmt"
	"strings"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// ResolveSeverity starts from the rule's base severity and walks the
// escalation entries in declared order; every matching entry overrides the
// working severity, so the last match in list order wins. Rule validation
// already rejects lists whose severities decrease, which makes this
// resolution equivalent to "highest matching severity" for valid configs.
func ResolveSeverity(rule models.AlertRule, event models.MarketEvent) models.Severity {
	severity := rule.Severity
	if !severity.Valid() {
		severity = models.SeverityWarning
	}
	for _, esc := range rule.Escalate {
		if escalationMatches(esc, event) {
			severity = esc.Severity
		}
	}
	return severity
}

// escalationMatches applies the same AND-of-present-fields semantics as the
// rule condition itself.
func escalationMatches(esc models.EscalationRule, event models.MarketEvent) bool {
	ok, _ := conditionTrue(esc.MinProbability, esc.MaxProbability, esc.MinDelta, event)
	return ok
}

// FormatReason renders the rule's reason template if one is configured,
// falling back to the default trigger description. Supported placeholders:
// {market_id}, {probability}, {delta}, {min_probability}, {max_probability},
// {min_delta}, {severity}.
func FormatReason(rule models.AlertRule, event models.MarketEvent, defaultReason string, severity models.Severity) string {
	if strings.TrimSpace(rule.ReasonTemplate) == "" {
		return defaultReason
	}

	delta := 0.0
	if event.Delta != nil {
		delta = *event.Delta
	}
	replacer := strings.NewReplacer(
		"{market_id}", event.MarketID,
		"{probability}", fmt.Sprintf("%.4f", event.Probability),
		"{delta}", fmt.Sprintf("%.4f", delta),
		"{min_probability}", formatOptional(rule.MinProbability),
		"{max_probability}", formatOptional(rule.MaxProbability),
		"{min_delta}", formatOptional(rule.MinDelta),
		"{severity}", string(severity),
	)
	return replacer.Replace(rule.ReasonTemplate)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
