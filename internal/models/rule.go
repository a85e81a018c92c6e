package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EscalationRule overrides a rule's base severity when its threshold fields
// are satisfied. All present fields must hold (AND); an entry with no
// threshold fields never matches.
type EscalationRule struct {
	MinProbability *float64 `mapstructure:"min_probability"`
	MaxProbability *float64 `mapstructure:"max_probability"`
	MinDelta       *float64 `mapstructure:"min_delta"`
	Severity       Severity `mapstructure:"severity"`
}

// AlertRule configures the alert conditions for a single market. Rules are
// loaded once at startup and are immutable for the process lifetime.
type AlertRule struct {
	// ID is assigned at load time and keys the per-(rule, market) alert state.
	ID             string           `mapstructure:"-"`
	MarketID       string           `mapstructure:"market_id"`
	MinProbability *float64         `mapstructure:"min_probability"`
	MaxProbability *float64         `mapstructure:"max_probability"`
	MinDelta       *float64         `mapstructure:"min_delta"`
	Cooldown       time.Duration    `mapstructure:"cooldown"`
	Once           bool             `mapstructure:"once"`
	Severity       Severity         `mapstructure:"severity"`
	Escalate       []EscalationRule `mapstructure:"escalate"`
	ReasonTemplate string           `mapstructure:"reason_template"`
}

// HasThresholds reports whether any threshold field is present. A rule with
// none of them never triggers.
func (r *AlertRule) HasThresholds() bool {
	return r.MinProbability != nil || r.MaxProbability != nil || r.MinDelta != nil
}

// ApplyDefaults normalizes severities and fills the default base severity.
func (r *AlertRule) ApplyDefaults() {
	if strings.TrimSpace(string(r.Severity)) == "" {
		r.Severity = SeverityWarning
	} else if sev, err := ParseSeverity(string(r.Severity)); err == nil {
		r.Severity = sev
	}
	for i := range r.Escalate {
		if sev, err := ParseSeverity(string(r.Escalate[i].Severity)); err == nil {
			r.Escalate[i].Severity = sev
		}
	}
}

// Validate checks rule field constraints. Escalation lists must be in
// non-decreasing severity order so that the last-matching-entry-wins
// resolution cannot de-escalate an alert.
func (r *AlertRule) Validate() error {
	if strings.TrimSpace(r.MarketID) == "" {
		return errors.New("market_id must not be empty")
	}
	if err := validateProbability("min_probability", r.MinProbability); err != nil {
		return err
	}
	if err := validateProbability("max_probability", r.MaxProbability); err != nil {
		return err
	}
	if r.MinProbability != nil && r.MaxProbability != nil && *r.MinProbability > *r.MaxProbability {
		return errors.New("min_probability must be <= max_probability")
	}
	if r.MinDelta != nil && *r.MinDelta <= 0 {
		return errors.New("min_delta must be > 0")
	}
	if r.Cooldown < 0 {
		return errors.New("cooldown must not be negative")
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("severity must be one of info/warning/critical, got %q", r.Severity)
	}
	prevRank := -1
	for i, esc := range r.Escalate {
		if err := validateProbability("escalate min_probability", esc.MinProbability); err != nil {
			return err
		}
		if err := validateProbability("escalate max_probability", esc.MaxProbability); err != nil {
			return err
		}
		if esc.MinDelta != nil && *esc.MinDelta <= 0 {
			return fmt.Errorf("escalate[%d]: min_delta must be > 0", i)
		}
		if !esc.Severity.Valid() {
			return fmt.Errorf("escalate[%d]: severity must be one of info/warning/critical, got %q", i, esc.Severity)
		}
		if esc.MinProbability == nil && esc.MaxProbability == nil && esc.MinDelta == nil {
			return fmt.Errorf("escalate[%d]: at least one threshold field is required", i)
		}
		if esc.Severity.Rank() < prevRank {
			return fmt.Errorf("escalate[%d]: severities must be in non-decreasing order", i)
		}
		prevRank = esc.Severity.Rank()
	}
	return nil
}

func validateProbability(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0.0 || *v > 1.0 {
		return fmt.Errorf("%s %v out of range [0, 1]", field, *v)
	}
	return nil
}
