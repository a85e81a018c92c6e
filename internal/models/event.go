// Package models defines the core domain entities: market events, alert rules,
// and alert messages.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity is an alert severity level. Levels are ordered:
// info < warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// ParseSeverity normalizes case and whitespace and rejects unknown levels.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Rank returns the ordering position of the severity; unknown levels rank
// below info.
func (s Severity) Rank() int {
	rank, ok := severityRank[s]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MarketEvent is one observation of a market's probability produced by an
// upstream fetcher. Events are created fresh each poll cycle and never mutated
// after normalization.
type MarketEvent struct {
	MarketID    string
	Title       string
	Timestamp   time.Time
	Probability float64
	// Delta is the magnitude of change since the previous observation. It is
	// nil on the first observation of a market, or when the upstream did not
	// supply one and the monitor has no cached previous probability.
	Delta  *float64
	Source string
	// Raw preserves the original upstream payload for diagnostics.
	Raw json.RawMessage
}

// Validate checks event field constraints.
func (e *MarketEvent) Validate() error {
	if strings.TrimSpace(e.MarketID) == "" {
		return errors.New("market id must not be empty")
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if e.Probability < 0.0 || e.Probability > 1.0 {
		return fmt.Errorf("probability %v out of range [0, 1]", e.Probability)
	}
	if e.Delta != nil && *e.Delta < 0 {
		return fmt.Errorf("delta magnitude %v must not be negative", *e.Delta)
	}
	return nil
}

// AlertMessage is a finished alert, produced once per successful rule fire and
// consumed immediately by the dispatchers.
type AlertMessage struct {
	MarketID    string
	Severity    Severity
	Probability float64
	Delta       *float64
	Message     string
	Reason      string
	Timestamp   time.Time
}
