package rules

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/state"
)

func fptr(v float64) *float64 { return &v }

func testEvaluator() *Evaluator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewEvaluator(log)
}

func eventAt(marketID string, p float64, ts time.Time) models.MarketEvent {
	return models.MarketEvent{MarketID: marketID, Timestamp: ts, Probability: p, Source: "dev"}
}

var t0 = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

func TestEvaluate_MinProbabilityBoundary(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", MinProbability: fptr(0.7), Severity: models.SeverityWarning}

	tests := []struct {
		p    float64
		fire bool
	}{
		{0.69, false},
		{0.70, true}, // threshold comparisons are inclusive
		{0.71, true},
	}
	for _, tt := range tests {
		st := &state.RuleState{}
		_, fired := ev.Evaluate(rule, eventAt("m", tt.p, t0), st, t0)
		if fired != tt.fire {
			t.Errorf("p=%v fired=%v, want %v", tt.p, fired, tt.fire)
		}
	}
}

func TestEvaluate_EdgeTriggering(t *testing.T) {
	// Probabilities 0.5, 0.8, 0.8, 0.5, 0.8 against min 0.7 must fire exactly
	// twice: on each false -> true transition, not on the held level.
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", MinProbability: fptr(0.7), Severity: models.SeverityWarning}
	st := &state.RuleState{}

	fires := 0
	now := t0
	for _, p := range []float64{0.5, 0.8, 0.8, 0.5, 0.8} {
		if _, fired := ev.Evaluate(rule, eventAt("m", p, now), st, now); fired {
			fires++
		}
		now = now.Add(time.Minute)
	}
	assert.Equal(t, 2, fires)
}

func TestEvaluate_CooldownSuppresses(t *testing.T) {
	// Two edges 10s apart under a 60s cooldown produce one fire, and the
	// suppressed edge must not fire later on cooldown expiry alone.
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", MinProbability: fptr(0.7), Cooldown: time.Minute, Severity: models.SeverityWarning}
	st := &state.RuleState{}

	_, fired := ev.Evaluate(rule, eventAt("m", 0.8, t0), st, t0)
	require.True(t, fired)

	_, fired = ev.Evaluate(rule, eventAt("m", 0.5, t0.Add(5*time.Second)), st, t0.Add(5*time.Second))
	require.False(t, fired)

	_, fired = ev.Evaluate(rule, eventAt("m", 0.8, t0.Add(10*time.Second)), st, t0.Add(10*time.Second))
	assert.False(t, fired, "edge inside cooldown must be suppressed")

	// Condition stays true past cooldown expiry; still no fire without a
	// fresh edge.
	_, fired = ev.Evaluate(rule, eventAt("m", 0.8, t0.Add(2*time.Minute)), st, t0.Add(2*time.Minute))
	assert.False(t, fired)

	// A real edge after expiry fires again.
	_, fired = ev.Evaluate(rule, eventAt("m", 0.5, t0.Add(3*time.Minute)), st, t0.Add(3*time.Minute))
	require.False(t, fired)
	_, fired = ev.Evaluate(rule, eventAt("m", 0.8, t0.Add(4*time.Minute)), st, t0.Add(4*time.Minute))
	assert.True(t, fired)
}

func TestEvaluate_OnceExhausts(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", MinProbability: fptr(0.7), Once: true, Severity: models.SeverityInfo}
	st := &state.RuleState{}

	fires := 0
	now := t0
	for _, p := range []float64{0.8, 0.5, 0.8, 0.5, 0.9} {
		if _, fired := ev.Evaluate(rule, eventAt("m", p, now), st, now); fired {
			fires++
		}
		now = now.Add(time.Minute)
	}
	assert.Equal(t, 1, fires)
	assert.True(t, st.HasFiredOnce)
}

func TestEvaluate_AndSemantics(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{
		ID: "rule-00", MarketID: "m",
		MinProbability: fptr(0.7),
		MinDelta:       fptr(0.1),
		Severity:       models.SeverityWarning,
	}

	// Probability satisfied, no delta: min_delta cannot hold.
	st := &state.RuleState{}
	_, fired := ev.Evaluate(rule, eventAt("m", 0.9, t0), st, t0)
	assert.False(t, fired)

	// Both satisfied.
	e := eventAt("m", 0.9, t0)
	e.Delta = fptr(0.15)
	st = &state.RuleState{}
	msg, fired := ev.Evaluate(rule, e, st, t0)
	require.True(t, fired)
	assert.Contains(t, msg.Reason, "probability 0.9000 >= min 0.7000")
	assert.Contains(t, msg.Reason, "delta 0.1500 >= min 0.1000")

	// Delta satisfied, probability not.
	e = eventAt("m", 0.5, t0)
	e.Delta = fptr(0.15)
	st = &state.RuleState{}
	_, fired = ev.Evaluate(rule, e, st, t0)
	assert.False(t, fired)
}

func TestEvaluate_MaxProbabilityWindow(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{
		ID: "rule-00", MarketID: "m",
		MinProbability: fptr(0.4),
		MaxProbability: fptr(0.6),
		Severity:       models.SeverityInfo,
	}

	for _, tt := range []struct {
		p    float64
		fire bool
	}{
		{0.39, false},
		{0.40, true},
		{0.60, true},
		{0.61, false},
	} {
		st := &state.RuleState{}
		_, fired := ev.Evaluate(rule, eventAt("m", tt.p, t0), st, t0)
		if fired != tt.fire {
			t.Errorf("p=%v fired=%v, want %v", tt.p, fired, tt.fire)
		}
	}
}

func TestEvaluate_NoThresholdsNeverFires(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", Severity: models.SeverityWarning}
	st := &state.RuleState{}
	_, fired := ev.Evaluate(rule, eventAt("m", 1.0, t0), st, t0)
	assert.False(t, fired)
}

func TestEvaluate_MarketMismatch(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "other", MinProbability: fptr(0.1), Severity: models.SeverityWarning}
	st := &state.RuleState{}
	_, fired := ev.Evaluate(rule, eventAt("m", 0.9, t0), st, t0)
	assert.False(t, fired)
	assert.False(t, st.PrevConditionTrue, "mismatched events must not touch state")
}

func TestEvaluate_AlertMessageFields(t *testing.T) {
	ev := testEvaluator()
	rule := models.AlertRule{ID: "rule-00", MarketID: "m", MinProbability: fptr(0.7), Severity: models.SeverityCritical}
	e := eventAt("m", 0.85, t0)
	e.Delta = fptr(0.2)

	msg, fired := ev.Evaluate(rule, e, &state.RuleState{}, t0)
	require.True(t, fired)
	assert.Equal(t, "m", msg.MarketID)
	assert.Equal(t, models.SeverityCritical, msg.Severity)
	assert.Equal(t, 0.85, msg.Probability)
	assert.Equal(t, t0, msg.Timestamp)
	assert.Equal(t, "Alert for market_id=m | severity=critical | probability=0.8500 | delta=0.2000 | reason: probability 0.8500 >= min 0.7000", msg.Message)
}
