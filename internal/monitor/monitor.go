// Package monitor runs the poll cycle: fetch events, evaluate rules against
// them, and hand fired alerts to the delivery channels.
package monitor

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/fetch"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/rules"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/state"
)

// Dispatcher delivers a fired alert to the webhook endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.AlertMessage) error
}

// Notifier is the optional secondary alert channel.
type Notifier interface {
	SendAlert(msg models.AlertMessage) error
}

// Monitor owns all mutable evaluation state. It is not safe for concurrent
// use; RunCycle must be called from a single goroutine.
type Monitor struct {
	fetcher    fetch.Fetcher
	rules      []models.AlertRule
	store      *state.Store
	eval       *rules.Evaluator
	dispatcher Dispatcher
	notifier   Notifier
	log        *logrus.Logger
	now        func() time.Time
}

func New(fetcher fetch.Fetcher, alertRules []models.AlertRule, store *state.Store, eval *rules.Evaluator, dispatcher Dispatcher, notifier Notifier, log *logrus.Logger) *Monitor {
	return &Monitor{
		fetcher:    fetcher,
		rules:      alertRules,
		store:      store,
		eval:       eval,
		dispatcher: dispatcher,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
}

// RunCycle performs one fetch-evaluate-alert pass. It returns an error only
// when the upstream fetch failed outright; per-event and per-delivery errors
// are logged and skipped so one bad item cannot stall the cycle.
func (m *Monitor) RunCycle(ctx context.Context) error {
	start := m.now()

	events, err := m.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	fired := 0
	skipped := 0
	for _, event := range events {
		if err := event.Validate(); err != nil {
			m.log.WithFields(logrus.Fields{
				"market_id": event.MarketID,
				"error":     err.Error(),
			}).Warn("skipping invalid event")
			skipped++
			continue
		}
		fired += m.processEvent(ctx, event)
	}

	m.log.WithFields(logrus.Fields{
		"source":   m.fetcher.Name(),
		"events":   len(events),
		"skipped":  skipped,
		"fired":    fired,
		"duration": m.now().Sub(start).String(),
	}).Info("cycle complete")

	return nil
}

// processEvent evaluates every rule bound to the event's market. The previous
// probability is read before evaluation and written after all rules have run,
// so each rule in the same cycle observes the same delta.
func (m *Monitor) processEvent(ctx context.Context, event models.MarketEvent) int {
	if event.Delta == nil {
		if prev, ok := m.store.PrevProbability(event.MarketID); ok {
			d := math.Abs(event.Probability - prev)
			event.Delta = &d
		}
	}

	fired := 0
	now := m.now()
	for _, rule := range m.rules {
		if rule.MarketID != event.MarketID {
			continue
		}
		st := m.store.RuleState(rule.ID, event.MarketID)
		msg, ok := m.eval.Evaluate(rule, event, st, now)
		if !ok {
			continue
		}
		fired++
		m.deliver(ctx, rule, msg)
	}

	m.store.SetPrevProbability(event.MarketID, event.Probability)
	return fired
}

func (m *Monitor) deliver(ctx context.Context, rule models.AlertRule, msg models.AlertMessage) {
	m.log.WithFields(logrus.Fields{
		"rule_id":     rule.ID,
		"market_id":   msg.MarketID,
		"severity":    string(msg.Severity),
		"probability": msg.Probability,
		"reason":      msg.Reason,
	}).Warn("alert fired")

	if m.dispatcher != nil {
		if err := m.dispatcher.Dispatch(ctx, msg); err != nil {
			m.log.WithFields(logrus.Fields{
				"rule_id":   rule.ID,
				"market_id": msg.MarketID,
				"error":     err.Error(),
			}).Error("webhook delivery failed")
		}
	}

	if m.notifier != nil {
		if err := m.notifier.SendAlert(msg); err != nil {
			m.log.WithFields(logrus.Fields{
				"rule_id":   rule.ID,
				"market_id": msg.MarketID,
				"error":     err.Error(),
			}).Warn("telegram notification failed")
		}
	}
}
