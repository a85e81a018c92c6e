package fetch

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// MultiFeed runs the prediction-market and spot-price fetchers and merges
// their outputs by market id. When both sources produce an event for the same
// id, the spot-price event wins; the precedence is fixed so combined mode
// stays deterministic regardless of which source is stale. Either source may
// fail alone without aborting the cycle.
type MultiFeed struct {
	polymarket Fetcher
	price      Fetcher
	log        *logrus.Logger
}

// NewMultiFeed wires combined mode from the two underlying fetchers.
func NewMultiFeed(polymarket, price Fetcher, log *logrus.Logger) *MultiFeed {
	return &MultiFeed{polymarket: polymarket, price: price, log: log}
}

// Name implements Fetcher.
func (f *MultiFeed) Name() string { return "multi" }

// Fetch implements Fetcher.
func (f *MultiFeed) Fetch(ctx context.Context) ([]models.MarketEvent, error) {
	pmEvents := f.fetchOne(ctx, f.polymarket)
	priceEvents := f.fetchOne(ctx, f.price)

	if len(pmEvents) == 0 && len(priceEvents) == 0 {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("all upstreams failed or returned no events")}
	}

	merged := make(map[string]models.MarketEvent, len(pmEvents)+len(priceEvents))
	for _, evt := range pmEvents {
		merged[evt.MarketID] = evt
	}
	for _, evt := range priceEvents {
		merged[evt.MarketID] = evt
	}

	out := make([]models.MarketEvent, 0, len(merged))
	for _, evt := range merged {
		out = append(out, evt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out, nil
}

func (f *MultiFeed) fetchOne(ctx context.Context, fetcher Fetcher) []models.MarketEvent {
	events, err := fetcher.Fetch(ctx)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"source": fetcher.Name(),
			"error":  err.Error(),
		}).Warn("upstream failed in combined mode, continuing degraded")
		return nil
	}
	return events
}
