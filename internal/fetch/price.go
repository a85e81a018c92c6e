package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// candle is one [time, low, high, open, close, volume] tuple from the
// exchange candles endpoint.
type candle struct {
	ts    float64
	close decimal.Decimal
}

// PriceFeed turns recent spot-price candles into a pair of directional
// pseudo-markets: {base}_{interval}m_up and {base}_{interval}m_down. The up
// market carries probability 1 when the last close moved up against the prior
// candle, 0 otherwise; the down market carries the complement. Both carry the
// signed move's magnitude as their delta.
type PriceFeed struct {
	client          *httpclient.Client
	symbol          string
	intervalMinutes int
	log             *logrus.Logger
}

// NewPriceFeed creates a candle fetcher on a client bound to the exchange API
// base URL. symbol is an exchange product id such as "BTC-USD".
func NewPriceFeed(client *httpclient.Client, symbol string, intervalMinutes int, log *logrus.Logger) *PriceFeed {
	return &PriceFeed{
		client:          client,
		symbol:          symbol,
		intervalMinutes: intervalMinutes,
		log:             log,
	}
}

// Name implements Fetcher.
func (f *PriceFeed) Name() string { return "coinbase" }

// Fetch implements Fetcher.
func (f *PriceFeed) Fetch(ctx context.Context) ([]models.MarketEvent, error) {
	granularity := f.intervalMinutes * 60
	path := fmt.Sprintf("/products/%s/candles?granularity=%d", f.symbol, granularity)

	raw, err := f.client.GetJSONAny(ctx, path)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Err: err}
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("candles response is not a list")}
	}

	candles := f.parseCandles(list)
	if len(candles) < 2 {
		return nil, &FetchError{
			Source: f.Name(),
			Err:    fmt.Errorf("need at least 2 valid candles, got %d", len(candles)),
		}
	}

	// Source order is not guaranteed; sort ascending by time and compare the
	// two most recent closes.
	sort.Slice(candles, func(i, j int) bool { return candles[i].ts < candles[j].ts })
	prior := candles[len(candles)-2]
	latest := candles[len(candles)-1]

	if prior.close.IsZero() {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("prior close is zero, cannot compute delta")}
	}

	deltaPct, _ := latest.close.Sub(prior.close).Div(prior.close).Float64()
	magnitude := math.Abs(deltaPct)
	ts := time.Unix(int64(latest.ts), 0).UTC()

	upProb := 0.0
	if deltaPct > 0 {
		upProb = 1.0
	}

	base := strings.ToLower(f.symbol)
	if i := strings.IndexByte(base, '-'); i > 0 {
		base = base[:i]
	}

	upDelta, downDelta := magnitude, magnitude
	return []models.MarketEvent{
		{
			MarketID:    fmt.Sprintf("%s_%dm_up", base, f.intervalMinutes),
			Title:       fmt.Sprintf("%s %dm up", f.symbol, f.intervalMinutes),
			Timestamp:   ts,
			Probability: upProb,
			Delta:       &upDelta,
			Source:      f.Name(),
		},
		{
			MarketID:    fmt.Sprintf("%s_%dm_down", base, f.intervalMinutes),
			Title:       fmt.Sprintf("%s %dm down", f.symbol, f.intervalMinutes),
			Timestamp:   ts,
			Probability: 1.0 - upProb,
			Delta:       &downDelta,
			Source:      f.Name(),
		},
	}, nil
}

func (f *PriceFeed) parseCandles(list []any) []candle {
	out := make([]candle, 0, len(list))
	for i, raw := range list {
		tuple, ok := raw.([]any)
		if !ok || len(tuple) < 6 {
			f.log.WithFields(logrus.Fields{"source": f.Name(), "index": i}).
				Debug("skipping malformed candle")
			continue
		}
		ts, tsOK := tuple[0].(float64)
		closeVal, closeOK := tuple[4].(float64)
		if !tsOK || !closeOK {
			f.log.WithFields(logrus.Fields{"source": f.Name(), "index": i}).
				Debug("skipping candle with non-numeric fields")
			continue
		}
		out = append(out, candle{ts: ts, close: decimal.NewFromFloat(closeVal)})
	}
	return out
}
