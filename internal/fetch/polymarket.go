package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// PolymarketFeed reads the current CLOB sell-side price for each configured
// market and normalizes it into one MarketEvent per market. Per-market
// failures are logged and skipped so one bad token id cannot poison the rest
// of the cycle.
type PolymarketFeed struct {
	client *httpclient.Client
	// markets maps market id -> CLOB token id.
	markets map[string]string
	log     *logrus.Logger
	// now is swapped in tests.
	now func() time.Time
}

// NewPolymarketFeed creates a CLOB price fetcher on a client bound to the
// CLOB API base URL.
func NewPolymarketFeed(client *httpclient.Client, markets map[string]string, log *logrus.Logger) *PolymarketFeed {
	return &PolymarketFeed{client: client, markets: markets, log: log, now: time.Now}
}

// Name implements Fetcher.
func (f *PolymarketFeed) Name() string { return "polymarket" }

// Fetch implements Fetcher.
func (f *PolymarketFeed) Fetch(ctx context.Context) ([]models.MarketEvent, error) {
	ids := make([]string, 0, len(f.markets))
	for id := range f.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.MarketEvent, 0, len(ids))
	for _, marketID := range ids {
		tokenID := strings.TrimSpace(f.markets[marketID])
		if tokenID == "" {
			f.log.WithFields(logrus.Fields{"source": f.Name(), "market_id": marketID}).
				Warn("skipping market with empty token id")
			continue
		}

		path := fmt.Sprintf("/price?token_id=%s&side=SELL", url.QueryEscape(tokenID))
		resp, err := f.client.GetJSON(ctx, path)
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"source":    f.Name(),
				"market_id": marketID,
				"error":     err.Error(),
			}).Warn("price fetch failed, skipping market")
			continue
		}

		p, err := parsePrice(resp["price"])
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"source":    f.Name(),
				"market_id": marketID,
				"error":     err.Error(),
			}).Warn("invalid price in response, skipping market")
			continue
		}

		raw, _ := json.Marshal(resp)
		out = append(out, models.MarketEvent{
			MarketID:    marketID,
			Timestamp:   f.now().UTC(),
			Probability: p,
			Source:      f.Name(),
			Raw:         raw,
		})
	}
	return out, nil
}

// parsePrice accepts the CLOB price field, which arrives as a decimal string
// ("0.42") but is tolerated as a bare number.
func parsePrice(v any) (float64, error) {
	var p float64
	switch val := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("price %q is not a number", val)
		}
		p = parsed
	case float64:
		p = val
	case nil:
		return 0, fmt.Errorf("price field missing")
	default:
		return 0, fmt.Errorf("price field has unexpected type %T", v)
	}
	if p < 0.0 || p > 1.0 {
		return 0, fmt.Errorf("price %v out of range [0, 1]", p)
	}
	return p, nil
}
