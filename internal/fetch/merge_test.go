package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

type stubFetcher struct {
	name   string
	events []models.MarketEvent
	err    error
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context) ([]models.MarketEvent, error) {
	return s.events, s.err
}

func evt(id, source string, p float64) models.MarketEvent {
	return models.MarketEvent{
		MarketID:    id,
		Timestamp:   time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Probability: p,
		Source:      source,
	}
}

func TestMultiFeed_MergesAndSorts(t *testing.T) {
	pm := &stubFetcher{name: "polymarket", events: []models.MarketEvent{
		evt("zeta", "polymarket", 0.4),
		evt("alpha", "polymarket", 0.6),
	}}
	price := &stubFetcher{name: "coinbase", events: []models.MarketEvent{
		evt("mid", "coinbase", 0.9),
	}}

	feed := NewMultiFeed(pm, price, testLogger())
	events, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "alpha", events[0].MarketID)
	assert.Equal(t, "mid", events[1].MarketID)
	assert.Equal(t, "zeta", events[2].MarketID)
}

func TestMultiFeed_PriceOverridesOnCollision(t *testing.T) {
	pm := &stubFetcher{name: "polymarket", events: []models.MarketEvent{
		evt("btc_15m_up", "polymarket", 0.2),
	}}
	price := &stubFetcher{name: "coinbase", events: []models.MarketEvent{
		evt("btc_15m_up", "coinbase", 1.0),
	}}

	feed := NewMultiFeed(pm, price, testLogger())
	events, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "coinbase", events[0].Source)
	assert.Equal(t, 1.0, events[0].Probability)
}

func TestMultiFeed_ContinuesDegradedWhenOneSourceFails(t *testing.T) {
	pm := &stubFetcher{name: "polymarket", err: errors.New("boom")}
	price := &stubFetcher{name: "coinbase", events: []models.MarketEvent{
		evt("btc_15m_up", "coinbase", 1.0),
	}}

	feed := NewMultiFeed(pm, price, testLogger())
	events, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "btc_15m_up", events[0].MarketID)
}

func TestMultiFeed_FailsWhenBothSourcesEmpty(t *testing.T) {
	pm := &stubFetcher{name: "polymarket", err: errors.New("down")}
	price := &stubFetcher{name: "coinbase", err: errors.New("also down")}

	feed := NewMultiFeed(pm, price, testLogger())
	_, err := feed.Fetch(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "multi", ferr.Source)
}
