package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// DevFeed reads raw event objects from a local development feed's /events
// endpoint and normalizes them 1:1 into MarketEvents.
type DevFeed struct {
	client *httpclient.Client
	log    *logrus.Logger
}

// NewDevFeed creates a dev-feed fetcher on a client bound to the feed's base
// URL.
func NewDevFeed(client *httpclient.Client, log *logrus.Logger) *DevFeed {
	return &DevFeed{client: client, log: log}
}

// Name implements Fetcher.
func (f *DevFeed) Name() string { return "dev" }

// Fetch implements Fetcher.
func (f *DevFeed) Fetch(ctx context.Context) ([]models.MarketEvent, error) {
	payload, err := f.client.GetJSON(ctx, "/events")
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Err: err}
	}

	rawEvents, ok := payload["events"].([]any)
	if !ok {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("response missing events list")}
	}

	out := make([]models.MarketEvent, 0, len(rawEvents))
	for i, raw := range rawEvents {
		item, ok := raw.(map[string]any)
		if !ok {
			f.log.WithFields(logrus.Fields{"source": f.Name(), "index": i}).
				Warn("skipping non-object event")
			continue
		}
		evt, err := f.normalize(item)
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"source": f.Name(),
				"index":  i,
				"error":  err.Error(),
			}).Warn("skipping invalid event")
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

func (f *DevFeed) normalize(item map[string]any) (models.MarketEvent, error) {
	marketID, _ := item["id"].(string)
	if strings.TrimSpace(marketID) == "" {
		return models.MarketEvent{}, errors.New("id must be a non-empty string")
	}

	tsRaw, _ := item["ts"].(string)
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tsRaw))
	if err != nil {
		return models.MarketEvent{}, errors.New("ts must be an RFC 3339 timestamp")
	}

	p, ok := item["p"].(float64)
	if !ok {
		return models.MarketEvent{}, errors.New("p must be a number")
	}

	title, _ := item["title"].(string)
	source, _ := item["source"].(string)
	if source == "" {
		source = f.Name()
	}

	raw, _ := json.Marshal(item)
	evt := models.MarketEvent{
		MarketID:    strings.TrimSpace(marketID),
		Title:       strings.TrimSpace(title),
		Timestamp:   ts,
		Probability: p,
		Source:      source,
		Raw:         raw,
	}
	if err := evt.Validate(); err != nil {
		return models.MarketEvent{}, err
	}
	return evt, nil
}
