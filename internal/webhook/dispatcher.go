// Package webhook builds versioned alert payloads and delivers them with
// retry and idempotency so receivers can discard duplicate deliveries.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/logger"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// SchemaVersion is incremented only for breaking payload changes. Adding
// optional fields does not bump it; receivers must ignore unknown fields.
const SchemaVersion = 1

// Payload is the versioned webhook body.
type Payload struct {
	SchemaVersion int    `json:"schema_version"`
	Content       string `json:"content"`
	RunID         string `json:"run_id,omitempty"`
	Alert         Alert  `json:"alert"`
}

// Alert is the structured alert section of the payload.
type Alert struct {
	MarketID    string          `json:"market_id"`
	Severity    models.Severity `json:"severity"`
	Probability float64         `json:"probability"`
	Delta       *float64        `json:"delta,omitempty"`
	Reason      string          `json:"reason"`
}

// DeliveryError reports that every delivery attempt for one alert failed.
// The monitor logs it and moves on; a webhook outage never halts monitoring.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher delivers alerts to a single webhook URL through the retrying
// HTTP client.
type Dispatcher struct {
	client *httpclient.Client
	url    string
	runID  string
	log    *logrus.Logger
}

// New creates a dispatcher. runID tags every payload and idempotency key of
// this process so receivers can correlate deliveries across retries.
func New(client *httpclient.Client, url, runID string, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{client: client, url: url, runID: runID, log: log}
}

// IdempotencyKey derives a deterministic key from the alert identity.
// Identical (market id, timestamp, reason) always produce the identical key,
// so retried deliveries are recognizable as duplicates downstream.
func IdempotencyKey(runID, marketID string, ts time.Time, reason string) string {
	sum := sha256.Sum256([]byte(marketID + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + reason))
	digest := hex.EncodeToString(sum[:])[:32]
	if runID == "" {
		return digest
	}
	return runID + ":" + digest
}

// Dispatch posts one alert. The retry and backoff policy is the HTTP
// client's; exhausted retries surface as a *DeliveryError.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.AlertMessage) error {
	payload := Payload{
		SchemaVersion: SchemaVersion,
		Content:       msg.Message,
		RunID:         d.runID,
		Alert: Alert{
			MarketID:    msg.MarketID,
			Severity:    msg.Severity,
			Probability: msg.Probability,
			Delta:       msg.Delta,
			Reason:      msg.Reason,
		},
	}

	headers := map[string]string{
		"Idempotency-Key": IdempotencyKey(d.runID, msg.MarketID, msg.Timestamp, msg.Reason),
		"User-Agent":      "crypto-predict-monitor/1",
	}

	safeURL := logger.RedactURL(d.url)
	d.log.WithFields(logrus.Fields{
		"url":       safeURL,
		"market_id": msg.MarketID,
		"severity":  msg.Severity,
	}).Info("webhook dispatch")

	if err := d.client.PostJSON(ctx, d.url, payload, headers); err != nil {
		return &DeliveryError{Err: err}
	}

	d.log.WithFields(logrus.Fields{
		"url":       safeURL,
		"market_id": msg.MarketID,
	}).Info("webhook delivered")
	return nil
}
