// Package fetch implements the upstream market-event adapters (dev feed,
// Polymarket CLOB prices, Coinbase candles) and the combined-mode merge.
package fetch

import (
	"context"
	"fmt"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// Fetcher is an upstream adapter producing the canonical events for one poll
// cycle.
type Fetcher interface {
	// Name identifies the upstream for logging and error scoping.
	Name() string
	// Fetch returns the events observed this cycle. Individual malformed
	// items are logged and skipped; only a total source failure is returned
	// as an error.
	Fetch(ctx context.Context) ([]models.MarketEvent, error)
}

// FetchError scopes an upstream failure to its source. A failure in one
// fetcher never aborts the others.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
