package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testClient(baseURL string) *httpclient.Client {
	return httpclient.New(baseURL, httpclient.Config{
		Timeout:        2 * time.Second,
		MaxAttempts:    1,
		BackoffInitial: time.Millisecond,
		BackoffMax:     time.Millisecond,
	}, testLogger())
}

func TestDevFeed_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		w.Write([]byte(`{"events": [
			{"id": "btc-up", "title": "BTC up", "ts": "2026-08-01T12:00:00Z", "p": 0.72},
			{"id": "eth-flip", "ts": "2026-08-01T12:00:00Z", "p": 0.30, "source": "sim"}
		]}`))
	}))
	defer srv.Close()

	feed := NewDevFeed(testClient(srv.URL), testLogger())
	events, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "btc-up", events[0].MarketID)
	assert.Equal(t, "BTC up", events[0].Title)
	assert.Equal(t, 0.72, events[0].Probability)
	assert.Equal(t, "dev", events[0].Source)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), events[0].Timestamp)
	assert.Nil(t, events[0].Delta)
	assert.NotEmpty(t, events[0].Raw)

	assert.Equal(t, "sim", events[1].Source)
}

func TestDevFeed_SkipsInvalidItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events": [
			{"id": "", "ts": "2026-08-01T12:00:00Z", "p": 0.5},
			{"id": "no-ts", "p": 0.5},
			{"id": "bad-ts", "ts": "yesterday", "p": 0.5},
			{"id": "bad-p", "ts": "2026-08-01T12:00:00Z", "p": "high"},
			{"id": "out-of-range", "ts": "2026-08-01T12:00:00Z", "p": 1.5},
			"not an object",
			{"id": "ok", "ts": "2026-08-01T12:00:00Z", "p": 0.9}
		]}`))
	}))
	defer srv.Close()

	feed := NewDevFeed(testClient(srv.URL), testLogger())
	events, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].MarketID)
}

func TestDevFeed_MissingEventsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	feed := NewDevFeed(testClient(srv.URL), testLogger())
	_, err := feed.Fetch(context.Background())
	require.Error(t, err)

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "dev", ferr.Source)
}

func TestDevFeed_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	feed := NewDevFeed(testClient(srv.URL), testLogger())
	_, err := feed.Fetch(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "dev", ferr.Source)

	var herr *httpclient.Error
	assert.ErrorAs(t, err, &herr)
}
