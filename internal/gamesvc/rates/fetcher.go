package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Fetcher pulls the latest euro rates from a fixer.io style endpoint.
type Fetcher struct {
	url  string
	http *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{url: url, http: &http.Client{Timeout: timeout}}
}

func (f *Fetcher) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch exchange rates: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode exchange rates: %w", err)
	}
	return body.Rates, nil
}

type Store interface {
	Upsert(ctx context.Context, rates map[string]decimal.Decimal) error
}

type RateFetcher interface {
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Refresher keeps the stored rates current.
type Refresher struct {
	fetcher  RateFetcher
	store    Store
	interval time.Duration
}

func NewRefresher(f RateFetcher, s Store, interval time.Duration) *Refresher {
	return &Refresher{fetcher: f, store: s, interval: interval}
}

func (r *Refresher) RefreshOnce(ctx context.Context) error {
	rates, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := r.store.Upsert(ctx, rates); err != nil {
		return err
	}
	log.WithField("currencies", len(rates)).Info("exchange rates refreshed")
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done. A
// failed refresh keeps the previous rates.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if err := r.RefreshOnce(ctx); err != nil {
			log.Warnf("exchange rate refresh failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
