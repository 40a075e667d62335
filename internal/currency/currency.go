// Package currency fetches fiat and bitcoin exchange rates for the
// daily service posts.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vestnik/internal/logger"
	"vestnik/internal/retry"
)

const (
	defaultFiatURL         = "https://api.exchangerate.host/latest"
	defaultFiatFallbackURL = "https://www.cbr-xml-daily.ru/daily_json.js"
	defaultCryptoURL       = "https://api.coingecko.com/api/v3/simple/price"

	fetchTimeout = 10 * time.Second
)

// Rates holds a full set of exchange rates for one service post.
// Fiat values are rubles per unit, RUBUSD is dollars per ruble.
type Rates struct {
	USDRUB    float64
	EURRUB    float64
	CNYRUB    float64
	RUBUSD    float64
	BTCUSD    float64
	BTCRUB    float64
	FetchedAt time.Time
}

type Fetcher struct {
	client          *http.Client
	fiatURL         string
	fiatFallbackURL string
	cryptoURL       string
	retryCfg        retry.RetryConfig
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:          &http.Client{Timeout: fetchTimeout},
		fiatURL:         defaultFiatURL,
		fiatFallbackURL: defaultFiatFallbackURL,
		cryptoURL:       defaultCryptoURL,
		retryCfg:        retry.RetryConfig{MaxAttempts: 2, Delay: time.Second},
	}
}

// NewFetcherWithURLs overrides the provider endpoints. Used in tests.
func NewFetcherWithURLs(fiatURL, fiatFallbackURL, cryptoURL string) *Fetcher {
	f := NewFetcher()
	f.fiatURL = fiatURL
	f.fiatFallbackURL = fiatFallbackURL
	f.cryptoURL = cryptoURL
	f.retryCfg = retry.RetryConfig{MaxAttempts: 1, Delay: 0}
	return f
}

// Fetch gathers fiat and bitcoin rates. Fiat rates come from the primary
// provider and fall back to the CBR daily feed when it is unavailable.
func (f *Fetcher) Fetch(ctx context.Context) (*Rates, error) {
	rates := &Rates{FetchedAt: time.Now()}

	if err := f.fetchFiat(ctx, rates); err != nil {
		logger.Warn("primary fiat provider failed, trying fallback", "error", err)
		if fbErr := f.fetchFiatFallback(ctx, rates); fbErr != nil {
			return nil, fmt.Errorf("fiat rates unavailable: %w", fbErr)
		}
	}
	if err := f.fetchCrypto(ctx, rates); err != nil {
		return nil, fmt.Errorf("bitcoin rates unavailable: %w", err)
	}
	return rates, nil
}

func (f *Fetcher) fetchFiat(ctx context.Context, rates *Rates) error {
	params := url.Values{}
	params.Set("base", "RUB")
	params.Set("symbols", "USD,EUR,CNY")

	var parsed struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := f.getJSON(ctx, f.fiatURL+"?"+params.Encode(), &parsed); err != nil {
		return err
	}

	// The provider quotes units per ruble; posts show rubles per unit.
	usd := parsed.Rates["USD"]
	eur := parsed.Rates["EUR"]
	cny := parsed.Rates["CNY"]
	if usd <= 0 || eur <= 0 || cny <= 0 {
		return fmt.Errorf("incomplete fiat response: %v", parsed.Rates)
	}

	rates.USDRUB = 1 / usd
	rates.EURRUB = 1 / eur
	rates.CNYRUB = 1 / cny
	rates.RUBUSD = usd
	return nil
}

func (f *Fetcher) fetchFiatFallback(ctx context.Context, rates *Rates) error {
	var parsed struct {
		Valute map[string]struct {
			Value   float64 `json:"Value"`
			Nominal float64 `json:"Nominal"`
		} `json:"Valute"`
	}
	if err := f.getJSON(ctx, f.fiatFallbackURL, &parsed); err != nil {
		return err
	}

	perUnit := func(code string) float64 {
		v, ok := parsed.Valute[code]
		if !ok || v.Value <= 0 {
			return 0
		}
		nominal := v.Nominal
		if nominal <= 0 {
			nominal = 1
		}
		return v.Value / nominal
	}

	usd := perUnit("USD")
	eur := perUnit("EUR")
	cny := perUnit("CNY")
	if usd <= 0 || eur <= 0 || cny <= 0 {
		return fmt.Errorf("incomplete fallback response")
	}

	rates.USDRUB = usd
	rates.EURRUB = eur
	rates.CNYRUB = cny
	rates.RUBUSD = 1 / usd
	return nil
}

func (f *Fetcher) fetchCrypto(ctx context.Context, rates *Rates) error {
	params := url.Values{}
	params.Set("ids", "bitcoin")
	params.Set("vs_currencies", "usd,rub")

	var parsed struct {
		Bitcoin struct {
			USD float64 `json:"usd"`
			RUB float64 `json:"rub"`
		} `json:"bitcoin"`
	}
	if err := f.getJSON(ctx, f.cryptoURL+"?"+params.Encode(), &parsed); err != nil {
		return err
	}
	if parsed.Bitcoin.USD <= 0 || parsed.Bitcoin.RUB <= 0 {
		return fmt.Errorf("incomplete bitcoin response")
	}

	rates.BTCUSD = parsed.Bitcoin.USD
	rates.BTCRUB = parsed.Bitcoin.RUB
	return nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	return retry.WithRetry(ctx, f.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}
