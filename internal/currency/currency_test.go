package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchFromPrimary(t *testing.T) {
	fiat := httptest.NewServer(jsonHandler(`{"rates":{"USD":0.0108,"EUR":0.0100,"CNY":0.0769}}`))
	defer fiat.Close()
	crypto := httptest.NewServer(jsonHandler(`{"bitcoin":{"usd":64000,"rub":5920000}}`))
	defer crypto.Close()

	f := NewFetcherWithURLs(fiat.URL, "http://127.0.0.1:1/unused", crypto.URL)
	rates, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 92.59, rates.USDRUB, 0.01)
	assert.InDelta(t, 100.0, rates.EURRUB, 0.01)
	assert.InDelta(t, 13.0, rates.CNYRUB, 0.01)
	assert.InDelta(t, 0.0108, rates.RUBUSD, 0.0001)
	assert.Equal(t, 64000.0, rates.BTCUSD)
	assert.Equal(t, 5920000.0, rates.BTCRUB)
	assert.False(t, rates.FetchedAt.IsZero())
}

func TestFetchFallsBackToCBR(t *testing.T) {
	fiat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer fiat.Close()
	fallback := httptest.NewServer(jsonHandler(`{"Valute":{
		"USD":{"Value":92.50,"Nominal":1},
		"EUR":{"Value":100.10,"Nominal":1},
		"CNY":{"Value":127.30,"Nominal":10}}}`))
	defer fallback.Close()
	crypto := httptest.NewServer(jsonHandler(`{"bitcoin":{"usd":64000,"rub":5920000}}`))
	defer crypto.Close()

	f := NewFetcherWithURLs(fiat.URL, fallback.URL, crypto.URL)
	rates, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 92.50, rates.USDRUB, 0.001)
	assert.InDelta(t, 100.10, rates.EURRUB, 0.001)
	// Nominal 10 means the quote covers ten yuan.
	assert.InDelta(t, 12.73, rates.CNYRUB, 0.001)
	assert.InDelta(t, 1/92.50, rates.RUBUSD, 0.0001)
}

func TestFetchFailsWhenAllFiatProvidersDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	crypto := httptest.NewServer(jsonHandler(`{"bitcoin":{"usd":64000,"rub":5920000}}`))
	defer crypto.Close()

	f := NewFetcherWithURLs(down.URL, down.URL, crypto.URL)
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fiat rates unavailable")
}

func TestFetchFailsOnIncompleteBitcoin(t *testing.T) {
	fiat := httptest.NewServer(jsonHandler(`{"rates":{"USD":0.0108,"EUR":0.0100,"CNY":0.0769}}`))
	defer fiat.Close()
	crypto := httptest.NewServer(jsonHandler(`{"bitcoin":{"usd":0,"rub":0}}`))
	defer crypto.Close()

	f := NewFetcherWithURLs(fiat.URL, "http://127.0.0.1:1/unused", crypto.URL)
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitcoin rates unavailable")
}
