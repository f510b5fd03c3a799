package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

func pageServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}
}

func newSource(t *testing.T, urls map[domain.Metal]string, timeout time.Duration, breakerFailures int) *HTTPSource {
	t.Helper()
	s, err := NewHTTPSource(Config{
		URLs:            urls,
		Timeout:         timeout,
		ConversionRate:  decimal.RequireFromString("1.25"),
		BreakerFailures: breakerFailures,
		BreakerTimeout:  time.Minute,
	}, NewPatternParser(), nil, nil)
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}
	return s
}

func TestFetchDirectPriceConvertsCurrency(t *testing.T) {
	gold, _ := pageServer(t, htmlPage(`<div>Gold spot <span>£1,600.00</span></div>`))
	silver, _ := pageServer(t, htmlPage(`<div>Silver spot <span>£20.00</span></div>`))
	s := newSource(t, map[domain.Metal]string{domain.Gold: gold.URL, domain.Silver: silver.URL}, time.Second, 0)

	got, err := s.FetchDirectPrice(context.Background(), domain.Gold)
	if err != nil || !got.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("gold = %s, %v", got, err)
	}
	got, err = s.FetchDirectPrice(context.Background(), domain.Silver)
	if err != nil || !got.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("silver = %s, %v", got, err)
	}
}

func TestFetchDirectPriceFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"not found", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"no price", htmlPage(`<html>maintenance</html>`)},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := pageServer(t, tt.handler)
			s := newSource(t, map[domain.Metal]string{domain.Gold: srv.URL}, 100*time.Millisecond, 0)

			_, err := s.FetchDirectPrice(context.Background(), domain.Gold)
			if !errors.Is(err, domain.ErrSourceUnavailable) {
				t.Fatalf("err = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}

func TestFetchDirectPriceUnknownMetal(t *testing.T) {
	srv, hits := pageServer(t, htmlPage(`£1.00`))
	s := newSource(t, map[domain.Metal]string{domain.Gold: srv.URL}, time.Second, 0)

	if _, err := s.FetchDirectPrice(context.Background(), domain.Platinum); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if hits.Load() != 0 {
		t.Fatal("no request expected for a metal without a source")
	}
}

func TestBreakerStopsHammeringDeadSource(t *testing.T) {
	srv, hits := pageServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	s := newSource(t, map[domain.Metal]string{domain.Gold: srv.URL}, time.Second, 2)

	for i := 0; i < 5; i++ {
		if _, err := s.FetchDirectPrice(context.Background(), domain.Gold); !errors.Is(err, domain.ErrSourceUnavailable) {
			t.Fatalf("call %d: err = %v, want ErrSourceUnavailable", i, err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("upstream hits = %d, want 2 before the breaker opens", got)
	}
}

func TestNewHTTPSourceValidation(t *testing.T) {
	parser := NewPatternParser()
	urls := map[domain.Metal]string{domain.Gold: "http://x"}
	rate := decimal.RequireFromString("1.25")

	if _, err := NewHTTPSource(Config{Timeout: time.Second, ConversionRate: rate}, parser, nil, nil); err == nil {
		t.Error("expected error without urls")
	}
	if _, err := NewHTTPSource(Config{URLs: urls, Timeout: time.Second}, parser, nil, nil); err == nil {
		t.Error("expected error for zero conversion rate")
	}
	if _, err := NewHTTPSource(Config{URLs: urls, ConversionRate: rate}, parser, nil, nil); err == nil {
		t.Error("expected error for zero timeout")
	}
}
