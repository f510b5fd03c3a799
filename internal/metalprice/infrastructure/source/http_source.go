// Package source 直接行情源：HTTP 抓取、价格解析、币种换算与熔断
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/pkg/metrics"
)

// Config HTTP 行情源配置
type Config struct {
	// URLs 每种直接金属对应的页面
	URLs map[domain.Metal]string
	// Timeout 单次请求超时
	Timeout time.Duration
	// ConversionRate 源币种到基础币种的换算系数
	ConversionRate decimal.Decimal
	// BreakerFailures 连续失败多少次后熔断，<=0 表示不启用
	BreakerFailures int
	// BreakerTimeout 熔断打开后多久进入半开
	BreakerTimeout time.Duration
	UserAgent      string
}

// HTTPSource 通过 HTTP GET 抓取页面并解析价格
type HTTPSource struct {
	client   *resty.Client
	urls     map[domain.Metal]string
	parser   domain.PriceParser
	rate     decimal.Decimal
	breakers map[domain.Metal]*gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHTTPSource 创建 HTTP 行情源
func NewHTTPSource(cfg Config, parser domain.PriceParser, m *metrics.Metrics, logger *slog.Logger) (*HTTPSource, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("at least one source url is required")
	}
	if !cfg.ConversionRate.IsPositive() {
		return nil, fmt.Errorf("conversion rate must be positive, got %s", cfg.ConversionRate)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("source timeout must be positive")
	}
	if parser == nil {
		parser = NewPatternParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "metalprice-feed/1.0"
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/json")

	s := &HTTPSource{
		client:  client,
		urls:    make(map[domain.Metal]string, len(cfg.URLs)),
		parser:  parser,
		rate:    cfg.ConversionRate,
		metrics: m,
		logger:  logger,
	}
	for metal, url := range cfg.URLs {
		s.urls[metal] = url
	}

	if cfg.BreakerFailures > 0 {
		s.breakers = make(map[domain.Metal]*gobreaker.CircuitBreaker, len(cfg.URLs))
		threshold := uint32(cfg.BreakerFailures)
		for metal := range cfg.URLs {
			s.breakers[metal] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        "metalprice-source-" + metal.String(),
				MaxRequests: 1,
				Timeout:     cfg.BreakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= threshold
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Warn("price source breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
				},
			})
		}
	}

	return s, nil
}

// FetchDirectPrice 实现 domain.PriceSource
func (s *HTTPSource) FetchDirectPrice(ctx context.Context, metal domain.Metal) (decimal.Decimal, error) {
	url, ok := s.urls[metal]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no direct source for %s", domain.ErrSourceUnavailable, metal)
	}

	start := time.Now()
	price, err := s.execute(ctx, metal, url)
	s.metrics.RecordFetch(metal.String(), err == nil, time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "direct price fetch failed", "metal", metal, "error", err)
		return decimal.Zero, err
	}
	return price, nil
}

func (s *HTTPSource) execute(ctx context.Context, metal domain.Metal, url string) (decimal.Decimal, error) {
	cb, ok := s.breakers[metal]
	if !ok {
		return s.fetch(ctx, metal, url)
	}

	v, err := cb.Execute(func() (any, error) {
		return s.fetch(ctx, metal, url)
	})
	if err != nil {
		if errors.Is(err, domain.ErrSourceUnavailable) {
			return decimal.Zero, err
		}
		// gobreaker.ErrOpenState / ErrTooManyRequests
		return decimal.Zero, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, metal, err)
	}
	return v.(decimal.Decimal), nil
}

func (s *HTTPSource) fetch(ctx context.Context, metal domain.Metal, url string) (decimal.Decimal, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, metal, err)
	}
	if !resp.IsSuccess() {
		return decimal.Zero, fmt.Errorf("%w: %s: unexpected status %d", domain.ErrSourceUnavailable, metal, resp.StatusCode())
	}

	raw, err := s.parser.Parse(resp.Body())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", metal, err)
	}
	return raw.Mul(s.rate).Round(2), nil
}
