// Package application 编排行情刷新：直接源抓取、派生估算、涨跌计算、缓存与降级
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey = "refresh"
	hydrateKey = "hydrate"

	defaultBackgroundTimeout = 5 * time.Second
	defaultTTL               = 6 * time.Hour
)

// Options 可选依赖与参数
type Options struct {
	TTL time.Duration
	// 异步持久化、镜像、事件发布与历史加载的超时
	BackgroundTimeout time.Duration
	Currency          string
	// 为空时不镜像快照
	Mirror domain.SnapshotMirror
	// 为空时不发布快照事件
	Publisher domain.EventPublisher
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	NewID     func() string
}

// PriceService 贵金属行情应用服务。所有方法可并发调用。
type PriceService struct {
	source    domain.PriceSource
	estimator *domain.DerivedPriceEstimator
	deltas    domain.DeltaStore
	mirror    domain.SnapshotMirror
	publisher domain.EventPublisher
	cache     *domain.PriceCache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	ttl       time.Duration
	now       func() time.Time
	newID     func() string
	currency  string
	bgTimeout time.Duration

	group singleflight.Group

	mu         sync.Mutex
	previous   map[domain.Metal]decimal.Decimal
	hydrated   bool
	generation uint64

	// 串行化上一次价格的写入与清除
	saveMu sync.Mutex
	bg     sync.WaitGroup
}

// NewPriceService 创建行情服务
func NewPriceService(
	source domain.PriceSource,
	estimator *domain.DerivedPriceEstimator,
	deltas domain.DeltaStore,
	logger *slog.Logger,
	opts Options,
) *PriceService {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = defaultBackgroundTimeout
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if estimator == nil {
		estimator = domain.NewDerivedPriceEstimator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PriceService{
		source:    source,
		estimator: estimator,
		deltas:    deltas,
		mirror:    opts.Mirror,
		publisher: opts.Publisher,
		cache:     domain.NewPriceCache(opts.TTL),
		metrics:   opts.Metrics,
		logger:    logger,
		ttl:       opts.TTL,
		now:       opts.Clock,
		newID:     opts.NewID,
		currency:  opts.Currency,
		bgTimeout: opts.BackgroundTimeout,
		previous:  make(map[domain.Metal]decimal.Decimal),
	}
}

// GetLivePrices 返回当前快照，不返回错误。
// 缓存新鲜时直接返回；否则刷新，刷新失败时依次降级为过期快照、空快照。
func (s *PriceService) GetLivePrices(ctx context.Context) domain.Snapshot {
	s.hydrate(ctx)

	if !s.cache.IsStale(s.now()) {
		if snapshot, ok := s.cache.Get(); ok {
			s.metrics.RecordCacheHit()
			return snapshot
		}
	}

	// 刷新由所有并发调用方共享，不随单个调用方取消
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(domain.Snapshot).Clone()
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if snapshot, ok := s.cache.Get(); ok {
		s.logger.WarnContext(ctx, "refresh failed, serving cached snapshot",
			"assembled_at", snapshot.AssembledAt, "error", err)
		s.metrics.RecordFallback("stale")
		return snapshot
	}

	s.logger.WarnContext(ctx, "refresh failed and no snapshot cached", "error", err)
	s.metrics.RecordFallback("empty")
	return domain.Snapshot{}
}

// RefreshLivePrices 使缓存失效后重新获取
func (s *PriceService) RefreshLivePrices(ctx context.Context) domain.Snapshot {
	s.cache.Invalidate()
	return s.GetLivePrices(ctx)
}

// GetPrice 返回单个金属的记录，快照中没有该金属时返回 ErrPriceNotFound
func (s *PriceService) GetPrice(ctx context.Context, metal domain.Metal) (*domain.PriceRecord, error) {
	snapshot := s.GetLivePrices(ctx)
	record, ok := snapshot.Find(metal)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPriceNotFound, metal)
	}
	return &record, nil
}

// ResetHistory 清除上一次价格，之后每种金属的涨跌重新从 0 开始
func (s *PriceService) ResetHistory(ctx context.Context) error {
	s.mu.Lock()
	s.previous = make(map[domain.Metal]decimal.Decimal)
	s.hydrated = true
	s.generation++
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.deltas.Reset(ctx); err != nil {
		s.metrics.RecordPersistenceFailure("delta_store")
		return err
	}
	s.logger.InfoContext(ctx, "price history reset")
	return nil
}

// Wait 等待所有异步持久化任务结束
func (s *PriceService) Wait() {
	s.bg.Wait()
}

// StartWarmer 按固定间隔预热缓存，阻塞直到 ctx 结束。缓存仍新鲜时不会访问外部源。
func (s *PriceService) StartWarmer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "price warmer started", "interval", interval)
	s.GetLivePrices(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("price warmer stopped")
			return
		case <-ticker.C:
			s.GetLivePrices(ctx)
		}
	}
}

func (s *PriceService) hydrate(ctx context.Context) {
	s.mu.Lock()
	done := s.hydrated
	s.mu.Unlock()
	if done {
		return
	}

	_, _, _ = s.group.Do(hydrateKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.bgTimeout)
		defer cancel()

		prices, err := s.deltas.Load(loadCtx)
		if err != nil {
			// 下次调用时重试
			s.logger.WarnContext(ctx, "failed to load previous prices", "error", err)
			s.metrics.RecordPersistenceFailure("delta_store")
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.hydrated {
			s.previous = prices
			s.hydrated = true
		}
		return nil, nil
	})
}

func (s *PriceService) refresh(ctx context.Context) (domain.Snapshot, error) {
	// 等待期间其他调用方可能已经完成刷新
	if !s.cache.IsStale(s.now()) {
		if snapshot, ok := s.cache.Get(); ok {
			return snapshot, nil
		}
	}

	snapshot, gen, err := s.assemble(ctx)
	s.metrics.RecordRefresh(err == nil)
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.cache.Set(snapshot, snapshot.AssembledAt)
	s.logger.InfoContext(ctx, "price snapshot refreshed", "assembled_at", snapshot.AssembledAt)

	prices := snapshot.Prices()
	s.detach(ctx, "delta_store", func(ctx context.Context) error {
		return s.saveDeltas(ctx, gen, prices)
	})
	if s.mirror != nil {
		s.detach(ctx, "mirror", func(ctx context.Context) error {
			return s.mirror.Mirror(ctx, snapshot)
		})
	}
	if s.publisher != nil {
		event := domain.NewSnapshotRefreshedEvent(s.newID(), s.currency, snapshot)
		s.detach(ctx, "event", func(ctx context.Context) error {
			return s.publisher.PublishSnapshot(ctx, event)
		})
	}

	return snapshot.Clone(), nil
}

// assemble 抓取直接源、派生其余金属并与上一次价格比较，成功后推进上一次价格
func (s *PriceService) assemble(ctx context.Context) (domain.Snapshot, uint64, error) {
	prices, err := s.fetchDirect(ctx)
	if err != nil {
		return domain.Snapshot{}, 0, err
	}

	reference := prices[domain.ReferenceMetal]
	for _, m := range s.estimator.DerivedMetals() {
		derived, err := s.estimator.Derive(m, reference)
		if err != nil {
			return domain.Snapshot{}, 0, err
		}
		prices[m] = derived
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.PriceRecord, 0, len(domain.AllMetals))
	for _, m := range domain.AllMetals {
		records = append(records, domain.NewPriceRecord(m, prices[m], s.previous, now))
	}
	snapshot, err := domain.NewSnapshot(records, now)
	if err != nil {
		return domain.Snapshot{}, 0, err
	}

	s.previous = snapshot.Prices()
	s.hydrated = true
	s.generation++
	return snapshot, s.generation, nil
}

// fetchDirect 并发抓取所有直接源，任一失败则整体失败
func (s *PriceService) fetchDirect(ctx context.Context) (map[domain.Metal]decimal.Decimal, error) {
	results := make([]decimal.Decimal, len(domain.DirectMetals))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range domain.DirectMetals {
		i, m := i, m
		g.Go(func() error {
			price, err := s.source.FetchDirectPrice(gctx, m)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", m, err)
			}
			results[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make(map[domain.Metal]decimal.Decimal, len(domain.AllMetals))
	for i, m := range domain.DirectMetals {
		prices[m] = results[i]
	}
	return prices, nil
}

// saveDeltas 只写入最新一代价格，被更新的刷新或 ResetHistory 取代时跳过
func (s *PriceService) saveDeltas(ctx context.Context, gen uint64, prices map[domain.Metal]decimal.Decimal) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if current != gen {
		return nil
	}
	return s.deltas.Save(ctx, prices)
}

func (s *PriceService) detach(ctx context.Context, target string, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.bgTimeout)
		defer cancel()

		if err := fn(taskCtx); err != nil {
			s.logger.WarnContext(taskCtx, "background task failed", "target", target, "error", err)
			s.metrics.RecordPersistenceFailure(target)
		}
	}()
}
