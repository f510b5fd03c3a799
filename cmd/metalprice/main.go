package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/application"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/messaging"
	"github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/persistence/memory"
	"github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/persistence/mysql"
	persistence_redis "github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/persistence/redis"
	"github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/source"
	httpserver "github.com/wyfcoding/metalprice/internal/metalprice/interfaces/http"
	"github.com/wyfcoding/metalprice/pkg/cache"
	"github.com/wyfcoding/metalprice/pkg/config"
	"github.com/wyfcoding/metalprice/pkg/db"
	"github.com/wyfcoding/metalprice/pkg/logger"
	"github.com/wyfcoding/metalprice/pkg/metrics"
	"github.com/wyfcoding/metalprice/pkg/middleware"
	"github.com/wyfcoding/metalprice/pkg/mq"
	"github.com/wyfcoding/metalprice/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/metalprice/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	log, err := logger.Init(logger.Config{
		Service:    cfg.ServiceName,
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. Metrics
	metricsImpl := metrics.New(cfg.ServiceName)
	if err := metricsImpl.Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path, prometheus.DefaultGatherer)
	}

	// 4. Redis（上一次价格与限流）
	var redisCache *cache.RedisCache
	if cfg.Feed.DeltaStore == "redis" || cfg.RateLimit.Enabled {
		redisCache, err = cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	}

	var deltas domain.DeltaStore
	if cfg.Feed.DeltaStore == "redis" {
		deltas = persistence_redis.NewDeltaStore(redisCache, cfg.Feed.DeltaStoreKey)
	} else {
		log.Warn("using in-memory previous prices, history will not survive restarts")
		deltas = memory.NewDeltaStore()
	}

	opts := application.Options{
		TTL:               cfg.Feed.TTL,
		BackgroundTimeout: cfg.Feed.BackgroundTimeout,
		Currency:          cfg.Feed.BaseCurrency,
		Metrics:           metricsImpl,
	}

	// 5. Database 镜像（可选）
	if cfg.Database.DSN != "" {
		database, err := db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		mirror := mysql.NewMirrorRepository(database.DB, cfg.Feed.BaseCurrency)
		if cfg.Database.AutoMigrate {
			if err := mirror.AutoMigrate(); err != nil {
				log.Error("failed to migrate database", "error", err)
			}
		}
		opts.Mirror = mirror
	}

	// 6. Kafka 快照事件（可选）
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		opts.Publisher = messaging.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	}

	// 7. Source & Application
	priceSource, err := newPriceSource(cfg.Feed, metricsImpl, log)
	if err != nil {
		log.Error("failed to build price source", "error", err)
		os.Exit(1)
	}
	estimator, err := newEstimator(cfg.Feed.Ratios)
	if err != nil {
		log.Error("invalid derivation ratios", "error", err)
		os.Exit(1)
	}
	service := application.NewPriceService(priceSource, estimator, deltas, log, opts)

	// 8. Interfaces
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware(), middleware.GinLoggingMiddleware(), middleware.GinMetricsMiddleware(metricsImpl))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})

	var guards []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		limit := ratelimit.NewLimit(cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.Period)
		guards = append(guards, middleware.RateLimitMiddleware(limiter, "metal_refresh", limit))
	}
	httpserver.NewPriceHandler(service, guards...).RegisterRoutes(r.Group("/api"))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. Start
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		service.StartWarmer(ctx, cfg.Feed.WarmInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
	}
	// 等待异步持久化与事件发布完成后再关闭连接
	service.Wait()
	log.Info("metalprice stopped")
}

func newPriceSource(cfg config.FeedConfig, m *metrics.Metrics, log *slog.Logger) (*source.HTTPSource, error) {
	urls := make(map[domain.Metal]string, len(cfg.Sources))
	for name, url := range cfg.Sources {
		metal, err := domain.ParseMetal(name)
		if err != nil {
			return nil, err
		}
		if !metal.IsDirect() {
			return nil, fmt.Errorf("%s has no direct source, its price is derived", metal)
		}
		urls[metal] = url
	}

	var parser domain.PriceParser = source.NewPatternParser()
	if cfg.Parser == "json" {
		parser = source.NewJSONFieldParser(cfg.JSONField)
	}

	return source.NewHTTPSource(source.Config{
		URLs:            urls,
		Timeout:         cfg.FetchTimeout,
		ConversionRate:  decimal.NewFromFloat(cfg.ConversionRate),
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, parser, m, log)
}

func newEstimator(ratios map[string]float64) (*domain.DerivedPriceEstimator, error) {
	if len(ratios) == 0 {
		return domain.NewDerivedPriceEstimator(nil), nil
	}
	parsed := make(map[domain.Metal]decimal.Decimal, len(ratios))
	for name, ratio := range ratios {
		metal, err := domain.ParseMetal(name)
		if err != nil {
			return nil, err
		}
		parsed[metal] = decimal.NewFromFloat(ratio)
	}
	if err := domain.ValidateRatios(parsed); err != nil {
		return nil, err
	}
	return domain.NewDerivedPriceEstimator(parsed), nil
}
