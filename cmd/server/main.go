// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"couponhub/internal/config"
	"couponhub/internal/coupon/events"
	couponrepository "couponhub/internal/coupon/repository"
	couponservice "couponhub/internal/coupon/service"
	couponhttp "couponhub/internal/coupon/transport/http"
	linkcache "couponhub/internal/link/cache"
	linkrepository "couponhub/internal/link/repository"
	linkservice "couponhub/internal/link/service"
	linkhttp "couponhub/internal/link/transport/http"
	"couponhub/internal/metrics"
	userrepository "couponhub/internal/user/repository"
	userservice "couponhub/internal/user/service"
	userhttp "couponhub/internal/user/transport/http"
	"couponhub/pkg/db"
	"couponhub/pkg/logger"
	"couponhub/pkg/middleware"
	"couponhub/pkg/snowflake"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	logger.New(cfg.LogLevel)
	log.Info().Msg("CouponHub API starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	database, err := db.Connect(cfg.DatabaseURL, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info().Msg("connected to PostgreSQL")

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}

	metrics.InitMetrics()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	rdb, err := linkcache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info().Msg("link cache enabled")
	}

	var publisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaIssuanceTopic))
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		}()
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaIssuanceTopic).Msg("issuance events enabled")
	}

	ids, err := snowflake.New(cfg.SnowflakeDatacenterID, cfg.SnowflakeMachineID)
	if err != nil {
		return err
	}

	proxies, err := middleware.ParseCIDRs(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, middleware.WithTrustedProxies(proxies))
	limiter.StartJanitor(ctx)

	router := newRouter(cfg, database, rdb, publisher, ids, limiter)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(
	cfg *config.Config,
	database *sql.DB,
	rdb *redis.Client,
	publisher *events.KafkaPublisher,
	ids *snowflake.Generator,
	limiter *middleware.RateLimiter,
) chi.Router {
	// --- ИНИЦИАЛИЗАЦИЯ СЛОЁВ ---
	userRepo := userrepository.NewPostgresUserRepository(database)
	userService := userservice.NewUserService(userRepo)

	couponRepo := couponrepository.NewPostgresCouponRepository(database)
	issuanceRepo := couponrepository.NewPostgresIssuanceRepository(database)
	issuerOpts := []couponservice.IssuerOption{}
	if publisher != nil {
		issuerOpts = append(issuerOpts, couponservice.WithEventPublisher(publisher))
	}
	issuer := couponservice.NewIssuer(userRepo, couponRepo, issuanceRepo, couponservice.NewSQLTxRunner(database), issuerOpts...)
	couponService := couponservice.NewService(userRepo, couponRepo, issuanceRepo, issuer)

	linkService := linkservice.NewService(
		linkrepository.NewPostgresLinkRepository(database),
		linkrepository.NewPostgresClickRepository(database),
		userRepo,
		linkservice.NewCodeGenerator(ids),
		cfg.BaseURL,
		linkservice.WithCache(linkCache(rdb)),
	)

	// --- РОУТЕР ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://localhost:3000", "http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.MetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	metricsHandler := promhttp.Handler()
	if cfg.MetricsUser != "" && cfg.MetricsPassword != "" {
		metricsHandler = middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)(metricsHandler)
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	userhttp.NewHandler(userService).Register(r)

	couponHandler := couponhttp.NewHandler(couponService)
	couponHandler.IssueLimiter = limiter.Middleware
	couponHandler.Register(r)

	linkhttp.NewHandler(linkService).Register(r)

	return r
}

// linkCache возвращает nil, если Redis не настроен; сервис тогда работает без кэша.
func linkCache(rdb *redis.Client) linkservice.Cache {
	if rdb == nil {
		return nil
	}
	return linkcache.NewRedisCache(rdb, linkcache.WithTTL(time.Hour))
}
