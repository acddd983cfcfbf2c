package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ccgate/adapters/content"
	"github.com/layer-3/ccgate/adapters/events"
	"github.com/layer-3/ccgate/adapters/ledger"
	"github.com/layer-3/ccgate/adapters/signature"
	"github.com/layer-3/ccgate/adapters/store"
	"github.com/layer-3/ccgate/adapters/tokenizer"
	"github.com/layer-3/ccgate/config"
	"github.com/layer-3/ccgate/internal/metrics"
	"github.com/layer-3/ccgate/ports"
	"github.com/layer-3/ccgate/service"
	transport "github.com/layer-3/ccgate/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
	log.Info().Msg("gateway stopped")
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("invalid log level, using info")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	verifier, err := signature.NewVerifier(cfg.SignatureScheme, cfg.SS58Prefix)
	if err != nil {
		return err
	}

	jwtTokenizer, err := tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn().Msg("using the development jwt secret")
	}

	var redisClient *redis.Client
	if cfg.StoreBackend == config.StoreRedis || cfg.EventsEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var (
		nonceStore ports.NonceStore
		rateStore  ports.RateLimitStore
	)
	switch cfg.StoreBackend {
	case config.StoreRedis:
		nonceStore = store.NewRedisNonceStore(redisClient)
		rateStore = store.NewRedisRateLimitStore(redisClient, cfg.RateLimitWindow)
	default:
		nonceStore = store.NewMemoryNonceStore()
		memoryRates := store.NewMemoryRateLimitStore(cfg.RateLimitWindow)
		defer memoryRates.Close()
		rateStore = memoryRates
	}

	balances, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.EventsEnabled {
		publisher, err := events.NewRedisStreamPublisher(redisClient, events.NewZerologAdapter(log.Logger))
		if err != nil {
			return err
		}
		defer publisher.Close()
		eventPub = publisher
	}

	gate, err := service.NewMembershipGate(balances, cfg.MinBalanceCC, cfg.LedgerTimeout)
	if err != nil {
		return err
	}

	nonces := service.NewNonceManager(nonceStore, cfg.NonceTTL)
	authService := service.NewAuthService(
		verifier,
		jwtTokenizer,
		nonces,
		gate,
		service.NewRateLimiter(rateStore, cfg.RateLimitUploadsPerDay, cfg.RateLimitWindow),
		eventPub,
		cfg.JWTExpiry,
	)

	ipfs, err := content.NewKuboClient(cfg.IPFSAPIURL, cfg.IPFSTimeout)
	if err != nil {
		return err
	}

	router := transport.SetupRouter(authService, ipfs, transport.RouterConfig{MaxUploadBytes: cfg.MaxUploadBytes})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("scheme", verifier.Scheme().Name()).
			Str("min_balance_cc", gate.MinimumDisplay()).
			Str("ipfs_api_url", cfg.IPFSAPIURL).
			Str("store", string(cfg.StoreBackend)).
			Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return nonces.RunReaper(gctx, cfg.NonceReapInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openLedger dials the Encointer node, or returns an in-memory ledger in dev
// mode where every account holds the minimum balance
func openLedger(ctx context.Context, cfg config.Config) (ports.BalanceQuerier, error) {
	if cfg.LedgerRPCURL == "" {
		static := ledger.NewStatic()
		static.SetDefault(decimal.RequireFromString(cfg.MinBalanceCC))
		log.Warn().Msg("no ledger configured, every account is a member")
		return static, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.LedgerTimeout)
	defer cancel()

	client, err := ledger.DialEncointer(dialCtx, cfg.LedgerRPCURL)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	log.Info().Str("url", cfg.LedgerRPCURL).Msg("ledger connected")
	return client, nil
}
