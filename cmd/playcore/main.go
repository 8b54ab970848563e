package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/health"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/metrics"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/resume"
	"github.com/zsiec/playcore/internal/server"
	"github.com/zsiec/playcore/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	info := version.GetInfo()
	log.WithField("version", info.Short()).Info("Starting playcore playback server")
	log.WithField("config_path", configPath).Debug("Configuration loaded")
	metrics.SetBuildInfo(info.Version, info.GitCommit, info.GoVersion)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Resume store
	var (
		store       resume.Store
		redisClient redis.UniversalClient
	)
	if cfg.Resume.Enabled {
		redisClient = resume.NewClient(cfg.Redis)
		if err := pingRedis(ctx, redisClient); err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		log.Info("Connected to Redis successfully")
		store = resume.NewRedisStore(redisClient, log, cfg.Resume)
	} else {
		log.Info("Resume store disabled in config, keeping positions in memory")
		store = resume.NewMemoryStore()
	}

	srv := server.New(&cfg.Server, player.ConfigFrom(cfg.Player), log, store)
	if redisClient != nil {
		srv.RegisterHealthChecker(health.NewRedisChecker(redisClient))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := newMetricsServer(cfg.Metrics)
		g.Go(func() error {
			log.WithField("addr", metricsSrv.Addr).Info("Starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server error")
	}

	// Cleanup
	if err := store.Close(); err != nil {
		log.WithError(err).Error("Failed to close resume store")
	}

	log.Info("Server shutdown complete")
}

// pingRedis verifies the resume store is reachable and writable.
func pingRedis(ctx context.Context, client redis.UniversalClient) error {
	return health.NewRedisChecker(client).Check(ctx)
}

// newMetricsServer builds the Prometheus metrics server
func newMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
