package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omplayer/server/internal/backend"
	"github.com/omplayer/server/internal/captions"
	"github.com/omplayer/server/internal/controller"
	"github.com/omplayer/server/internal/media"
	omplayer "github.com/omplayer/server/internal/player"
	"github.com/omplayer/server/internal/repository/connection/inmemory"
	playerInmemory "github.com/omplayer/server/internal/repository/player/inmemory"
	playerRedis "github.com/omplayer/server/internal/repository/player/redis"
	"github.com/omplayer/server/internal/resolver"
	"github.com/omplayer/server/internal/service/player"
	"github.com/omplayer/server/pkg/ctxlogger"
	"github.com/omplayer/server/pkg/redisclient"
)

type AppConfig struct {
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	LogLevel            string        `json:"log_level"`
	RedisPort           int           `json:"redis_port"`
	RedisHost           string        `json:"redis_host"`
	RedisPassword       string        `json:"-"`
	SnapshotExp         time.Duration `json:"snapshot_exp"`
	SeekStep            float64       `json:"seek_step"`
	TimeRefreshInterval time.Duration `json:"time_refresh_interval"`
	TickInterval        time.Duration `json:"tick_interval"`
	ProbeTimeout        time.Duration `json:"probe_timeout"`
	DefaultDuration     float64       `json:"default_duration"`
	NativeHLS           bool          `json:"native_hls"`
	MSE                 bool          `json:"mse"`
	Ads                 bool          `json:"ads"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.SnapshotExp <= 0 {
		return fmt.Errorf("snapshot expiration must be greater than 0")
	}
	if cfg.SeekStep <= 0 {
		return fmt.Errorf("seek step must be greater than 0")
	}
	if cfg.TimeRefreshInterval < 0 {
		return fmt.Errorf("time refresh interval must not be negative")
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be greater than 0")
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be greater than 0")
	}
	if cfg.DefaultDuration < 0 {
		return fmt.Errorf("default duration must not be negative")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func (cfg *AppConfig) playerConfig() omplayer.Config {
	client := &http.Client{Timeout: cfg.ProbeTimeout}

	return omplayer.Config{
		Capabilities: resolver.Capabilities{
			NativeHLS: cfg.NativeHLS,
			MSE:       cfg.MSE,
			Ads:       cfg.Ads,
		},
		Elements: &media.VirtualFactory{
			TickInterval: cfg.TickInterval,
			ProbeTimeout: cfg.ProbeTimeout,
		},
		HTTPClient: client,
		NativeProber: &media.HTTPProber{
			Client:          client,
			DefaultDuration: cfg.DefaultDuration,
		},
		AdLoader:    &backend.VASTLoader{Client: client},
		Captions:    &captions.HTTPFetcher{Client: client},
		TimeRefresh: cfg.TimeRefreshInterval,
		SeekStep:    cfg.SeekStep,
	}
}

type shutdowner interface {
	Shutdown(context.Context)
}

// newHandler wires repositories, the player service and the http mux.
func newHandler(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (http.Handler, shutdowner) {
	snapshotRepo := playerRedis.NewRepo(rc, cfg.SnapshotExp)
	connectionRepo := inmemory.NewRepo()
	registry := playerInmemory.NewRegistry()

	playerService := player.NewService(registry, snapshotRepo, connectionRepo, cfg.playerConfig(), logger)
	controller := controller.NewController(playerService, logger)

	return controller.GetMux(), playerService
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	handler, playerService := newHandler(cfg, rc, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		playerService.Shutdown(shutdownCtx)
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
