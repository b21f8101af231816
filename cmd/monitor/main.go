package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/httpapi"
	apimw "github.com/hamed0406/sitemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/sitemonitor/internal/logging"
	"github.com/hamed0406/sitemonitor/internal/notify"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/scheduler"
	"github.com/hamed0406/sitemonitor/internal/tracing"
)

func main() {
	envFile := flag.String("env", ".env", "path to a .env file (optional)")
	once := flag.Bool("once", false, "run a single check pass and exit")
	flag.Parse()

	code, err := run(*envFile, *once)
	if err != nil {
		log.Print(err)
	}
	os.Exit(code)
}

func run(envFile string, once bool) (int, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return 2, err
	}
	if err := cfg.Validate(); err != nil {
		return 2, fmt.Errorf("invalid configuration: %w", err)
	}
	targets, err := cfg.Targets()
	if err != nil {
		return 2, err
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return 2, err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := tracing.Setup(ctx, tracing.Config{
		Enable:      cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "sitemonitor",
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return 1, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tr.Shutdown(sctx)
	}()

	store, err := repo.Open(ctx, repo.Options{Driver: cfg.StoreDriver, Path: cfg.StorePath, DSN: cfg.DatabaseURL}, logger)
	if err != nil {
		return 1, err
	}
	defer store.Close()

	sinks, closeSinks, err := buildNotifiers(cfg, logger)
	if err != nil {
		return 2, err
	}
	defer closeSinks()

	ex := probe.NewExecutor(probe.NewHTTPClient(cfg.RequestTimeout(), false), probe.ExecutorConfig{
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay(),
		MaxDelay:   cfg.MaxDelay(),
		UserAgent:  cfg.UserAgent,
	}, logger)
	ex.Diagnoser = probe.NewDNSDiagnoser()

	alerter := scheduler.NewAlerter(store, scheduler.AlerterConfig{
		Cooldown:       cfg.Cooldown(),
		Threshold:      cfg.AlertThreshold,
		NotifyRecovery: cfg.NotifyRecovery,
	})
	sched := scheduler.New(logger, ex, alerter, sinks, store, cfg.Interval(), cfg.MaxConcurrentChecks)

	logger.Info("monitor_start",
		zap.Int("targets", len(targets)),
		zap.Duration("interval", cfg.Interval()),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("cooldown", cfg.Cooldown()),
		zap.Bool("once", once),
	)

	if once {
		sum := sched.Tick(ctx, targets)
		if sum.Failed > 0 {
			return 1, nil
		}
		return 0, nil
	}

	var srv *http.Server
	if cfg.APIAddr != "" {
		api := httpapi.NewServer(logger, targets, store, store, sched)
		keys := apimw.Keys{Public: cfg.PublicKeys(), Admin: cfg.AdminKeys()}
		srv = &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           api.Router(keys, cfg.Origins(), cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("api_listen", zap.String("addr", cfg.APIAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api_listen_error", zap.Error(err))
				stop()
			}
		}()
	}

	err = sched.Run(ctx, targets)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	logger.Info("monitor_stopped")
	if err != nil {
		return 1, err
	}
	return 0, nil
}

func buildNotifiers(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	sinks := notify.Multi{notify.Log{Logger: logger}}
	closers := []func() error{}

	email, err := notify.NewEmail(notify.EmailConfig{
		Server:   cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.AlertEmail,
	})
	if err != nil {
		return nil, nil, err
	}
	if email != nil {
		sinks = append(sinks, email)
	}
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		sinks = append(sinks, s)
	}
	if k := notify.NewKafka(cfg.KafkaBrokerList(), cfg.KafkaTopic, logger); k != nil {
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
	}
	logger.Info("notifiers_ready", zap.Int("sinks", len(sinks)))

	return sinks, func() {
		for _, c := range closers {
			_ = c()
		}
	}, nil
}
