package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/background"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/config"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/metrics"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/rate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var build = "develop"

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	const prefix = "LEARN"
	cfg := config.Config{
		Version: conf.Version{
			Build: build,
			Desc:  "course catalog service",
		},
	}
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	logger.Infof("config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if err := database.StatusCheck(context.Background(), db); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	if cfg.Trace.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(lw))
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.WithError(err).Error("flushing traces")
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := aggregate.New(aggregate.Config{
		Log:               logger,
		DB:                db,
		Hooks:             metrics.NewEngine(reg),
		MaxRetries:        cfg.Engine.MaxRetries,
		InitialBackoff:    cfg.Engine.InitialBackoff,
		MaxBackoff:        cfg.Engine.MaxBackoff,
		RepairConcurrency: cfg.Engine.RepairConcurrency,
	})
	disp := aggregate.NewDispatcher(logger, engine)

	bg := background.New(logger)

	var limiter *rate.Limiter
	if cfg.Rate.RPS > 0 {
		limiter = rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Expiry, cfg.Rate.RPS)
		defer limiter.Stop()
	}

	repairCtx, stopRepairs := context.WithCancel(context.Background())
	defer stopRepairs()

	var sched *cron.Cron
	if cfg.Repair.Schedule != "" {
		sched = cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(logger)),
			cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
		))

		_, err := sched.AddFunc(cfg.Repair.Schedule, func() {
			ctx, cancel := context.WithTimeout(repairCtx, cfg.Repair.Timeout)
			defer cancel()

			if _, err := disp.RepairCatalog(ctx); err != nil {
				logger.WithError(err).Error("scheduled catalog repair finished with failures")
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling catalog repair[%s]: %w", cfg.Repair.Schedule, err)
		}

		sched.Start()
		logger.Infof("catalog repair scheduled at %q", cfg.Repair.Schedule)
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		DB:            db,
		Dispatcher:    disp,
		Background:    bg,
		RepairTimeout: cfg.Repair.Timeout,
		Limiter:       limiter,
		Gatherer:      reg,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		// In-flight repairs are canceled, not awaited.
		stopRepairs()
		if sched != nil {
			select {
			case <-sched.Stop().Done():
			case <-ctx.Done():
				return fmt.Errorf("could not stop the repair scheduler: %w", ctx.Err())
			}
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
