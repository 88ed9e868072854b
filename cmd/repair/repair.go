// Command repair recomputes stored aggregates from their detail rows, for
// one course or for the whole catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/config"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
	"github.com/sirupsen/logrus"
)

type repairConfig struct {
	conf.Version
	DB       config.DB
	Engine   config.Engine
	CourseID string        `conf:"flag:course-id,help:repair a single course instead of the catalog"`
	Timeout  time.Duration `conf:"default:30m"`
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	const prefix = "LEARN"
	var cfg repairConfig
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CourseID != "" {
		if err := validate.CheckID(cfg.CourseID); err != nil {
			return fmt.Errorf("course id[%s]: %w", cfg.CourseID, err)
		}
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	engine := aggregate.New(aggregate.Config{
		Log:               log,
		DB:                db,
		MaxRetries:        cfg.Engine.MaxRetries,
		InitialBackoff:    cfg.Engine.InitialBackoff,
		MaxBackoff:        cfg.Engine.MaxBackoff,
		RepairConcurrency: cfg.Engine.RepairConcurrency,
	})
	disp := aggregate.NewDispatcher(log, engine)

	var rep aggregate.RepairReport
	if cfg.CourseID != "" {
		rep, err = disp.RepairCourse(ctx, cfg.CourseID)
	} else {
		rep, err = disp.RepairCatalog(ctx)
	}

	fmt.Printf("courses=%d chapters=%d lectures=%d failed=%d took=%s\n",
		rep.Courses, rep.Chapters, rep.Lectures, rep.Failed, rep.Took)

	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	return nil
}
