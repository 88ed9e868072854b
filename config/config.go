package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Web    Web
	DB     DB
	Engine Engine
	Repair Repair
	Rate   Rate
	Cors   Cors
	Trace  Trace
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:learning"`
	MaxIdleConns int    `conf:"default:3"`
	MaxOpenConns int    `conf:"default:10"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

// Engine tunes the aggregate propagation engine.
type Engine struct {
	MaxRetries        uint64        `conf:"default:5"`
	InitialBackoff    time.Duration `conf:"default:10ms"`
	MaxBackoff        time.Duration `conf:"default:500ms"`
	RepairConcurrency int           `conf:"default:4"`
}

// Repair schedules a periodic full-catalog recomputation. An empty
// schedule disables it.
type Repair struct {
	Schedule string        `conf:"default:0 3 * * *"`
	Timeout  time.Duration `conf:"default:30m"`
}

type Rate struct {
	Burst  int           `conf:"default:10"`
	RPS    float64       `conf:"default:5"`
	Expiry time.Duration `conf:"default:10m"`
}

type Cors struct {
	Origin string
}

type Trace struct {
	Stdout bool `conf:"default:false"`
}
