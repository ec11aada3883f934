package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/hptune/internal/logging"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging logging.Config
	Tuner struct {
		// Strategy is used when a session does not name one.
		Strategy        string `env:"TUNER_STRATEGY" envDefault:"tpe"`
		Seed            uint64 `env:"TUNER_SEED" envDefault:"0"`
		Minimize        bool   `env:"TUNER_MINIMIZE" envDefault:"true"`
		StartupTrials   int    `env:"TUNER_STARTUP_TRIALS" envDefault:"20"`
		Candidates      int    `env:"TUNER_EI_CANDIDATES" envDefault:"24"`
		MaxLocalThreads int    `env:"TUNER_MAX_LOCAL_THREADS" envDefault:"1"`
		MaxSessions     int    `env:"TUNER_MAX_SESSIONS" envDefault:"1024"`
	}
	RateLimit struct {
		// RPS of zero disables rate limiting.
		RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
		Burst int     `env:"RATE_LIMIT_BURST" envDefault:"50"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	return cfg, nil
}
