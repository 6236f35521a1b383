package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg, which must be a pointer to a
// struct annotated with `env` and `envDefault` tags:
//
//	type Config struct {
//	    HTTPPort        int           `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`
//	    SubmitTimeout   time.Duration `env:"ORDER_SUBMIT_TIMEOUT" envDefault:"10s"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
