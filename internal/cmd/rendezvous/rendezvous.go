// Package rendezvous parses rendezvous service flags and launches the service.
package rendezvous

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/duet.space/internal/platform/cmd"
	server "github.com/louisbranch/duet.space/internal/services/rendezvous/app"
)

// Config holds rendezvous command configuration.
type Config struct {
	Port       int `env:"DUET_SPACE_RENDEZVOUS_PORT" envDefault:"8080"`
	HealthPort int `env:"DUET_SPACE_RENDEZVOUS_HEALTH_PORT" envDefault:"8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The rendezvous HTTP server port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The rendezvous gRPC health port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the rendezvous HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRendezvous, func(context.Context) error {
		return server.Run(ctx, cfg.Port, cfg.HealthPort)
	})
}
