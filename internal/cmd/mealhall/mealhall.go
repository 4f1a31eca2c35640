// Package mealhall parses command flags and wires the settlement runtime.
package mealhall

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/louisbranch/mealhall/internal/platform/config"
	"github.com/louisbranch/mealhall/internal/platform/otel"
	"github.com/louisbranch/mealhall/internal/settlement/domain"
	"github.com/louisbranch/mealhall/internal/settlement/storage/sqlite"
)

const serviceName = "mealhall"

// Config holds mealhall command configuration.
type Config struct {
	DBPath   string `env:"MEALHALL_DB_PATH" envDefault:"data/mealhall.db"`
	SeedDemo bool   `env:"MEALHALL_SEED_DEMO"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.BoolVar(&cfg.SeedDemo, "seed", cfg.SeedDemo, "seed demo users, addons, and a meal")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the store, applies pending migrations, and optionally seeds demo
// data through the domain service.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown telemetry: %v", err)
		}
	}()

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	if cfg.SeedDemo {
		service := domain.NewService(store, nil)
		if err := seedDemo(ctx, service); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		log.Printf("seeded demo data into %s", cfg.DBPath)
		return nil
	}

	log.Printf("database ready at %s", cfg.DBPath)
	return nil
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
