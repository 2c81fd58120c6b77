// Command poolcheck opens a connection pool against a PostgreSQL server,
// runs a health probe, prints the pool statistics, and shuts down. It is
// meant for smoke-testing a deployment's store configuration.
//
// Usage:
//
//	poolcheck [-config pool.toml]
//
// Without -config the pool uses defaults and the DATABASE_URL (or
// CONNPOOL_PG_URL) environment variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/yuku/connpool"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML pool configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("poolcheck: %v", err)
	}

	pool, err := connpool.New(cfg)
	if err != nil {
		log.Fatalf("poolcheck: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pool.Initialize(ctx); err != nil {
		log.Fatalf("poolcheck: failed to initialize pool: %v", err)
	}
	defer func() {
		if err := pool.Shutdown(context.Background()); err != nil {
			log.Printf("poolcheck: shutdown: %v", err)
		}
	}()

	health := pool.CheckHealth(ctx)
	if health.Healthy {
		fmt.Printf("store healthy (latency %s)\n", health.Latency)
	} else {
		fmt.Printf("store UNHEALTHY: %s\n", health.Err)
	}

	stats := pool.Stats()
	fmt.Printf("pool: total=%d idle=%d active=%d waiting=%d max=%d\n",
		stats.Total, stats.Idle, stats.Active, stats.Waiting, stats.Max)

	if !health.Healthy {
		// os.Exit skips the deferred shutdown, so close the pool first.
		if err := pool.Shutdown(context.Background()); err != nil {
			log.Printf("poolcheck: shutdown: %v", err)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*connpool.Config, error) {
	if path != "" {
		cfg, err := connpool.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if cfg.Factory == nil {
			return nil, fmt.Errorf("config file %s does not name a store URL and %s is unset", path, connpool.EnvPGURL)
		}
		return cfg, nil
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = os.Getenv(connpool.EnvPGURL)
	}
	if url == "" {
		return nil, fmt.Errorf("set DATABASE_URL or %s, or pass -config", connpool.EnvPGURL)
	}

	cfg := connpool.DefaultConfig()
	cfg.Factory = connpool.NewPGFactory(url)
	return cfg, nil
}
