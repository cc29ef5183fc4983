package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/uptimeoor/pkg/cache"
	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
	"github.com/ethpandaops/uptimeoor/pkg/store"
)

var outputFormat string

// loadConfig reads --config files, falling back to defaults plus
// UPTIMEOOR_* environment overrides when none are given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// openStore starts the database store. The caller must Stop it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	return st, nil
}

// openCache starts the Redis cache when enabled. It returns nil otherwise.
func openCache(ctx context.Context, cfg *config.Config) (*cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	c := cache.NewCache(log, &cfg.Cache)
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting cache: %w", err)
	}

	return c, nil
}

// readEntity decodes a JSON file into a normalized, validated entity.
func readEntity[T any, P interface {
	*T
	models.Entity
}](path string) (*T, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	v, err := models.FromJSON[T, P](data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return v, nil
}

// writeOutput renders v to w as yaml or json.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}

		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use \"yaml\" or \"json\")", format)
	}
}
