package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/engine"
	"github.com/roosta/i3wsr/internal/rules"
	"github.com/roosta/i3wsr/internal/util"
)

type configReloader struct {
	path           string
	logger         *util.Logger
	engine         *engine.Engine
	overrides      *flagOverrides
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, eng *engine.Engine, overrides *flagOverrides, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		engine:         eng,
		overrides:      overrides,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload swaps in a freshly compiled resolver when the file on disk is valid.
// A rejected file leaves the running configuration untouched.
func (r *configReloader) Reload(ctx context.Context, reason string) error {
	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		r.logDiff(raw)
		return err
	}
	r.overrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		r.logDiff(raw)
		return err
	}
	resolver, err := rules.Compile(cfg)
	if err != nil {
		r.logDiff(raw)
		return fmt.Errorf("compile aliases: %w", err)
	}

	r.engine.SetResolver(resolver)
	if err := r.engine.Recompute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("recompute after reload: %w", err)
	}

	r.lastSerialized = append([]byte(nil), raw...)
	r.logger.Infof("config reloaded")
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}
