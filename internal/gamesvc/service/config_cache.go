package service

import (
	"context"
	"sync"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/config"
	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type ConfigSource interface {
	GameConfigs(ctx context.Context) (map[string]string, error)
}

// ConfigCache holds the parsed game rules for ttl. Concurrent misses share
// one load, and a failed reload keeps serving the previous rules.
type ConfigCache struct {
	src ConfigSource
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	cfg      engine.Config
	loadedAt time.Time
	loaded   bool

	group singleflight.Group
}

func NewConfigCache(src ConfigSource, ttl time.Duration) *ConfigCache {
	return &ConfigCache{src: src, ttl: ttl, now: time.Now}
}

func (c *ConfigCache) Get(ctx context.Context) (engine.Config, error) {
	c.mu.RLock()
	cfg, fresh := c.cfg, c.loaded && c.now().Sub(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return cfg, nil
	}

	v, err, _ := c.group.Do("rules", func() (any, error) {
		kv, err := c.src.GameConfigs(ctx)
		if err != nil {
			return nil, err
		}
		return config.ParseRules(kv)
	})
	if err != nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.loaded {
			log.Warnf("game config reload failed, serving cached rules: %v", err)
			return c.cfg, nil
		}
		return engine.Config{}, err
	}

	cfg = v.(engine.Config)
	c.mu.Lock()
	c.cfg, c.loadedAt, c.loaded = cfg, c.now(), true
	c.mu.Unlock()
	return cfg, nil
}
