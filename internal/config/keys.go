package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SHOPPER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "anthropic.base_url", typ: kString, env: "SHOPPER_ANTHROPIC_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.BaseURL },
	},
	{
		key: "anthropic.api_key", typ: kString, env: "SHOPPER_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Anthropic.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.APIKey },
	},
	{
		key: "anthropic.model", typ: kString, env: "SHOPPER_ANTHROPIC_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.Model },
	},
	{
		key: "anthropic.max_tokens", typ: kInt, env: "SHOPPER_ANTHROPIC_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Anthropic.MaxTokens },
	},
	{
		key: "anthropic.image_max_tokens", typ: kInt, env: "SHOPPER_ANTHROPIC_IMAGE_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.ImageMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Anthropic.ImageMaxTokens },
	},
	{
		key: "anthropic.timeout", typ: kDuration, env: "SHOPPER_ANTHROPIC_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Anthropic.Timeout },
	},
	{
		key: "enrichment.enabled", typ: kBool, env: "SHOPPER_ENRICHMENT_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Enrichment.Enabled },
	},
	{
		key: "enrichment.concurrency", typ: kInt, env: "SHOPPER_ENRICHMENT_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Enrichment.Concurrency },
	},
	{
		key: "cache.image_ttl", typ: kDuration, env: "SHOPPER_CACHE_IMAGE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.ImageTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.ImageTTL },
	},
	{
		key: "session.idle_timeout", typ: kDuration, env: "SHOPPER_SESSION_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Session.IdleTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.IdleTimeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SHOPPER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SHOPPER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts a raw string to the Go type of the key.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
