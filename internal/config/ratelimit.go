package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := GetEnvOrDefault("RATELIMIT_ENABLED", "false") == "true"

	configs := map[string]RateLimitConfig{
		"global": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_GLOBAL", 1000),
			Window:  time.Minute,
		},
		"auth_token": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_AUTH_TOKEN", 30),
			Window:  time.Minute,
		},
		"intake": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_INTAKE", 60),
			Window:  time.Minute,
		},
		"diagnosis": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_DIAGNOSIS", 20),
			Window:  time.Minute,
		},
		"media": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_MEDIA", 10),
			Window:  time.Minute,
		},
	}

	if config, exists := configs[key]; exists {
		return config
	}

	log.Warn().Str("key", key).Msg("No rate limit config found for key")
	return RateLimitConfig{Enabled: false}
}
