package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfig builds the effective configuration: tag defaults first, then
// environment variables, then any key set in the viper-backed config file.
// Flag overrides are applied by the CLI after this returns.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	applyFileConfig(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFileConfig copies every key present in the loaded config file onto
// cfg. Keys the file does not mention keep their env/default values.
func applyFileConfig(cfg *Config) {
	if viper.IsSet("voice") {
		cfg.Voice = viper.GetString("voice")
	}
	if viper.IsSet("language") {
		cfg.Language = viper.GetString("language")
	}
	if viper.IsSet("rate") {
		cfg.Rate = viper.GetString("rate")
	}
	if viper.IsSet("quality") {
		cfg.Quality = viper.GetString("quality")
	}
	if viper.IsSet("chunk_length") {
		cfg.ChunkLength = viper.GetInt("chunk_length")
	}
	if viper.IsSet("silence") {
		cfg.Silence = viper.GetFloat64("silence")
	}
	if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}

	if viper.IsSet("assets.root") {
		cfg.Assets.Root = viper.GetString("assets.root")
	}
	if viper.IsSet("assets.repo") {
		cfg.Assets.Repo = viper.GetString("assets.repo")
	}
	if viper.IsSet("assets.requests_per_minute") {
		cfg.Assets.RequestsPerMinute = viper.GetInt("assets.requests_per_minute")
	}

	if viper.IsSet("engine.threads") {
		cfg.Engine.Threads = viper.GetInt("engine.threads")
	}

	if viper.IsSet("output.dir") {
		cfg.Output.Dir = viper.GetString("output.dir")
	}
	if viper.IsSet("output.play") {
		cfg.Output.Play = viper.GetBool("output.play")
	}

	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Cache.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.max_size_mb") {
		cfg.Cache.MaxSizeMB = viper.GetInt("cache.max_size_mb")
	}
	if viper.IsSet("cache.max_age") {
		if d, err := time.ParseDuration(viper.GetString("cache.max_age")); err == nil {
			cfg.Cache.MaxAge = d
		}
	}

	if viper.IsSet("server.host") {
		cfg.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.requests_per_minute") {
		cfg.Server.RequestsPerMinute = viper.GetInt("server.requests_per_minute")
	}
	if viper.IsSet("server.read_timeout") {
		if d, err := time.ParseDuration(viper.GetString("server.read_timeout")); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if viper.IsSet("server.write_timeout") {
		if d, err := time.ParseDuration(viper.GetString("server.write_timeout")); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if viper.IsSet("server.max_body_bytes") {
		cfg.Server.MaxBodyBytes = viper.GetInt64("server.max_body_bytes")
	}
	if viper.IsSet("server.queue_depth") {
		cfg.Server.QueueDepth = viper.GetInt("server.queue_depth")
	}
}
