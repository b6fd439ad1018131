package tts

import (
	"fmt"
	"strings"
	"time"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/engine"
	"github.com/tonelab/supertonic/tts/text"
)

// Config holds everything the CLI and server need. Values layer in the
// usual order: defaults, config file, environment, flags.
type Config struct {
	// Request defaults
	Voice       string  `yaml:"voice" env:"SUPERTONIC_VOICE" envDefault:"M1"`
	Language    string  `yaml:"language" env:"SUPERTONIC_LANGUAGE" envDefault:"en"`
	Rate        string  `yaml:"rate" env:"SUPERTONIC_RATE"`
	Quality     string  `yaml:"quality" env:"SUPERTONIC_QUALITY" envDefault:"balanced"`
	ChunkLength int     `yaml:"chunk_length" env:"SUPERTONIC_CHUNK_LENGTH" envDefault:"300"`
	Silence     float64 `yaml:"silence" env:"SUPERTONIC_SILENCE" envDefault:"0.3"`
	Debug       bool    `yaml:"debug" env:"SUPERTONIC_DEBUG" envDefault:"false"`

	Assets AssetConfig  `yaml:"assets"`
	Engine EngineConfig `yaml:"engine"`
	Output OutputConfig `yaml:"output"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
}

// AssetConfig controls where model files live and how they are fetched.
type AssetConfig struct {
	// Root overrides the model directory. Empty means the user cache dir.
	Root string `yaml:"root" env:"SUPERTONIC_ASSETS_ROOT"`
	// Repo is the HuggingFace repository the assets come from.
	Repo string `yaml:"repo" env:"SUPERTONIC_ASSETS_REPO" envDefault:"onnx-community/Supertonic-TTS-2-ONNX"`
	// RequestsPerMinute caps download requests against the hub.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"SUPERTONIC_ASSETS_RPM" envDefault:"30"`
}

// EngineConfig controls the ONNX runtime.
type EngineConfig struct {
	// Threads pins intra- and inter-op thread counts. 0 lets the runtime
	// decide.
	Threads int `yaml:"threads" env:"SUPERTONIC_ENGINE_THREADS" envDefault:"0"`
}

// OutputConfig controls where synthesized files land.
type OutputConfig struct {
	// Dir receives generated WAV files when no explicit path is given.
	Dir string `yaml:"dir" env:"SUPERTONIC_OUTPUT_DIR" envDefault:"."`
	// Play sends finished audio to the default output device.
	Play bool `yaml:"play" env:"SUPERTONIC_PLAY" envDefault:"false"`
}

// CacheConfig controls the synthesized-audio disk cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"SUPERTONIC_CACHE_ENABLED" envDefault:"true"`
	// Dir overrides the cache directory. Empty means the user cache dir.
	Dir string `yaml:"dir" env:"SUPERTONIC_CACHE_DIR"`
	// MaxSizeMB bounds the cache on disk; oldest entries are evicted first.
	MaxSizeMB int `yaml:"max_size_mb" env:"SUPERTONIC_CACHE_MAX_SIZE_MB" envDefault:"512"`
	// MaxAge expires entries regardless of size.
	MaxAge time.Duration `yaml:"max_age" env:"SUPERTONIC_CACHE_MAX_AGE" envDefault:"720h"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host              string        `yaml:"host" env:"SUPERTONIC_SERVER_HOST" envDefault:"127.0.0.1"`
	Port              int           `yaml:"port" env:"SUPERTONIC_SERVER_PORT" envDefault:"8000"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"SUPERTONIC_SERVER_RPM" envDefault:"60"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"SUPERTONIC_SERVER_READ_TIMEOUT" envDefault:"30s"`
	// WriteTimeout covers the whole synthesis, which can run minutes for
	// long texts at high quality.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SUPERTONIC_SERVER_WRITE_TIMEOUT" envDefault:"5m"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"SUPERTONIC_SERVER_MAX_BODY_BYTES" envDefault:"1048576"`
	// QueueDepth bounds how many synthesis requests may wait for the engine.
	QueueDepth int `yaml:"queue_depth" env:"SUPERTONIC_SERVER_QUEUE_DEPTH" envDefault:"32"`
}

// DefaultConfig returns a Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		Voice:       assets.DefaultVoice,
		Language:    "en",
		Quality:     QualityBalanced,
		ChunkLength: DefaultChunkLength,
		Silence:     DefaultSilence,

		Assets: DefaultAssetConfig(),
		Engine: DefaultEngineConfig(),
		Output: DefaultOutputConfig(),
		Cache:  DefaultCacheConfig(),
		Server: DefaultServerConfig(),
	}
}

// DefaultAssetConfig returns the default asset settings.
func DefaultAssetConfig() AssetConfig {
	return AssetConfig{
		Repo:              assets.DefaultRepo,
		RequestsPerMinute: 30,
	}
}

// DefaultEngineConfig returns the default engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Threads: 0}
}

// DefaultOutputConfig returns the default output settings.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{Dir: "."}
}

// DefaultCacheConfig returns the default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   true,
		MaxSizeMB: 512,
		MaxAge:    30 * 24 * time.Hour,
	}
}

// DefaultServerConfig returns the default server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              8000,
		RequestsPerMinute: 60,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		MaxBodyBytes:      1 << 20,
		QueueDepth:        32,
	}
}

// Validate checks the whole configuration and reports the first problem.
func (c *Config) Validate() error {
	if result := ValidateOptions(c.Options()); !result.Valid {
		return result.Err()
	}

	if c.Language == "" || !text.IsSupportedLanguage(c.Language) {
		return fmt.Errorf("invalid default language %q: must be one of %s",
			c.Language, strings.Join(text.SupportedLanguages, ", "))
	}

	if err := c.Assets.Validate(); err != nil {
		return fmt.Errorf("assets config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	return nil
}

// Validate checks the asset settings.
func (c *AssetConfig) Validate() error {
	if c.Repo == "" || !strings.Contains(c.Repo, "/") {
		return fmt.Errorf("repo must look like owner/name, got %q", c.Repo)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be at least 1, got %d", c.RequestsPerMinute)
	}
	return nil
}

// Validate checks the engine settings.
func (c *EngineConfig) Validate() error {
	if c.Threads < 0 || c.Threads > 256 {
		return fmt.Errorf("threads must be between 0 and 256, got %d", c.Threads)
	}
	return nil
}

// Validate checks the output settings.
func (c *OutputConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	return nil
}

// Validate checks the cache settings.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxSizeMB < 1 {
		return fmt.Errorf("max_size_mb must be at least 1, got %d", c.MaxSizeMB)
	}
	if c.MaxAge < time.Minute {
		return fmt.Errorf("max_age must be at least 1m, got %v", c.MaxAge)
	}
	return nil
}

// Validate checks the server settings.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be at least 1, got %d", c.RequestsPerMinute)
	}
	if c.ReadTimeout < time.Second || c.WriteTimeout < time.Second {
		return fmt.Errorf("timeouts must be at least 1s, got read=%v write=%v", c.ReadTimeout, c.WriteTimeout)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", c.MaxBodyBytes)
	}
	if c.QueueDepth < 1 || c.QueueDepth > 1024 {
		return fmt.Errorf("queue_depth must be between 1 and 1024, got %d", c.QueueDepth)
	}
	return nil
}

// Addr joins host and port for net/http.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options converts the configured request defaults into Options.
func (c *Config) Options() Options {
	return Options{
		Voice:       c.Voice,
		Rate:        c.Rate,
		Quality:     c.Quality,
		ChunkLength: c.ChunkLength,
		Silence:     c.Silence,
		NoCache:     !c.Cache.Enabled,
	}
}

// ManagerConfig converts the asset settings for assets.NewManager. The
// caller supplies the logger.
func (c *Config) ManagerConfig() assets.ManagerConfig {
	return assets.ManagerConfig{
		Root:              c.Assets.Root,
		RepoID:            c.Assets.Repo,
		RequestsPerMinute: c.Assets.RequestsPerMinute,
	}
}

// EngineConfig converts the engine settings for engine.New. The caller
// supplies the asset directory and logger.
func (c *Config) EngineConfig(assetDir string) engine.Config {
	return engine.Config{
		AssetDir: assetDir,
		Threads:  c.Engine.Threads,
	}
}
