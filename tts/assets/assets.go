// Package assets downloads, verifies, and converts the model files and voice
// styles that synthesis depends on. Assets live in a local directory that
// mirrors the remote model repository; a complete directory is never
// re-fetched.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidVoice indicates a voice key outside the closed catalog.
	ErrInvalidVoice = errors.New("invalid voice key")

	// ErrAssetsMissing indicates the asset directory has not been populated.
	ErrAssetsMissing = errors.New("model assets missing")

	// ErrDownloadFailed indicates the remote repository rejected a fetch.
	ErrDownloadFailed = errors.New("asset download failed")

	// ErrStyleSizeMismatch indicates a voice binary whose float count does
	// not match the configured tensor shapes.
	ErrStyleSizeMismatch = errors.New("voice style size mismatch")
)

// RequiredModelFiles are the files EnsureModels verifies. The directory is
// considered complete only when every one of them is present.
var RequiredModelFiles = []string{
	"tts.json",
	"duration_predictor.onnx",
	"text_encoder.onnx",
	"vector_estimator.onnx",
	"vocoder.onnx",
	"unicode_indexer.json",
}

const (
	configFile = "tts.json"
	stylesDir  = "styles"
	voicesDir  = "voices"
)

// ModelConfig holds the model parameters synthesis needs, parsed from the
// repository's tts.json.
type ModelConfig struct {
	SampleRate          int
	BaseChunkSize       int
	ChunkCompressFactor int
	LatentDim           int
}

// ChunkSize is the number of samples one latent frame expands to.
func (c *ModelConfig) ChunkSize() int {
	return c.BaseChunkSize * c.ChunkCompressFactor
}

type rawModelConfig struct {
	AE struct {
		SampleRate    int `json:"sample_rate"`
		BaseChunkSize int `json:"base_chunk_size"`
	} `json:"ae"`
	TTL struct {
		ChunkCompressFactor int `json:"chunk_compress_factor"`
		LatentDim           int `json:"latent_dim"`
	} `json:"ttl"`
}

// ParseModelConfig decodes the repository's tts.json.
func ParseModelConfig(data []byte) (*ModelConfig, error) {
	var raw rawModelConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}
	cfg := &ModelConfig{
		SampleRate:          raw.AE.SampleRate,
		BaseChunkSize:       raw.AE.BaseChunkSize,
		ChunkCompressFactor: raw.TTL.ChunkCompressFactor,
		LatentDim:           raw.TTL.LatentDim,
	}
	if cfg.SampleRate <= 0 || cfg.BaseChunkSize <= 0 ||
		cfg.ChunkCompressFactor <= 0 || cfg.LatentDim <= 0 {
		return nil, fmt.Errorf("model config has non-positive dimensions: %+v", cfg)
	}
	return cfg, nil
}

// ManagerConfig configures a Manager. Zero values select defaults.
type ManagerConfig struct {
	// Root is the local asset directory. Defaults to DefaultRoot().
	Root string

	// RepoID is the remote model repository. Defaults to DefaultRepo.
	RepoID string

	// RequestsPerMinute caps repository fetches (defaults to 30).
	RequestsPerMinute int

	// Logger receives download progress. Defaults to the standard logger.
	Logger *log.Logger
}

// Manager resolves model files and voice styles, downloading from the remote
// repository when the local directory is incomplete. It is safe for
// concurrent use.
type Manager struct {
	root    string
	repoID  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger

	mu     sync.Mutex
	config *ModelConfig
}

// NewManager creates an asset manager rooted at config.Root.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, fmt.Errorf("resolving default asset root: %w", err)
		}
		config.Root = root
	}
	root, err := ExpandPath(config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving asset root: %w", err)
	}
	if config.RepoID == "" {
		config.RepoID = DefaultRepo
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 30
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &Manager{
		root:    root,
		repoID:  config.RepoID,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		logger:  config.Logger,
	}, nil
}

// DefaultRoot returns the per-user asset directory.
func DefaultRoot() (string, error) {
	scope := gap.NewScope(gap.User, "supertonic")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models"), nil
}

// Root returns the directory the manager resolves assets in.
func (m *Manager) Root() string {
	return m.root
}

// EnsureModels verifies that every required model file exists under the
// asset root, fetching the full set from the repository when any is
// missing. It returns the asset root and is idempotent: a complete
// directory is never re-fetched.
func (m *Manager) EnsureModels(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return "", fmt.Errorf("creating asset directory: %w", err)
	}

	missing := 0
	for _, name := range RequiredModelFiles {
		if _, err := os.Stat(filepath.Join(m.root, name)); err != nil {
			missing++
		}
	}
	if missing == 0 {
		return m.root, nil
	}

	m.logger.Info("downloading model assets", "repo", m.repoID, "missing", missing)
	for _, name := range RequiredModelFiles {
		if err := m.download(ctx, name, filepath.Join(m.root, name)); err != nil {
			return "", fmt.Errorf("fetching %s: %w", name, err)
		}
	}
	return m.root, nil
}

// LoadConfig parses the model configuration, caching the result so repeated
// calls never re-read the file. It does not download; call EnsureModels
// first when the directory may be incomplete.
func (m *Manager) LoadConfig() (*ModelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config != nil {
		return m.config, nil
	}

	data, err := os.ReadFile(filepath.Join(m.root, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found in %s", ErrAssetsMissing, configFile, m.root)
		}
		return nil, fmt.Errorf("reading model config: %w", err)
	}

	cfg, err := ParseModelConfig(data)
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return cfg, nil
}

// EnsureVoiceStyle resolves the converted style file for a voice key,
// downloading and converting the raw binary when needed. The returned path
// points at the structured tensor file.
func (m *Manager) EnsureVoiceStyle(ctx context.Context, key string) (string, error) {
	if !IsValidVoice(key) {
		if suggestion := SuggestVoice(key); suggestion != "" {
			return "", fmt.Errorf("%w: %q (did you mean %q?)", ErrInvalidVoice, key, suggestion)
		}
		return "", fmt.Errorf("%w: %q (valid keys: %s)", ErrInvalidVoice, key, strings.Join(VoiceKeys(), ", "))
	}

	stylePath := filepath.Join(m.root, stylesDir, key+".json")
	if _, err := os.Stat(stylePath); err == nil {
		return stylePath, nil
	}

	binPath := filepath.Join(m.root, voicesDir, key+".bin")
	if _, err := os.Stat(binPath); err != nil {
		if err := m.download(ctx, voicesDir+"/"+key+".bin", binPath); err != nil {
			return "", fmt.Errorf("fetching voice %s: %w", key, err)
		}
	}

	cfg, err := m.LoadConfig()
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(binPath)
	if err != nil {
		return "", fmt.Errorf("reading voice binary: %w", err)
	}
	style, err := ConvertVoiceBinary(raw, cfg)
	if err != nil {
		return "", fmt.Errorf("converting voice %s: %w", key, err)
	}

	if err := style.WriteFile(stylePath); err != nil {
		return "", fmt.Errorf("persisting voice style: %w", err)
	}
	m.logger.Debug("converted voice style", "voice", key, "path", stylePath)
	return stylePath, nil
}

// LoadVoiceStyle resolves and parses the style tensors for a voice key.
func (m *Manager) LoadVoiceStyle(ctx context.Context, key string) (*VoiceStyle, error) {
	path, err := m.EnsureVoiceStyle(ctx, key)
	if err != nil {
		return nil, err
	}
	return ReadVoiceStyleFile(path)
}
