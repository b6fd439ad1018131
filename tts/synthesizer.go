// Package tts synthesizes speech from plain or language-tagged text. The
// Synthesizer wires the text preprocessor, asset manager, ONNX inference
// engine, and audio assembler into the two entry points the CLI and HTTP
// layers consume: Synthesize and SynthesizeMixed.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/audio"
	"github.com/tonelab/supertonic/tts/engine"
	"github.com/tonelab/supertonic/tts/text"
)

// Result is one finished synthesis.
type Result struct {
	// Audio is the complete canonical WAV buffer.
	Audio audio.Buffer
	// Duration is the audio length in seconds.
	Duration float64
	// Language is the resolved language code, or "mixed" for tagged input.
	Language string
	// Voice is the voice key used.
	Voice string
	// Segments counts the pieces synthesized (chunks or tagged segments).
	Segments int
	// Cached reports whether the buffer came from the synthesis cache.
	Cached bool
	// Path is where the buffer was persisted, when requested.
	Path string
	// Elapsed is the wall time the request took.
	Elapsed time.Duration
}

// SynthesizerConfig wires a Synthesizer's collaborators. Only Config is
// required; the rest default to working implementations.
type SynthesizerConfig struct {
	Config Config
	// Detector guesses the language of untagged text. Nil installs the
	// placeholder answering the configured default language.
	Detector text.Detector
	// Cache stores finished audio. Nil disables caching.
	Cache Cache
	// Engine substitutes the inference implementation. Nil builds the real
	// ONNX engine from Config.
	Engine Inference
	Logger *log.Logger
}

// Synthesizer drives the full pipeline. One instance is shared by every
// caller in the process; there is no package-level singleton. Model and
// graph loading happen once, on the first request or an explicit Init,
// whichever comes first.
type Synthesizer struct {
	cfg      Config
	manager  *assets.Manager
	engine   Inference
	detector text.Detector
	cache    Cache
	logger   *log.Logger

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	styles map[string]*assets.VoiceStyle
	closed bool

	writes  chan pendingWrite
	writeWG sync.WaitGroup
}

type pendingWrite struct {
	path string
	buf  audio.Buffer
}

// NewSynthesizer validates the configuration and builds a synthesizer.
// Nothing is downloaded or loaded yet; see Init.
func NewSynthesizer(cfg SynthesizerConfig) (*Synthesizer, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Detector == nil {
		cfg.Detector = text.PlaceholderDetector{Language: cfg.Config.Language}
	}

	managerCfg := cfg.Config.ManagerConfig()
	managerCfg.Logger = cfg.Logger.WithPrefix("assets")
	manager, err := assets.NewManager(managerCfg)
	if err != nil {
		return nil, err
	}

	inf := cfg.Engine
	if inf == nil {
		engineCfg := cfg.Config.EngineConfig(manager.Root())
		engineCfg.Logger = cfg.Logger.WithPrefix("engine")
		inf = engine.New(engineCfg)
	}

	s := &Synthesizer{
		cfg:      cfg.Config,
		manager:  manager,
		engine:   inf,
		detector: cfg.Detector,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		styles:   make(map[string]*assets.VoiceStyle),
		writes:   make(chan pendingWrite, 4),
	}
	go s.writer()
	return s, nil
}

// Init downloads any missing model files and loads the inference graphs.
// Safe for concurrent use: the first caller does the work, later callers
// share its outcome. Synthesize calls it implicitly.
func (s *Synthesizer) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		if _, err := s.manager.EnsureModels(ctx); err != nil {
			s.initErr = err
			return
		}
		s.initErr = s.engine.Initialize()
	})
	return s.initErr
}

// Ready reports whether the engine is loaded and usable.
func (s *Synthesizer) Ready() bool {
	return s.engine.Ready()
}

// Assets exposes the asset manager for status reporting.
func (s *Synthesizer) Assets() *assets.Manager {
	return s.manager
}

// SampleRate returns the model's output sample rate. Valid after Init.
func (s *Synthesizer) SampleRate() int {
	if m := s.engine.Model(); m != nil {
		return m.SampleRate
	}
	return 0
}

// Synthesize converts plain text in one language to audio. When
// opts.Language is empty the detector picks a code, falling back to the
// configured default language if the answer is unsupported. Long text is
// split into chunks joined by opts.Silence seconds of quiet.
func (s *Synthesizer) Synthesize(ctx context.Context, input string, opts Options) (*Result, error) {
	opts = opts.Resolve()
	if result := ValidateRequest(input, opts); !result.Valid {
		return nil, result.Err()
	}

	input = Sanitize(input)
	lang := opts.Language
	if lang == "" {
		lang = s.detector.Detect(input)
		if !text.IsSupportedLanguage(lang) {
			s.logger.Debug("detector answered unsupported language, using default",
				"detected", lang, "default", s.cfg.Language)
			lang = s.cfg.Language
		}
	}

	chunks := text.Chunk(input, opts.ChunkLength, true)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	pieces := make([]piece, len(chunks))
	for i, chunk := range chunks {
		pieces[i] = piece{language: lang, text: chunk}
	}
	return s.run(ctx, pieces, lang, opts, requestKey(input, lang, opts))
}

// SynthesizeMixed converts language-tagged text to audio, one segment per
// tag region, in input order, with opts.Silence seconds of quiet between
// segments only. Text carrying no valid tag regions is an error.
func (s *Synthesizer) SynthesizeMixed(ctx context.Context, tagged string, opts Options) (*Result, error) {
	opts = opts.Resolve()
	opts.Language = "" // segment tags decide
	if result := ValidateRequest(tagged, opts); !result.Valid {
		return nil, result.Err()
	}

	segments := text.ParseTagged(Sanitize(tagged))
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	pieces := make([]piece, len(segments))
	for i, seg := range segments {
		pieces[i] = piece{language: seg.Language, text: seg.Text}
	}
	return s.run(ctx, pieces, "mixed", opts, requestKey(tagged, "mixed", opts))
}

// piece is one unit of inference: a single-language span of text.
type piece struct {
	language string
	text     string
}

// run synthesizes the pieces in order and assembles one buffer. Errors
// from the pipeline pass through unchanged.
func (s *Synthesizer) run(ctx context.Context, pieces []piece, lang string, opts Options, key string) (*Result, error) {
	start := time.Now()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if s.cache != nil && !opts.NoCache {
		if buf, ok := s.cache.Get(key); ok {
			s.logger.Debug("cache hit", "key", key[:8], "duration", buf.Duration())
			result := &Result{
				Audio:    buf,
				Duration: buf.Duration(),
				Language: lang,
				Voice:    opts.Voice,
				Segments: len(pieces),
				Cached:   true,
				Elapsed:  time.Since(start),
			}
			s.persist(result, opts.SavePath)
			return result, nil
		}
	}

	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	style, err := s.style(ctx, opts.Voice)
	if err != nil {
		return nil, err
	}

	speed, err := opts.Speed()
	if err != nil {
		return nil, err
	}
	steps := opts.Steps()
	sampleRate := s.engine.Model().SampleRate

	buffers := make([]audio.Buffer, 0, 2*len(pieces)-1)
	for i, p := range pieces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		normalized := text.Normalize(p.text)
		segment, err := s.engine.SynthesizeSegment(
			text.Tag(normalized, p.language), p.language, style, steps, speed)
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, audio.Encode(segment.Samples, sampleRate))
		if i < len(pieces)-1 {
			buffers = append(buffers, audio.Silence(opts.Silence, sampleRate))
		}
	}

	buf, err := audio.Concatenate(buffers)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !opts.NoCache {
		if err := s.cache.Put(key, buf); err != nil {
			s.logger.Warn("cache store failed", "err", err)
		}
	}

	result := &Result{
		Audio:    buf,
		Duration: buf.Duration(),
		Language: lang,
		Voice:    opts.Voice,
		Segments: len(pieces),
		Elapsed:  time.Since(start),
	}
	s.persist(result, opts.SavePath)

	s.logger.Debug("synthesized",
		"language", lang,
		"voice", opts.Voice,
		"segments", len(pieces),
		"steps", steps,
		"duration", fmt.Sprintf("%.2fs", result.Duration),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// style returns the voice style for key, loading and memoizing it on first
// use.
func (s *Synthesizer) style(ctx context.Context, key string) (*assets.VoiceStyle, error) {
	s.mu.Lock()
	if style, ok := s.styles[key]; ok {
		s.mu.Unlock()
		return style, nil
	}
	s.mu.Unlock()

	style, err := s.manager.LoadVoiceStyle(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.styles[key] = style
	s.mu.Unlock()
	return style, nil
}

// persist queues the buffer for writing. The write is asynchronous while
// the queue has room and falls back to a synchronous write when it does
// not; either way the buffer is already fully assembled. Failures are
// logged, not returned: the caller holds the complete audio regardless.
func (s *Synthesizer) persist(result *Result, path string) {
	if path == "" {
		return
	}
	result.Path = path
	w := pendingWrite{path: path, buf: result.Audio}

	s.writeWG.Add(1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.writeFile(w)
		return
	}
	select {
	case s.writes <- w:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.writeFile(w)
	}
}

func (s *Synthesizer) writer() {
	for w := range s.writes {
		s.writeFile(w)
	}
}

func (s *Synthesizer) writeFile(w pendingWrite) {
	defer s.writeWG.Done()
	if err := writeFileAtomic(w.path, w.buf); err != nil {
		s.logger.Error("writing audio file failed", "path", w.path, "err", err)
		return
	}
	s.logger.Debug("wrote audio file", "path", w.path, "bytes", len(w.buf))
}

// Flush blocks until every queued file write has finished.
func (s *Synthesizer) Flush() {
	s.writeWG.Wait()
}

// Close drains pending writes and releases the engine and cache. The
// synthesizer rejects requests afterwards.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.writes)
	s.writeWG.Wait()

	err := s.engine.Close()
	if s.cache != nil {
		if cerr := s.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// OutputName builds the deterministic file name for a request:
// tts_<language>_<voice>_<hash8>.wav under dir.
func OutputName(dir, language, voice, key string) string {
	if len(key) > 8 {
		key = key[:8]
	}
	return filepath.Join(dir, fmt.Sprintf("tts_%s_%s_%s.wav", language, voice, key))
}

// RequestKey fingerprints a request for cache keys and output names.
func RequestKey(input, language string, opts Options) string {
	return requestKey(input, language, opts.Resolve())
}

func requestKey(input, language string, opts Options) string {
	speed, err := opts.Speed()
	if err != nil {
		speed = 1.0
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%g\x00%g\x00%d",
		input, language, opts.Voice, opts.Steps(), speed, opts.Silence, opts.ChunkLength)
	return hex.EncodeToString(h.Sum(nil))
}

// writeFileAtomic writes via a temp file in the target directory and
// renames into place, so a crash never leaves a truncated WAV behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
