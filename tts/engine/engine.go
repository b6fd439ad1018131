// Package engine runs the four-graph synthesis pipeline over ONNX Runtime:
// duration prediction, text encoding, iterative latent refinement, and
// vocoding. One Engine owns one loaded copy of the graphs; execution is
// serialized because the sessions are only safe for sequential reuse.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/text"
)

var (
	// ErrNotInitialized is returned when synthesis is attempted before
	// Initialize has completed.
	ErrNotInitialized = errors.New("inference engine not initialized")

	// ErrUnsupportedLanguage is returned for language codes the model was
	// not trained on.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Config configures an Engine.
type Config struct {
	// AssetDir holds the model files (see assets.RequiredModelFiles).
	AssetDir string

	// Threads caps intra- and inter-op parallelism per graph. Zero keeps
	// the runtime default.
	Threads int

	// Logger receives per-segment debug output. Defaults to the standard
	// logger.
	Logger *log.Logger
}

// SegmentAudio is one segment's synthesized audio.
type SegmentAudio struct {
	Samples  []int16
	Duration float64
}

// Engine owns the loaded inference graphs. Initialize must complete before
// SynthesizeSegment; both are safe for concurrent use.
type Engine struct {
	cfg Config

	initOnce sync.Once
	initErr  error

	mu                sync.Mutex
	initialized       bool
	model             *assets.ModelConfig
	tokenizer         *Tokenizer
	durationPredictor *ort.DynamicAdvancedSession
	textEncoder       *ort.DynamicAdvancedSession
	vectorEstimator   *ort.DynamicAdvancedSession
	vocoder           *ort.DynamicAdvancedSession
	rng               *rand.Rand
}

// New creates an engine. No graphs are loaded until Initialize.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{cfg: cfg}
}

// Initialize loads the model configuration, the character indexer, and the
// four inference graphs. It is idempotent: concurrent first calls are
// serialized and only one performs the load; later calls return the first
// outcome without re-running.
func (e *Engine) Initialize() error {
	e.initOnce.Do(func() {
		start := time.Now()
		e.initErr = e.load()
		if e.initErr == nil {
			e.cfg.Logger.Debug("inference graphs loaded",
				"dir", e.cfg.AssetDir,
				"took", time.Since(start).Round(time.Millisecond))
		}
	})
	return e.initErr
}

func (e *Engine) load() error {
	if err := InitRuntime(); err != nil {
		return fmt.Errorf("initializing onnx runtime: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(e.cfg.AssetDir, "tts.json"))
	if err != nil {
		return fmt.Errorf("reading model config: %w", err)
	}
	model, err := assets.ParseModelConfig(data)
	if err != nil {
		return err
	}

	tokenizer, err := NewTokenizer(filepath.Join(e.cfg.AssetDir, "unicode_indexer.json"))
	if err != nil {
		return err
	}

	var opts *ort.SessionOptions
	if e.cfg.Threads > 0 {
		opts, err = ort.NewSessionOptions()
		if err != nil {
			return fmt.Errorf("creating session options: %w", err)
		}
		defer opts.Destroy()
		if err := opts.SetIntraOpNumThreads(e.cfg.Threads); err != nil {
			return err
		}
		if err := opts.SetInterOpNumThreads(e.cfg.Threads); err != nil {
			return err
		}
	}

	open := func(file string, inputs, outputs []string) (*ort.DynamicAdvancedSession, error) {
		return ort.NewDynamicAdvancedSession(filepath.Join(e.cfg.AssetDir, file), inputs, outputs, opts)
	}

	durationPredictor, err := open("duration_predictor.onnx",
		[]string{"text_ids", "style_dp", "text_mask"}, []string{"duration"})
	if err != nil {
		return fmt.Errorf("loading duration predictor: %w", err)
	}
	textEncoder, err := open("text_encoder.onnx",
		[]string{"text_ids", "style_ttl", "text_mask"}, []string{"text_emb"})
	if err != nil {
		durationPredictor.Destroy()
		return fmt.Errorf("loading text encoder: %w", err)
	}
	vectorEstimator, err := open("vector_estimator.onnx",
		[]string{"noisy_latent", "text_emb", "style_ttl", "latent_mask", "text_mask", "current_step", "total_step"},
		[]string{"denoised_latent"})
	if err != nil {
		durationPredictor.Destroy()
		textEncoder.Destroy()
		return fmt.Errorf("loading vector estimator: %w", err)
	}
	vocoder, err := open("vocoder.onnx", []string{"latent"}, []string{"wav_tts"})
	if err != nil {
		durationPredictor.Destroy()
		textEncoder.Destroy()
		vectorEstimator.Destroy()
		return fmt.Errorf("loading vocoder: %w", err)
	}

	e.mu.Lock()
	e.model = model
	e.tokenizer = tokenizer
	e.durationPredictor = durationPredictor
	e.textEncoder = textEncoder
	e.vectorEstimator = vectorEstimator
	e.vocoder = vocoder
	e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	e.initialized = true
	e.mu.Unlock()
	return nil
}

// Ready reports whether Initialize has completed successfully.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Model returns the loaded model configuration, or nil before Initialize.
func (e *Engine) Model() *assets.ModelConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// SynthesizeSegment runs the full pipeline for one text segment and returns
// its samples with the predicted duration in seconds. There is no
// cancellation: once the refinement loop starts, all steps run to
// completion.
func (e *Engine) SynthesizeSegment(input, language string, style *assets.VoiceStyle, totalSteps int, speed float64) (*SegmentAudio, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("cannot synthesize empty text")
	}
	if !text.IsSupportedLanguage(language) {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedLanguage, language, strings.Join(text.SupportedLanguages, ", "))
	}
	if totalSteps <= 0 {
		return nil, fmt.Errorf("total steps must be positive, got %d", totalSteps)
	}
	if speed <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %v", speed)
	}
	if err := style.Validate(e.model); err != nil {
		return nil, err
	}

	enc := e.tokenizer.Encode([]string{text.Tag(input, language)})

	idsTensor, err := ort.NewTensor(ort.NewShape(1, int64(enc.MaxLen)), enc.IDs)
	if err != nil {
		return nil, fmt.Errorf("creating text id tensor: %w", err)
	}
	defer idsTensor.Destroy()
	textMaskTensor, err := ort.NewTensor(ort.NewShape(1, 1, int64(enc.MaxLen)), enc.Mask)
	if err != nil {
		return nil, fmt.Errorf("creating text mask tensor: %w", err)
	}
	defer textMaskTensor.Destroy()
	ttlTensor, err := ort.NewTensor(ort.NewShape(style.TTL.Dims...), style.TTL.Data)
	if err != nil {
		return nil, fmt.Errorf("creating ttl style tensor: %w", err)
	}
	defer ttlTensor.Destroy()
	dpTensor, err := ort.NewTensor(ort.NewShape(style.DP.Dims...), style.DP.Data)
	if err != nil {
		return nil, fmt.Errorf("creating dp style tensor: %w", err)
	}
	defer dpTensor.Destroy()

	// Duration prediction; speed scales the raw duration down.
	dpOut := []ort.Value{nil}
	if err := e.durationPredictor.Run([]ort.Value{idsTensor, dpTensor, textMaskTensor}, dpOut); err != nil {
		return nil, fmt.Errorf("duration predictor: %w", err)
	}
	durTensor, ok := dpOut[0].(*ort.Tensor[float32])
	if !ok {
		dpOut[0].Destroy()
		return nil, fmt.Errorf("duration predictor returned %T, expected float32 tensor", dpOut[0])
	}
	durations := append([]float32(nil), durTensor.GetData()...)
	durTensor.Destroy()
	for i := range durations {
		durations[i] /= float32(speed)
	}
	duration := float64(durations[0])

	// Text embedding.
	encOut := []ort.Value{nil}
	if err := e.textEncoder.Run([]ort.Value{idsTensor, ttlTensor, textMaskTensor}, encOut); err != nil {
		return nil, fmt.Errorf("text encoder: %w", err)
	}
	textEmbTensor, ok := encOut[0].(*ort.Tensor[float32])
	if !ok {
		encOut[0].Destroy()
		return nil, fmt.Errorf("text encoder returned %T, expected float32 tensor", encOut[0])
	}
	defer textEmbTensor.Destroy()

	channels := e.model.LatentDim * e.model.ChunkCompressFactor
	latent, latentLen, latentMask := sampleNoisyLatent(e.rng, durations,
		e.model.SampleRate, e.model.ChunkSize(), channels)
	if latentLen == 0 {
		return nil, fmt.Errorf("predicted duration %.3fs yields an empty latent", duration)
	}

	latentMaskTensor, err := ort.NewTensor(ort.NewShape(1, 1, int64(latentLen)), latentMask)
	if err != nil {
		return nil, fmt.Errorf("creating latent mask tensor: %w", err)
	}
	defer latentMaskTensor.Destroy()
	totalStepTensor, err := ort.NewTensor(ort.NewShape(1), []float32{float32(totalSteps)})
	if err != nil {
		return nil, fmt.Errorf("creating total step tensor: %w", err)
	}
	defer totalStepTensor.Destroy()

	// Refinement runs each step in fixed order; every step consumes the
	// previous step's output.
	for step := 0; step < totalSteps; step++ {
		currentStepTensor, err := ort.NewTensor(ort.NewShape(1), []float32{float32(step)})
		if err != nil {
			return nil, fmt.Errorf("creating step tensor: %w", err)
		}
		latentTensor, err := ort.NewTensor(ort.NewShape(1, int64(channels), int64(latentLen)), latent)
		if err != nil {
			currentStepTensor.Destroy()
			return nil, fmt.Errorf("creating latent tensor: %w", err)
		}

		stepOut := []ort.Value{nil}
		err = e.vectorEstimator.Run([]ort.Value{
			latentTensor, textEmbTensor, ttlTensor, latentMaskTensor, textMaskTensor,
			currentStepTensor, totalStepTensor,
		}, stepOut)
		latentTensor.Destroy()
		currentStepTensor.Destroy()
		if err != nil {
			return nil, fmt.Errorf("latent refinement step %d: %w", step, err)
		}

		denoised, ok := stepOut[0].(*ort.Tensor[float32])
		if !ok {
			stepOut[0].Destroy()
			return nil, fmt.Errorf("latent refinement step %d returned %T, expected float32 tensor", step, stepOut[0])
		}
		out := denoised.GetData()
		if len(out) != len(latent) {
			denoised.Destroy()
			return nil, fmt.Errorf("latent refinement step %d returned %d values, expected %d", step, len(out), len(latent))
		}
		copy(latent, out)
		denoised.Destroy()
	}

	// Vocoding.
	finalTensor, err := ort.NewTensor(ort.NewShape(1, int64(channels), int64(latentLen)), latent)
	if err != nil {
		return nil, fmt.Errorf("creating final latent tensor: %w", err)
	}
	defer finalTensor.Destroy()

	vocOut := []ort.Value{nil}
	if err := e.vocoder.Run([]ort.Value{finalTensor}, vocOut); err != nil {
		return nil, fmt.Errorf("vocoder: %w", err)
	}
	wavTensor, ok := vocOut[0].(*ort.Tensor[float32])
	if !ok {
		vocOut[0].Destroy()
		return nil, fmt.Errorf("vocoder returned %T, expected float32 tensor", vocOut[0])
	}
	defer wavTensor.Destroy()
	wav := wavTensor.GetData()

	// The vocoder pads to whole latent frames; keep only the predicted
	// duration's worth of samples.
	wavLen := int(duration * float64(e.model.SampleRate))
	if wavLen > len(wav) {
		wavLen = len(wav)
	}
	if wavLen < 0 {
		wavLen = 0
	}

	samples := make([]int16, wavLen)
	for i := 0; i < wavLen; i++ {
		v := wav[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = int16(v * 32767)
	}

	e.cfg.Logger.Debug("synthesized segment",
		"language", language,
		"steps", totalSteps,
		"duration", fmt.Sprintf("%.2fs", duration))

	return &SegmentAudio{Samples: samples, Duration: duration}, nil
}

// Close releases the loaded graphs. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range []*ort.DynamicAdvancedSession{
		e.durationPredictor, e.textEncoder, e.vectorEstimator, e.vocoder,
	} {
		if s != nil {
			s.Destroy()
		}
	}
	e.durationPredictor = nil
	e.textEncoder = nil
	e.vectorEstimator = nil
	e.vocoder = nil
	e.initialized = false
	return nil
}
