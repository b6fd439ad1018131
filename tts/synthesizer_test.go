package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/audio"
	"github.com/tonelab/supertonic/tts/engine"
	"github.com/tonelab/supertonic/tts/text"
)

const testSampleRate = 24000

type fakeCall struct {
	input    string
	language string
	steps    int
	speed    float64
}

// fakeEngine stands in for the ONNX pipeline: fixed samples per segment,
// calls recorded in order.
type fakeEngine struct {
	model   *assets.ModelConfig
	samples []int16
	calls   []fakeCall
	initErr error
	segErr  error
	ready   bool
	closed  bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		model: &assets.ModelConfig{
			SampleRate:          testSampleRate,
			BaseChunkSize:       8,
			ChunkCompressFactor: 2,
			LatentDim:           4,
		},
		samples: []int16{100, -100, 200, -200},
	}
}

func (f *fakeEngine) Initialize() error {
	if f.initErr != nil {
		return f.initErr
	}
	f.ready = true
	return nil
}

func (f *fakeEngine) Ready() bool { return f.ready }

func (f *fakeEngine) Model() *assets.ModelConfig { return f.model }

func (f *fakeEngine) SynthesizeSegment(input, language string, style *assets.VoiceStyle, totalSteps int, speed float64) (*engine.SegmentAudio, error) {
	if style == nil {
		return nil, errors.New("nil style")
	}
	if f.segErr != nil {
		return nil, f.segErr
	}
	f.calls = append(f.calls, fakeCall{input: input, language: language, steps: totalSteps, speed: speed})
	return &engine.SegmentAudio{
		Samples:  append([]int16(nil), f.samples...),
		Duration: float64(len(f.samples)) / testSampleRate,
	}, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

// mapCache is an in-memory Cache.
type mapCache struct {
	entries map[string]audio.Buffer
	puts    int
	gets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]audio.Buffer)}
}

func (c *mapCache) Get(key string) (audio.Buffer, bool) {
	c.gets++
	buf, ok := c.entries[key]
	return buf, ok
}

func (c *mapCache) Put(key string, buf audio.Buffer) error {
	c.puts++
	c.entries[key] = buf
	return nil
}

func (c *mapCache) Close() error { return nil }

// seedAssetRoot lays out a complete model directory with converted styles
// so nothing touches the network.
func seedAssetRoot(t *testing.T, voices ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range assets.RequiredModelFiles {
		if err := os.WriteFile(filepath.Join(root, name), []byte("placeholder"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	configJSON := `{"ae":{"sample_rate":24000,"base_chunk_size":8},"ttl":{"chunk_compress_factor":2,"latent_dim":4}}`
	if err := os.WriteFile(filepath.Join(root, "tts.json"), []byte(configJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, key := range voices {
		style := &assets.VoiceStyle{
			TTL: assets.StyleTensor{Dims: []int64{1, 4, 8}, Data: make([]float32, 32)},
			DP:  assets.StyleTensor{Dims: []int64{1, 1, 8}, Data: make([]float32, 8)},
		}
		if err := style.WriteFile(filepath.Join(root, "styles", key+".json")); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testConfig(t *testing.T, voices ...string) Config {
	t.Helper()
	if len(voices) == 0 {
		voices = []string{"M1"}
	}
	cfg := DefaultConfig()
	cfg.Assets.Root = seedAssetRoot(t, voices...)
	cfg.Cache.Enabled = false
	return cfg
}

func newTestSynthesizer(t *testing.T, cfg SynthesizerConfig) *Synthesizer {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	s, err := NewSynthesizer(cfg)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSynthesizePlainText(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	res, err := s.Synthesize(context.Background(), "Hello world", Options{Language: "en"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(fe.calls) != 1 {
		t.Fatalf("got %d engine calls, want 1", len(fe.calls))
	}
	call := fe.calls[0]
	if call.input != "<en>Hello world.</en>" {
		t.Errorf("engine input = %q, want tagged normalized text", call.input)
	}
	if call.language != "en" {
		t.Errorf("language = %q, want en", call.language)
	}
	if call.steps != 5 {
		t.Errorf("steps = %d, want balanced default 5", call.steps)
	}
	if call.speed != 1.0 {
		t.Errorf("speed = %v, want 1.0", call.speed)
	}

	want := audio.Encode(fe.samples, testSampleRate)
	if !bytes.Equal(res.Audio, want) {
		t.Error("audio should be the encoded fake samples")
	}
	if res.Language != "en" || res.Voice != "M1" || res.Segments != 1 || res.Cached {
		t.Errorf("unexpected result metadata: %+v", res)
	}
	if res.Duration != want.Duration() {
		t.Errorf("Duration = %v, want %v", res.Duration, want.Duration())
	}
}

func TestSynthesizeResolvesRateAndSteps(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	_, err := s.Synthesize(context.Background(), "Hi", Options{
		Language:   "en",
		Rate:       "+50%",
		TotalSteps: 10,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	call := fe.calls[0]
	if call.speed != 1.5 {
		t.Errorf("speed = %v, want 1.5", call.speed)
	}
	if call.steps != 10 {
		t.Errorf("steps = %d, want explicit 10", call.steps)
	}
}

func TestSynthesizeDetector(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{
		Config:   testConfig(t),
		Engine:   fe,
		Detector: text.PlaceholderDetector{Language: "ko"},
	})

	res, err := s.Synthesize(context.Background(), "안녕하세요", Options{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Language != "ko" {
		t.Errorf("Language = %q, want detected ko", res.Language)
	}
	if fe.calls[0].language != "ko" {
		t.Errorf("engine language = %q, want ko", fe.calls[0].language)
	}
}

func TestSynthesizeDetectorFallback(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{
		Config:   testConfig(t),
		Engine:   fe,
		Detector: text.PlaceholderDetector{Language: "de"},
	})

	res, err := s.Synthesize(context.Background(), "Guten Tag", Options{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// Detector answered an unsupported code; the configured default wins.
	if res.Language != "en" {
		t.Errorf("Language = %q, want fallback en", res.Language)
	}
}

func TestSynthesizeExplicitLanguageSkipsDetection(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{
		Config:   testConfig(t),
		Engine:   fe,
		Detector: text.PlaceholderDetector{Language: "ko"},
	})

	res, err := s.Synthesize(context.Background(), "Hola", Options{Language: "es"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Language != "es" {
		t.Errorf("Language = %q, want explicit es", res.Language)
	}
}

func TestSynthesizeChunksLongText(t *testing.T) {
	fe := newFakeEngine()
	cfg := testConfig(t)
	s := newTestSynthesizer(t, SynthesizerConfig{Config: cfg, Engine: fe})

	input := strings.Repeat("This is a sentence about nothing much. ", 6)
	opts := Options{Language: "en", ChunkLength: 80}
	wantChunks := len(text.Chunk(Sanitize(input), 80, true))
	if wantChunks < 2 {
		t.Fatalf("test input should chunk, got %d", wantChunks)
	}

	res, err := s.Synthesize(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(fe.calls) != wantChunks {
		t.Fatalf("got %d engine calls, want %d", len(fe.calls), wantChunks)
	}
	if res.Segments != wantChunks {
		t.Errorf("Segments = %d, want %d", res.Segments, wantChunks)
	}

	// Chunks are joined by silence between them only.
	silenceSec := float64(DefaultSilence)
	silenceSamples := int(silenceSec*testSampleRate + 0.5)
	wantData := wantChunks*len(fe.samples)*2 + (wantChunks-1)*silenceSamples*2
	if res.Audio.DataSize() != wantData {
		t.Errorf("DataSize = %d, want %d", res.Audio.DataSize(), wantData)
	}
}

func TestSynthesizeMixed(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t, "F1"), Engine: fe})

	res, err := s.SynthesizeMixed(context.Background(),
		"<en>Hello</en> <es>Hola</es>", Options{Voice: "F1", Silence: 0.3})
	if err != nil {
		t.Fatalf("SynthesizeMixed: %v", err)
	}

	if len(fe.calls) != 2 {
		t.Fatalf("got %d engine calls, want 2", len(fe.calls))
	}
	if fe.calls[0].language != "en" || fe.calls[1].language != "es" {
		t.Errorf("segment order wrong: %+v", fe.calls)
	}
	if fe.calls[0].input != "<en>Hello.</en>" || fe.calls[1].input != "<es>Hola.</es>" {
		t.Errorf("segment inputs wrong: %+v", fe.calls)
	}

	// Two segments plus exactly one 0.3 s silence between them.
	mixedSilenceSec := 0.3
	silenceSamples := int(mixedSilenceSec*testSampleRate + 0.5)
	wantData := 2*len(fe.samples)*2 + silenceSamples*2
	if res.Audio.DataSize() != wantData {
		t.Errorf("DataSize = %d, want %d", res.Audio.DataSize(), wantData)
	}
	if res.Language != "mixed" || res.Voice != "F1" || res.Segments != 2 {
		t.Errorf("unexpected result metadata: %+v", res)
	}
}

func TestSynthesizeMixedNoSegments(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	_, err := s.SynthesizeMixed(context.Background(), "no tags here", Options{})
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
	if len(fe.calls) != 0 {
		t.Errorf("engine should not run, got %d calls", len(fe.calls))
	}
}

func TestSynthesizeMixedDropsUnknownTags(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	// The unsupported region yields no segment and no error.
	res, err := s.SynthesizeMixed(context.Background(),
		"<en>Hi</en> <qq>Bonjour</qq>", Options{})
	if err != nil {
		t.Fatalf("SynthesizeMixed: %v", err)
	}
	if res.Segments != 1 || len(fe.calls) != 1 {
		t.Errorf("want 1 segment, got %d (calls %d)", res.Segments, len(fe.calls))
	}
	if fe.calls[0].language != "en" {
		t.Errorf("language = %q, want en", fe.calls[0].language)
	}
}

func TestSynthesizeValidation(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	tests := []struct {
		name  string
		input string
		opts  Options
		part  string
	}{
		{"empty text", "", Options{}, "empty"},
		{"bad voice", "Hi", Options{Voice: "m1"}, `"M1"`},
		{"bad language", "Hi", Options{Language: "de"}, "unsupported language"},
		{"bad rate", "Hi", Options{Rate: "brisk"}, "rate"},
		{"bad steps", "Hi", Options{TotalSteps: 7}, "steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Synthesize(context.Background(), tt.input, tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("err = %v, want ErrInvalidOptions", err)
			}
			if !strings.Contains(err.Error(), tt.part) {
				t.Errorf("error %q should mention %q", err, tt.part)
			}
		})
	}
	if len(fe.calls) != 0 {
		t.Errorf("engine should never run on invalid input, got %d calls", len(fe.calls))
	}
}

func TestSynthesizeControlCharsOnly(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	_, err := s.Synthesize(context.Background(), "\x01\x02", Options{Language: "en"})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestSynthesizeCache(t *testing.T) {
	fe := newFakeEngine()
	cache := newMapCache()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe, Cache: cache})

	first, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	if first.Cached || cache.puts != 1 {
		t.Fatalf("first call should miss and store (cached=%v puts=%d)", first.Cached, cache.puts)
	}

	second, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}
	if !second.Cached {
		t.Error("second call should hit the cache")
	}
	if len(fe.calls) != 1 {
		t.Errorf("engine ran %d times, want 1", len(fe.calls))
	}
	if !bytes.Equal(first.Audio, second.Audio) {
		t.Error("cached audio differs from the original")
	}
}

func TestSynthesizeNoCacheBypasses(t *testing.T) {
	fe := newFakeEngine()
	cache := newMapCache()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe, Cache: cache})

	for i := 0; i < 2; i++ {
		if _, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en", NoCache: true}); err != nil {
			t.Fatalf("Synthesize %d: %v", i, err)
		}
	}
	if cache.gets != 0 || cache.puts != 0 {
		t.Errorf("cache touched despite NoCache (gets=%d puts=%d)", cache.gets, cache.puts)
	}
	if len(fe.calls) != 2 {
		t.Errorf("engine ran %d times, want 2", len(fe.calls))
	}
}

func TestSynthesizePersists(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	path := filepath.Join(t.TempDir(), "out", "speech.wav")
	res, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en", SavePath: path})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Path != path {
		t.Errorf("Path = %q, want %q", res.Path, path)
	}

	s.Flush()
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading persisted file: %v", err)
	}
	if !bytes.Equal(written, res.Audio) {
		t.Error("persisted bytes differ from the result buffer")
	}
}

func TestSynthesizeSegmentErrorPassesThrough(t *testing.T) {
	fe := newFakeEngine()
	fe.segErr = fmt.Errorf("vector estimator: %w", errors.New("shape mismatch"))
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	_, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if err == nil || err.Error() != fe.segErr.Error() {
		t.Fatalf("err = %v, want the engine error unchanged", err)
	}
	if Classify(err) != KindInference {
		t.Errorf("Classify = %q, want %q", Classify(err), KindInference)
	}
}

func TestSynthesizeInitFailureSticks(t *testing.T) {
	fe := newFakeEngine()
	fe.initErr = errors.New("libonnxruntime not found")
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	_, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if err == nil || !strings.Contains(err.Error(), "libonnxruntime") {
		t.Fatalf("err = %v, want init failure", err)
	}
	_, err2 := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if err2 == nil || err2.Error() != err.Error() {
		t.Errorf("second call should report the same init failure, got %v", err2)
	}
}

func TestSynthesizeAfterClose(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fe.closed {
		t.Error("Close should close the engine")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	_, err := s.Synthesize(context.Background(), "Hello", Options{Language: "en"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestSynthesizeCanceledBetweenSegments(t *testing.T) {
	fe := newFakeEngine()
	s := newTestSynthesizer(t, SynthesizerConfig{Config: testConfig(t), Engine: fe})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Synthesize(ctx, "Hello", Options{Language: "en"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(fe.calls) != 0 {
		t.Errorf("engine ran %d times on a canceled context", len(fe.calls))
	}
}

func TestOutputName(t *testing.T) {
	got := OutputName("/out", "en", "M1", "abcdef0123456789")
	want := filepath.Join("/out", "tts_en_M1_abcdef01.wav")
	if got != want {
		t.Errorf("OutputName = %q, want %q", got, want)
	}

	short := OutputName(".", "mixed", "F1", "ab12")
	if short != filepath.Join(".", "tts_mixed_F1_ab12.wav") {
		t.Errorf("short key OutputName = %q", short)
	}
}

func TestRequestKey(t *testing.T) {
	base := RequestKey("Hello", "en", Options{})
	if base != RequestKey("Hello", "en", DefaultOptions()) {
		t.Error("zero options and explicit defaults should agree")
	}
	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(base))
	}

	variants := []Options{
		{Voice: "F1"},
		{TotalSteps: 10},
		{Rate: "1.5"},
		{Silence: 0.5},
		{ChunkLength: 100},
	}
	for i, opts := range variants {
		if RequestKey("Hello", "en", opts) == base {
			t.Errorf("variant %d should produce a different key", i)
		}
	}
	if RequestKey("Hello", "ko", Options{}) == base {
		t.Error("language should be part of the key")
	}
	if RequestKey("Hello!", "en", Options{}) == base {
		t.Error("text should be part of the key")
	}
}
