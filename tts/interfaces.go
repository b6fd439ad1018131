package tts

import (
	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/audio"
	"github.com/tonelab/supertonic/tts/engine"
)

// Inference is the slice of the ONNX engine the synthesizer drives. The
// real implementation is engine.Engine; tests substitute a fake so the
// pipeline can run without the runtime library or model files.
type Inference interface {
	// Initialize loads the tokenizer and the four inference graphs.
	Initialize() error

	// Ready reports whether Initialize has completed.
	Ready() bool

	// Model returns the loaded model dimensions, nil before Initialize.
	Model() *assets.ModelConfig

	// SynthesizeSegment runs the full pipeline for one single-language
	// piece of text.
	SynthesizeSegment(input, language string, style *assets.VoiceStyle, totalSteps int, speed float64) (*engine.SegmentAudio, error)

	// Close releases the graphs.
	Close() error
}

// Cache stores finished audio keyed by a request fingerprint. A nil Cache
// on the synthesizer disables caching entirely.
type Cache interface {
	// Get returns the cached buffer for key, if present.
	Get(key string) (audio.Buffer, bool)

	// Put stores a finished buffer under key.
	Put(key string, buf audio.Buffer) error

	// Close flushes any cache state to disk.
	Close() error
}
