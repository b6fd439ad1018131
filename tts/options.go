package tts

import (
	"sort"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/text"
)

// Quality presets. Each maps to a diffusion step count; more steps trade
// speed for cleaner audio.
const (
	QualityFast     = "fast"
	QualityBalanced = "balanced"
	QualityHigh     = "high"
	QualityUltra    = "ultra"
)

var qualitySteps = map[string]int{
	QualityFast:     3,
	QualityBalanced: 5,
	QualityHigh:     10,
	QualityUltra:    15,
}

// Speed presets accepted wherever a rate expression is.
var speedPresets = map[string]float64{
	"slow":       0.7,
	"normal":     1.0,
	"fast":       1.5,
	"ultra_fast": 2.0,
}

// Request limits. These mirror the published service limits so the library,
// CLI, and HTTP API agree on what is accepted.
const (
	MaxTextLength = 5000

	MinSpeed = 0.5
	MaxSpeed = 2.0

	MinChunkLength     = 50
	MaxChunkLength     = 1000
	DefaultChunkLength = text.DefaultMaxChunkLength

	MinSilence     = 0.1
	MaxSilence     = 2.0
	DefaultSilence = 0.3

	DefaultSteps = 5
)

// QualityNames returns the known quality presets in ascending step order.
func QualityNames() []string {
	names := make([]string, 0, len(qualitySteps))
	for name := range qualitySteps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return qualitySteps[names[i]] < qualitySteps[names[j]]
	})
	return names
}

// StepsForQuality resolves a quality preset to its step count. Unknown
// names get the balanced default.
func StepsForQuality(quality string) int {
	if steps, ok := qualitySteps[quality]; ok {
		return steps
	}
	return DefaultSteps
}

// Options control a single synthesis request. The zero value means
// "use the defaults"; Resolve fills them in.
type Options struct {
	// Voice is the voice key (M1..M5, F1..F5).
	Voice string
	// Language forces a language code. Empty means detect, falling back to
	// the configured default when detection answers an unsupported code.
	Language string
	// Rate is a rate expression: a multiplier ("1.5"), a percentage offset
	// ("+20%", "-50%"), or a preset name ("slow"). Empty means 1.0.
	Rate string
	// Quality selects a preset step count. Ignored when TotalSteps is set.
	Quality string
	// TotalSteps pins the diffusion step count directly.
	TotalSteps int
	// ChunkLength caps characters per chunk for long-text splitting.
	ChunkLength int
	// Silence is the seconds of silence inserted between segments.
	Silence float64
	// NoCache bypasses the synthesized-audio cache for this request.
	NoCache bool
	// SavePath persists the finished buffer to this file. Empty leaves
	// persistence to the caller.
	SavePath string
}

// DefaultOptions returns the request defaults: the default voice, balanced
// quality, neutral rate.
func DefaultOptions() Options {
	return Options{
		Voice:       assets.DefaultVoice,
		Quality:     QualityBalanced,
		ChunkLength: DefaultChunkLength,
		Silence:     DefaultSilence,
	}
}

// Resolve fills zero-valued fields with their defaults and returns the
// effective options. It does not validate; see Validate.
func (o Options) Resolve() Options {
	if o.Voice == "" {
		o.Voice = assets.DefaultVoice
	}
	if o.Quality == "" && o.TotalSteps == 0 {
		o.Quality = QualityBalanced
	}
	if o.ChunkLength == 0 {
		o.ChunkLength = DefaultChunkLength
	}
	if o.Silence == 0 {
		o.Silence = DefaultSilence
	}
	return o
}

// Steps returns the effective diffusion step count: TotalSteps when set,
// otherwise the quality preset.
func (o Options) Steps() int {
	if o.TotalSteps > 0 {
		return o.TotalSteps
	}
	return StepsForQuality(o.Quality)
}

// Speed resolves the rate expression to a multiplier. Preset names are
// looked up first; everything else goes through the rate parser.
func (o Options) Speed() (float64, error) {
	if speed, ok := speedPresets[o.Rate]; ok {
		return speed, nil
	}
	return text.ParseRate(o.Rate)
}
