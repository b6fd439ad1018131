package tts

import (
	"errors"
	"time"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/audio"
	"github.com/tonelab/supertonic/tts/engine"
)

// Sentinel errors for the synthesis surface.
var (
	// Input errors
	ErrEmptyText   = errors.New("text is empty")
	ErrTextTooLong = errors.New("text exceeds the maximum length")
	ErrNoSegments  = errors.New("no language-tagged segments found")

	// Option errors
	ErrInvalidOptions = errors.New("invalid synthesis options")

	// Lifecycle errors
	ErrClosed = errors.New("synthesizer is closed")
)

// ErrorKind buckets an error for reporting surfaces. Errors travel out of
// the pipeline unchanged, so one classification at the boundary is enough.
type ErrorKind string

const (
	// KindParameter covers bad input: unknown voice, unsupported language,
	// out-of-range options. Never retried.
	KindParameter ErrorKind = "parameter"
	// KindAsset covers missing or corrupt model files and failed downloads.
	KindAsset ErrorKind = "asset"
	// KindFormat covers audio buffers that cannot be combined as-is.
	KindFormat ErrorKind = "format"
	// KindInference covers failures inside the loaded graphs.
	KindInference ErrorKind = "inference"
)

// Classify maps an error raised during synthesis to its reporting kind.
// Anything not recognized came out of the pipeline itself and is treated
// as an inference failure.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrNoSegments),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrClosed),
		errors.Is(err, assets.ErrInvalidVoice),
		errors.Is(err, engine.ErrUnsupportedLanguage):
		return KindParameter
	case errors.Is(err, assets.ErrAssetsMissing),
		errors.Is(err, assets.ErrDownloadFailed),
		errors.Is(err, assets.ErrStyleSizeMismatch):
		return KindAsset
	case errors.Is(err, audio.ErrInvalidBuffer),
		errors.Is(err, audio.ErrFormatMismatch):
		return KindFormat
	default:
		return KindInference
	}
}

// Retryable reports whether a failed request could succeed if submitted
// again without any change. Parameter and asset errors are deterministic;
// everything else may be transient.
func Retryable(err error) bool {
	if err == nil {
		return true
	}
	switch Classify(err) {
	case KindParameter, KindAsset:
		return false
	}
	return true
}

// ErrorSeverity ranks how loudly an error should be reported.
type ErrorSeverity int

const (
	// SeverityWarning marks degraded behavior that did not stop the request.
	SeverityWarning ErrorSeverity = iota
	// SeverityError marks a failed request.
	SeverityError
	// SeverityCritical marks a failure that leaves the process unusable,
	// such as a broken runtime or asset store.
	SeverityCritical
)

// SynthesisError carries an error together with where it surfaced. The
// pipeline never wraps its own errors in this type; reporting layers (CLI,
// HTTP envelope) attach the component and action before showing it.
type SynthesisError struct {
	Err       error
	Component string // subsystem that raised it (text, assets, engine, audio)
	Action    string // operation in flight (synthesize, download, validate)
	Severity  ErrorSeverity
	Timestamp time.Time
	Context   map[string]any
}

// Error prefixes the underlying message with the component and action, so
// a surfaced error reads "server: synthesize: no speakable segments".
func (e *SynthesisError) Error() string {
	msg := "unknown synthesis error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Component != "" && e.Action != "" {
		return e.Component + ": " + e.Action + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Kind classifies the underlying error.
func (e *SynthesisError) Kind() ErrorKind {
	return Classify(e.Err)
}

// NewSynthesisError annotates err with its component and action.
func NewSynthesisError(err error, component, action string) *SynthesisError {
	return &SynthesisError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the severity and returns the error for chaining.
func (e *SynthesisError) WithSeverity(severity ErrorSeverity) *SynthesisError {
	e.Severity = severity
	return e
}

// WithContext attaches a key/value detail pair.
func (e *SynthesisError) WithContext(key string, value any) *SynthesisError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
