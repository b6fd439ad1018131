// Package server exposes the synthesis pipeline over HTTP. The surface is
// deliberately thin: handlers validate, funnel synthesis through the shared
// request queue so the loaded graphs are never run concurrently, and shape
// responses; all real work happens in the tts packages.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tonelab/supertonic/internal/queue"
	"github.com/tonelab/supertonic/tts"
)

// Synthesizer is the slice of the orchestrator the handlers use. The real
// implementation is *tts.Synthesizer.
type Synthesizer interface {
	Synthesize(ctx context.Context, input string, opts tts.Options) (*tts.Result, error)
	SynthesizeMixed(ctx context.Context, tagged string, opts tts.Options) (*tts.Result, error)
	Ready() bool
}

// Config wires a Server.
type Config struct {
	HTTP tts.ServerConfig

	// OutputDir receives WAV files written by POST /synthesize.
	OutputDir string

	// Defaults fills request fields the client leaves empty.
	Defaults tts.Options

	Logger *log.Logger
}

// Server serves the synthesis HTTP API.
type Server struct {
	cfg     Config
	synth   Synthesizer
	queue   *queue.Queue
	limiter *rate.Limiter
	logger  *log.Logger
	http    *http.Server
}

// New builds a server around synth. Call ListenAndServe to start it.
func New(cfg Config, synth Synthesizer) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	rpm := cfg.HTTP.RequestsPerMinute
	if rpm < 1 {
		rpm = 60
	}
	s := &Server{
		cfg:     cfg,
		synth:   synth,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		logger:  cfg.Logger,
	}
	s.http = &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, exported so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("GET /voices/{key}", s.handleVoice)
	mux.HandleFunc("GET /languages", s.handleLanguages)
	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("POST /synthesize", s.handleSynthesize)
	mux.HandleFunc("POST /synthesize/file", s.handleSynthesizeFile)
	return s.middleware(mux)
}

// ListenAndServe starts the queue worker and blocks serving requests until
// ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	depth := s.cfg.HTTP.QueueDepth
	if depth < 1 {
		depth = 32
	}
	s.queue = queue.New(ctx, depth)
	defer s.queue.Close()

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// middleware applies request IDs, rate limiting, body size limits, and
// access logging to every route.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		if !s.limiter.Allow() {
			s.logger.Warn("request rate limited", "id", requestID, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate_limit", "too many requests")
			return
		}
		if s.cfg.HTTP.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxBodyBytes)
		}

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"took", time.Since(start).Round(time.Millisecond))
	})
}

// synthesizeSerialized runs fn through the request queue when the server is
// running; tests that drive the handler directly fall back to calling it
// inline.
func (s *Server) synthesizeSerialized(ctx context.Context, fn func(context.Context) error) error {
	if s.queue == nil {
		return fn(ctx)
	}
	return s.queue.Do(ctx, queue.PriorityInteractive, fn)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, queue.ErrQueueClosed), errors.Is(err, tts.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch tts.Classify(err) {
	case tts.KindParameter:
		return http.StatusBadRequest
	case tts.KindAsset:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return "busy"
	case errors.Is(err, queue.ErrQueueClosed), errors.Is(err, tts.ErrClosed):
		return "shutting_down"
	}
	return string(tts.Classify(err))
}

// writeSynthesisError annotates a failed request with where it surfaced,
// logs it at the classified severity, and writes the error envelope.
func (s *Server) writeSynthesisError(w http.ResponseWriter, r *http.Request, action string, err error) {
	serr := tts.NewSynthesisError(err, "server", action).
		WithContext("path", r.URL.Path)
	if tts.Classify(err) == tts.KindAsset {
		// A broken asset store fails every request until an operator steps in.
		serr = serr.WithSeverity(tts.SeverityCritical)
	}
	s.logger.Error("request failed",
		"action", serr.Action,
		"kind", serr.Kind(),
		"retryable", tts.Retryable(err),
		"err", serr)
	writeError(w, statusForError(err), errorKind(err), serr.Error())
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}

// outputName builds the response path for POST /synthesize.
func (s *Server) outputName(input, language, voice string, opts tts.Options) string {
	dir := s.cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	return tts.OutputName(dir, language, voice, tts.RequestKey(input, language, opts))
}
