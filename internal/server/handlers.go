package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/tonelab/supertonic/tts"
	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/text"
)

// synthesizeRequest is the JSON body for POST /validate and
// POST /synthesize.
type synthesizeRequest struct {
	Text string `json:"text"`
	// Mixed treats Text as language-tagged input with one segment per tag.
	Mixed           bool    `json:"mixed,omitempty"`
	Voice           string  `json:"voice,omitempty"`
	Language        string  `json:"language,omitempty"`
	Rate            string  `json:"rate,omitempty"`
	Quality         string  `json:"quality,omitempty"`
	TotalSteps      int     `json:"total_steps,omitempty"`
	MaxChunkLength  int     `json:"max_chunk_length,omitempty"`
	SilenceDuration float64 `json:"silence_duration,omitempty"`
	NoCache         bool    `json:"no_cache,omitempty"`
}

type synthesizeResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	AudioPath  string  `json:"audio_path,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Language   string  `json:"language"`
	Voice      string  `json:"voice"`
	TextLength int     `json:"text_length"`
	Cached     bool    `json:"cached,omitempty"`
}

// options merges the request with the server defaults.
func (r *synthesizeRequest) options(defaults tts.Options) tts.Options {
	opts := defaults
	if r.Voice != "" {
		opts.Voice = r.Voice
	}
	opts.Language = r.Language
	if r.Rate != "" {
		opts.Rate = r.Rate
	}
	if r.Quality != "" {
		opts.Quality = r.Quality
	}
	if r.TotalSteps != 0 {
		opts.TotalSteps = r.TotalSteps
	}
	if r.MaxChunkLength != 0 {
		opts.ChunkLength = r.MaxChunkLength
	}
	if r.SilenceDuration != 0 {
		opts.Silence = r.SilenceDuration
	}
	if r.NoCache {
		opts.NoCache = true
	}
	return opts
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "supertonic",
		"version": "2",
		"endpoints": map[string]string{
			"synthesize":      "POST /synthesize",
			"synthesize_file": "POST /synthesize/file",
			"validate":        "POST /validate",
			"voices":          "GET /voices",
			"languages":       "GET /languages",
			"health":          "GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.synth.Ready()
	status := "healthy"
	if !ready {
		status = "initializing"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"ready":  ready,
		"voices": assets.VoiceKeys(),
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := assets.Voices()
	writeJSON(w, http.StatusOK, map[string]any{
		"voices": voices,
		"count":  len(voices),
	})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	info, ok := assets.Voice(key)
	if !ok {
		message := fmt.Sprintf("unknown voice %q", key)
		if suggestion := assets.SuggestVoice(key); suggestion != "" {
			message = fmt.Sprintf("unknown voice %q (did you mean %q?)", key, suggestion)
		}
		writeError(w, http.StatusNotFound, string(tts.KindParameter), message)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"languages": text.SupportedLanguages,
		"count":     len(text.SupportedLanguages),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	opts := req.options(s.cfg.Defaults).Resolve()
	result := tts.ValidateRequest(req.Text, opts)

	chunks := 1
	if result.Valid && !req.Mixed {
		chunks = len(text.Chunk(req.Text, opts.ChunkLength, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       result.Valid,
		"errors":      result.Errors,
		"warnings":    result.Warnings,
		"text_length": utf8.RuneCountInString(req.Text),
		"chunk_count": chunks,
	})
}

// handleSynthesize runs a synthesis and answers with the output file path,
// mirroring a service whose clients poll a shared output directory.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	opts := req.options(s.cfg.Defaults)

	result, err := s.runSynthesis(r, req, &opts, true)
	if err != nil {
		s.writeSynthesisError(w, r, "synthesize", err)
		return
	}

	writeJSON(w, http.StatusOK, synthesizeResponse{
		Success:    true,
		Message:    "audio synthesized",
		AudioPath:  result.Path,
		Duration:   result.Duration,
		Language:   result.Language,
		Voice:      result.Voice,
		TextLength: utf8.RuneCountInString(req.Text),
		Cached:     result.Cached,
	})
}

// handleSynthesizeFile runs a synthesis and streams the WAV bytes back.
// Parameters come from the query string so curl one-liners work.
func (s *Server) handleSynthesizeFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &synthesizeRequest{
		Text:     q.Get("text"),
		Mixed:    q.Get("mixed") == "true",
		Voice:    q.Get("voice"),
		Language: q.Get("language"),
		Rate:     q.Get("rate"),
		Quality:  q.Get("quality"),
	}
	if steps := q.Get("total_steps"); steps != "" {
		n, err := strconv.Atoi(steps)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(tts.KindParameter),
				fmt.Sprintf("invalid total_steps %q", steps))
			return
		}
		req.TotalSteps = n
	}
	opts := req.options(s.cfg.Defaults)

	result, err := s.runSynthesis(r, req, &opts, false)
	if err != nil {
		s.writeSynthesisError(w, r, "synthesize_file", err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("supertonic_%s_%s.wav", result.Language, result.Voice)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// runSynthesis funnels one request through the serialization queue.
func (s *Server) runSynthesis(r *http.Request, req *synthesizeRequest, opts *tts.Options, persist bool) (*tts.Result, error) {
	if persist {
		language := opts.Language
		if req.Mixed {
			language = "mixed"
		} else if language == "" {
			language = s.cfg.Defaults.Language
		}
		opts.SavePath = s.outputName(req.Text, language, opts.Resolve().Voice, *opts)
	}

	var result *tts.Result
	err := s.synthesizeSerialized(r.Context(), func(ctx context.Context) error {
		var err error
		if req.Mixed {
			result, err = s.synth.SynthesizeMixed(ctx, req.Text, *opts)
		} else {
			result, err = s.synth.Synthesize(ctx, req.Text, *opts)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*synthesizeRequest, bool) {
	var req synthesizeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(tts.KindParameter),
			fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, string(tts.KindParameter), "text is required")
		return nil, false
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
