package assets

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StyleTensor is one tensor of a converted voice style, stored with explicit
// shape metadata.
type StyleTensor struct {
	Dims []int64   `json:"dims"`
	Data []float32 `json:"data"`
}

// VoiceStyle holds the two style tensors a voice contributes to inference:
// TTL conditions the text encoder and latent estimator, DP conditions the
// duration predictor.
type VoiceStyle struct {
	TTL StyleTensor `json:"style_ttl"`
	DP  StyleTensor `json:"style_dp"`
}

// ConvertVoiceBinary interprets raw as a flat little-endian 32-bit float
// array and splits it into the two style tensors. The first
// latent_dim*base_chunk_size values become TTL, the trailing
// base_chunk_size values become DP; any other total length is fatal.
func ConvertVoiceBinary(raw []byte, cfg *ModelConfig) (*VoiceStyle, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of 32-bit floats",
			ErrStyleSizeMismatch, len(raw))
	}

	total := len(raw) / 4
	ttlSize := cfg.LatentDim * cfg.BaseChunkSize
	expected := ttlSize + cfg.BaseChunkSize
	if total != expected {
		return nil, fmt.Errorf("%w: binary has %d floats, expected %d (latent_dim=%d, base_chunk_size=%d)",
			ErrStyleSizeMismatch, total, expected, cfg.LatentDim, cfg.BaseChunkSize)
	}

	floats := make([]float32, total)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return &VoiceStyle{
		TTL: StyleTensor{
			Dims: []int64{1, int64(cfg.LatentDim), int64(cfg.BaseChunkSize)},
			Data: floats[:ttlSize],
		},
		DP: StyleTensor{
			Dims: []int64{1, 1, int64(cfg.BaseChunkSize)},
			Data: floats[ttlSize:],
		},
	}, nil
}

// Validate checks the style tensors against the configured model shapes.
func (s *VoiceStyle) Validate(cfg *ModelConfig) error {
	wantTTL := []int64{1, int64(cfg.LatentDim), int64(cfg.BaseChunkSize)}
	wantDP := []int64{1, 1, int64(cfg.BaseChunkSize)}

	if err := checkTensor("style_ttl", s.TTL, wantTTL); err != nil {
		return err
	}
	return checkTensor("style_dp", s.DP, wantDP)
}

func checkTensor(name string, t StyleTensor, want []int64) error {
	if len(t.Dims) != len(want) {
		return fmt.Errorf("%w: %s has %d dims, expected %d",
			ErrStyleSizeMismatch, name, len(t.Dims), len(want))
	}
	var n int64 = 1
	for i, d := range t.Dims {
		if d != want[i] {
			return fmt.Errorf("%w: %s dims %v, expected %v",
				ErrStyleSizeMismatch, name, t.Dims, want)
		}
		n *= d
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("%w: %s has %d values, dims %v require %d",
			ErrStyleSizeMismatch, name, len(t.Data), t.Dims, n)
	}
	return nil
}

// WriteFile persists the style atomically: write to a temp file in the same
// directory, then rename.
func (s *VoiceStyle) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tempPath := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// ReadVoiceStyleFile parses a converted style file.
func ReadVoiceStyleFile(path string) (*VoiceStyle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading voice style: %w", err)
	}
	var style VoiceStyle
	if err := json.Unmarshal(data, &style); err != nil {
		return nil, fmt.Errorf("parsing voice style %s: %w", path, err)
	}
	return &style, nil
}
