package assets

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testModelConfig() *ModelConfig {
	return &ModelConfig{
		SampleRate:          24000,
		BaseChunkSize:       8,
		ChunkCompressFactor: 2,
		LatentDim:           4,
	}
}

func floatBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func sequence(n int) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}
	return values
}

func TestParseModelConfig(t *testing.T) {
	data := []byte(`{
		"ae": {"sample_rate": 24000, "base_chunk_size": 8},
		"ttl": {"chunk_compress_factor": 2, "latent_dim": 4}
	}`)

	cfg, err := ParseModelConfig(data)
	if err != nil {
		t.Fatalf("ParseModelConfig() error = %v", err)
	}
	want := testModelConfig()
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("ParseModelConfig() = %+v, want %+v", cfg, want)
	}
	if got := cfg.ChunkSize(); got != 16 {
		t.Errorf("ChunkSize() = %d, want 16", got)
	}
}

func TestParseModelConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "nope"},
		{"missing sections", `{}`},
		{"zero dimension", `{"ae": {"sample_rate": 24000, "base_chunk_size": 0}, "ttl": {"chunk_compress_factor": 2, "latent_dim": 4}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseModelConfig([]byte(tt.data)); err == nil {
				t.Error("ParseModelConfig() error = nil, want error")
			}
		})
	}
}

func TestConvertVoiceBinary(t *testing.T) {
	cfg := testModelConfig()
	values := sequence(cfg.LatentDim*cfg.BaseChunkSize + cfg.BaseChunkSize)

	style, err := ConvertVoiceBinary(floatBytes(values), cfg)
	if err != nil {
		t.Fatalf("ConvertVoiceBinary() error = %v", err)
	}

	if want := []int64{1, 4, 8}; !reflect.DeepEqual(style.TTL.Dims, want) {
		t.Errorf("TTL.Dims = %v, want %v", style.TTL.Dims, want)
	}
	if want := []int64{1, 1, 8}; !reflect.DeepEqual(style.DP.Dims, want) {
		t.Errorf("DP.Dims = %v, want %v", style.DP.Dims, want)
	}
	if !reflect.DeepEqual(style.TTL.Data, values[:32]) {
		t.Error("TTL.Data does not hold the leading floats")
	}
	if !reflect.DeepEqual(style.DP.Data, values[32:]) {
		t.Error("DP.Data does not hold the trailing floats")
	}
	if err := style.Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestConvertVoiceBinarySizeMismatch(t *testing.T) {
	cfg := testModelConfig()

	_, err := ConvertVoiceBinary(floatBytes(sequence(39)), cfg)
	if !errors.Is(err, ErrStyleSizeMismatch) {
		t.Fatalf("ConvertVoiceBinary() error = %v, want ErrStyleSizeMismatch", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "39") || !strings.Contains(msg, "40") {
		t.Errorf("error %q does not name actual and expected counts", msg)
	}
}

func TestConvertVoiceBinaryUnaligned(t *testing.T) {
	_, err := ConvertVoiceBinary([]byte{1, 2, 3}, testModelConfig())
	if !errors.Is(err, ErrStyleSizeMismatch) {
		t.Errorf("ConvertVoiceBinary() error = %v, want ErrStyleSizeMismatch", err)
	}
}

func TestVoiceStyleValidate(t *testing.T) {
	cfg := testModelConfig()

	tests := []struct {
		name    string
		mutate  func(*VoiceStyle)
		wantErr bool
	}{
		{"valid", func(*VoiceStyle) {}, false},
		{"wrong ttl dims", func(s *VoiceStyle) { s.TTL.Dims = []int64{1, 5, 8} }, true},
		{"wrong dp dims", func(s *VoiceStyle) { s.DP.Dims = []int64{1, 2, 8} }, true},
		{"missing dim", func(s *VoiceStyle) { s.TTL.Dims = []int64{4, 8} }, true},
		{"truncated data", func(s *VoiceStyle) { s.DP.Data = s.DP.Data[:3] }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style, err := ConvertVoiceBinary(floatBytes(sequence(40)), cfg)
			if err != nil {
				t.Fatalf("ConvertVoiceBinary() error = %v", err)
			}
			tt.mutate(style)
			err = style.Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVoiceStyleRoundTrip(t *testing.T) {
	cfg := testModelConfig()
	style, err := ConvertVoiceBinary(floatBytes(sequence(40)), cfg)
	if err != nil {
		t.Fatalf("ConvertVoiceBinary() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "styles", "M1.json")
	if err := style.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loaded, err := ReadVoiceStyleFile(path)
	if err != nil {
		t.Fatalf("ReadVoiceStyleFile() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, style) {
		t.Error("loaded style differs from written style")
	}
}
