// Package audio assembles synthesized samples into canonical WAV buffers:
// mono, 16-bit PCM, 44-byte header. Buffers produced here are byte-exact
// files; concatenation and silence synthesis operate on the same format.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	headerSize = 44

	// Canonical format fields. Everything this system emits is mono 16-bit
	// PCM; only the sample rate varies with the model.
	numChannels   = 1
	bitsPerSample = 16
	blockAlign    = numChannels * bitsPerSample / 8
)

var (
	// ErrInvalidBuffer is returned when a buffer is too short or does not
	// carry the RIFF/WAVE magic.
	ErrInvalidBuffer = errors.New("invalid WAV buffer")

	// ErrFormatMismatch is returned when buffers with differing sample
	// rate, channel count, or bit depth are concatenated. Buffers are never
	// resampled.
	ErrFormatMismatch = errors.New("WAV format mismatch")
)

// Buffer is a complete canonical WAV file held in memory.
type Buffer []byte

// Encode builds a canonical WAV buffer from 16-bit samples.
func Encode(samples []int16, sampleRate int) Buffer {
	dataSize := len(samples) * blockAlign
	buf := make(Buffer, headerSize+dataSize)
	writeHeader(buf, sampleRate, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return buf
}

// Silence builds a zero-sample buffer spanning round(duration*sampleRate)
// samples.
func Silence(duration float64, sampleRate int) Buffer {
	samples := int(math.Round(duration * float64(sampleRate)))
	if samples < 0 {
		samples = 0
	}
	buf := make(Buffer, headerSize+samples*blockAlign)
	writeHeader(buf, sampleRate, samples*blockAlign)
	return buf
}

// Concatenate merges buffers in order into a single buffer. A single input
// is returned unchanged. Every buffer must match the first one's sample
// rate, channel count, and bit depth; a mismatch fails fast rather than
// resampling. The result's header sizes cover the summed payloads.
func Concatenate(buffers []Buffer) (Buffer, error) {
	if len(buffers) == 0 {
		return nil, nil
	}
	if len(buffers) == 1 {
		return buffers[0], nil
	}

	first := buffers[0]
	if err := first.Validate(); err != nil {
		return nil, err
	}
	sampleRate := first.SampleRate()
	channels := first.Channels()
	bits := first.BitsPerSample()

	totalData := 0
	for i, b := range buffers {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("buffer %d: %w", i, err)
		}
		if b.SampleRate() != sampleRate || b.Channels() != channels || b.BitsPerSample() != bits {
			return nil, fmt.Errorf("%w: buffer %d is %dHz/%dch/%dbit, expected %dHz/%dch/%dbit",
				ErrFormatMismatch, i,
				b.SampleRate(), b.Channels(), b.BitsPerSample(),
				sampleRate, channels, bits)
		}
		totalData += b.DataSize()
	}

	out := make(Buffer, headerSize+totalData)
	writeHeader(out, sampleRate, totalData)
	offset := headerSize
	for _, b := range buffers {
		n := b.DataSize()
		copy(out[offset:], b[headerSize:headerSize+n])
		offset += n
	}
	return out, nil
}

// Validate checks the buffer carries a complete canonical header.
func (b Buffer) Validate() error {
	if len(b) < headerSize {
		return fmt.Errorf("%w: %d bytes, header needs %d", ErrInvalidBuffer, len(b), headerSize)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing RIFF/WAVE magic", ErrInvalidBuffer)
	}
	if len(b) < headerSize+b.DataSize() {
		return fmt.Errorf("%w: header claims %d data bytes, buffer has %d",
			ErrInvalidBuffer, b.DataSize(), len(b)-headerSize)
	}
	return nil
}

// SampleRate reads the header's sample rate field.
func (b Buffer) SampleRate() int {
	return int(binary.LittleEndian.Uint32(b[24:28]))
}

// Channels reads the header's channel count field.
func (b Buffer) Channels() int {
	return int(binary.LittleEndian.Uint16(b[22:24]))
}

// BitsPerSample reads the header's bit depth field.
func (b Buffer) BitsPerSample() int {
	return int(binary.LittleEndian.Uint16(b[34:36]))
}

// DataSize reads the header's data chunk size field.
func (b Buffer) DataSize() int {
	return int(binary.LittleEndian.Uint32(b[40:44]))
}

// Duration reports the buffer's play time in seconds.
func (b Buffer) Duration() float64 {
	byteRate := b.SampleRate() * b.Channels() * b.BitsPerSample() / 8
	if byteRate == 0 {
		return 0
	}
	return float64(b.DataSize()) / float64(byteRate)
}

// SampleCount reports how many samples the payload holds.
func (b Buffer) SampleCount() int {
	return b.DataSize() / blockAlign
}

// Samples extracts the payload as 16-bit samples.
func (b Buffer) Samples() []int16 {
	n := b.DataSize() / 2
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[headerSize+i*2:]))
	}
	return samples
}

func writeHeader(buf []byte, sampleRate, dataSize int) {
	byteRate := sampleRate * blockAlign

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], numChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
}
