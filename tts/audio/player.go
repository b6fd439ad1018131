package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/go-audio/wav"
)

// ErrPlayerClosed is returned when playback is requested after Close.
var ErrPlayerClosed = errors.New("audio player is closed")

// Player plays canonical buffers on the default output device. The underlying
// audio context is created once for a fixed sample rate and reused; buffers
// at a different rate are rejected rather than resampled.
type Player struct {
	ctx        *oto.Context
	sampleRate int
	closed     bool
}

// NewPlayer opens an audio context for mono 16-bit playback at sampleRate.
func NewPlayer(sampleRate int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: numChannels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("opening audio context: %w", err)
	}
	<-ready

	return &Player{ctx: ctx, sampleRate: sampleRate}, nil
}

// Play blocks until the buffer has played to completion.
func (p *Player) Play(buf Buffer) error {
	if p.closed {
		return ErrPlayerClosed
	}
	if err := buf.Validate(); err != nil {
		return err
	}

	// Re-read the format through a real decoder so a corrupt payload is
	// caught before it reaches the device.
	dec := wav.NewDecoder(bytes.NewReader(buf))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decoding buffer: %w", err)
	}
	if int(dec.SampleRate) != p.sampleRate {
		return fmt.Errorf("%w: buffer is %dHz, player opened at %dHz",
			ErrFormatMismatch, dec.SampleRate, p.sampleRate)
	}
	if int(dec.NumChans) != numChannels || int(dec.BitDepth) != bitsPerSample {
		return fmt.Errorf("%w: buffer is %dch/%dbit, player needs %dch/%dbit",
			ErrFormatMismatch, dec.NumChans, dec.BitDepth, numChannels, bitsPerSample)
	}

	player := p.ctx.NewPlayer(bytes.NewReader(buf[headerSize : headerSize+buf.DataSize()]))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return player.Close()
}

// Close releases the player. The audio context itself has no close operation
// and is dropped for garbage collection.
func (p *Player) Close() error {
	p.closed = true
	p.ctx = nil
	return nil
}
