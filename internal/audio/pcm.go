// Package audio holds the PCM plumbing between the synthesis engines and the
// HTTP layer: raw sample math, the RIFF/WAVE container, and the ffmpeg
// subprocess used for MP3 output.
package audio

import (
	"errors"
	"fmt"
)

// PCMFormat describes raw PCM audio parameters.
type PCMFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultPCMFormat returns the format Piper emits with --output-raw:
// 22050 Hz, mono, signed 16-bit little-endian.
func DefaultPCMFormat() PCMFormat {
	return PCMFormat{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
	}
}

// BytesPerSample returns the number of bytes per sample frame.
func (f PCMFormat) BytesPerSample() int {
	return f.BitDepth / 8 * f.Channels
}

// ByteRate returns bytes of audio per second.
func (f PCMFormat) ByteRate() int {
	return f.SampleRate * f.BytesPerSample()
}

// ValidatePCM checks that data is non-empty and sample-aligned.
func ValidatePCM(data []byte, format PCMFormat) error {
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	bps := format.BytesPerSample()
	if len(data)%bps != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte samples", len(data), bps)
	}
	return nil
}

// Duration returns the playback duration in seconds of a PCM payload.
func Duration(dataLen int, format PCMFormat) float64 {
	if format.ByteRate() == 0 {
		return 0
	}
	return float64(dataLen) / float64(format.ByteRate())
}
