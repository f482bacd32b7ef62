package tts

import (
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// Parameter bounds accepted by Validate. Values outside these ranges either
// crash Piper or produce unusable audio, so they are rejected up front.
const (
	maxLengthScale     = 10.0
	maxNoiseScale      = 2.0
	maxNoiseW          = 2.0
	maxSentenceSilence = 10.0

	minSpeakingRate = 0.25
	maxSpeakingRate = 4.0
	minPitch        = -20.0
	maxPitch        = 20.0
)

// NormalizeEngine resolves engine aliases to a canonical Engine value.
func NormalizeEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "piper":
		return EnginePiper, nil
	case "google", "gcloud", "gtts":
		return EngineGoogle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEngine, name)
	}
}

// Validate checks a raw request against the documented bounds and returns
// fully defaulted synthesis parameters. No engine work happens before this.
func Validate(req Request) (Params, error) {
	p := Params{
		Text:            strings.TrimSpace(req.Text),
		Voice:           strings.TrimSpace(req.Voice),
		SpeakerID:       req.SpeakerID,
		LengthScale:     DefaultLengthScale,
		NoiseScale:      DefaultNoiseScale,
		NoiseW:          DefaultNoiseW,
		SentenceSilence: DefaultSentenceSilence,
		GoogleVoiceName: strings.TrimSpace(req.GoogleVoiceName),
		SpeakingRate:    DefaultSpeakingRate,
		Pitch:           DefaultPitch,
	}

	if p.Text == "" {
		return Params{}, ErrEmptyText
	}
	if n := utf8.RuneCountInString(p.Text); n > MaxTextLength {
		return Params{}, fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, MaxTextLength)
	}

	if p.Voice == "" {
		p.Voice = DefaultVoice
	}

	engine, err := NormalizeEngine(req.Engine)
	if err != nil {
		return Params{}, err
	}
	p.Engine = engine

	format := req.Format
	if format == "" {
		format = req.FileFormat
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "wav":
		p.Format = FormatWAV
	case "mp3":
		p.Format = FormatMP3
	default:
		return Params{}, fmt.Errorf("%w: got %q", ErrInvalidFormat, format)
	}

	if req.SpeakerID < 0 {
		return Params{}, fmt.Errorf("speaker_id must be >= 0, got %d", req.SpeakerID)
	}

	if req.LengthScale != nil {
		v := *req.LengthScale
		if v <= 0 || v > maxLengthScale {
			return Params{}, fmt.Errorf("length_scale must be in (0, %g], got %g", maxLengthScale, v)
		}
		p.LengthScale = v
	}
	if req.NoiseScale != nil {
		v := *req.NoiseScale
		if v < 0 || v > maxNoiseScale {
			return Params{}, fmt.Errorf("noise_scale must be in [0, %g], got %g", maxNoiseScale, v)
		}
		p.NoiseScale = v
	}
	if req.NoiseW != nil {
		v := *req.NoiseW
		if v < 0 || v > maxNoiseW {
			return Params{}, fmt.Errorf("noise_w must be in [0, %g], got %g", maxNoiseW, v)
		}
		p.NoiseW = v
	}
	if req.SentenceSilence != nil {
		v := *req.SentenceSilence
		if v < 0 || v > maxSentenceSilence {
			return Params{}, fmt.Errorf("sentence_silence must be in [0, %g] seconds, got %g", maxSentenceSilence, v)
		}
		p.SentenceSilence = v
	}

	if p.GoogleVoiceName == "" {
		p.GoogleVoiceName = DefaultGoogleVoiceName
	}
	if req.SpeakingRate != nil {
		v := *req.SpeakingRate
		if v < minSpeakingRate || v > maxSpeakingRate {
			return Params{}, fmt.Errorf("speaking_rate must be in [%g, %g], got %g", minSpeakingRate, maxSpeakingRate, v)
		}
		p.SpeakingRate = v
	}
	if req.Pitch != nil {
		v := *req.Pitch
		if v < minPitch || v > maxPitch {
			return Params{}, fmt.Errorf("pitch must be in [%g, %g] semitones, got %g", minPitch, maxPitch, v)
		}
		p.Pitch = v
	}

	return p, nil
}

// CheckBinary verifies that a required external binary is installed and
// returns install guidance when it is not.
func CheckBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH\n%s", ErrEngineUnavailable, name, installGuidance(name))
	}
	return path, nil
}

func installGuidance(binary string) string {
	switch binary {
	case "piper":
		return strings.Join([]string{
			"Install Piper TTS:",
			"  - Download a release from https://github.com/rhasspy/piper/releases",
			"  - Or: pip install piper-tts",
			"  - Ensure 'piper' is on PATH and voice models are in the voices directory",
		}, "\n")
	case "ffmpeg":
		return strings.Join([]string{
			"Install ffmpeg (required for mp3 output):",
			"  - Debian/Ubuntu: apt install ffmpeg",
			"  - macOS: brew install ffmpeg",
		}, "\n")
	default:
		return fmt.Sprintf("Install %s and ensure it is on PATH", binary)
	}
}
