// Package synth wires validation, the voice registry, the engines, the audio
// encoders and the cache into a single synthesis pipeline.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"piperd/internal/audio"
	"piperd/internal/cache"
	"piperd/internal/tts"
	"piperd/internal/tts/engines"
	"piperd/internal/voices"
)

// Synthesizer turns validated requests into encoded audio, cache-first.
type Synthesizer struct {
	piper      *engines.Piper
	google     *engines.Google
	registry   *voices.Registry
	cache      *cache.Manager
	transcoder *audio.Transcoder
	pcmFormat  audio.PCMFormat
}

// New creates a synthesizer over the given collaborators.
func New(piper *engines.Piper, google *engines.Google, registry *voices.Registry, cacheManager *cache.Manager) *Synthesizer {
	format := audio.DefaultPCMFormat()
	return &Synthesizer{
		piper:      piper,
		google:     google,
		registry:   registry,
		cache:      cacheManager,
		transcoder: audio.NewTranscoder(format),
		pcmFormat:  format,
	}
}

// Synthesize validates the request, serves it from cache when possible, and
// otherwise runs the requested engine and caches the encoded result.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	params, err := tts.Validate(req)
	if err != nil {
		return tts.Result{}, err
	}

	key := tts.Fingerprint(params)
	if data, ok := s.cache.Get(key); ok {
		log.Debug("Cache hit", "key", key, "bytes", len(data))
		return tts.Result{Audio: data, Format: params.Format, CacheHit: true}, nil
	}

	start := time.Now()

	var encoded []byte
	switch params.Engine {
	case tts.EnginePiper:
		encoded, err = s.synthesizePiper(ctx, params)
	case tts.EngineGoogle:
		encoded, err = s.google.Synthesize(ctx, params)
	default:
		err = fmt.Errorf("%w: %q", tts.ErrInvalidEngine, params.Engine)
	}
	if err != nil {
		return tts.Result{}, err
	}

	if err := s.cache.Put(key, encoded); err != nil {
		// A failed cache write costs a future hit, not this response.
		log.Warn("Cache write failed", "key", key, "err", err)
	}

	keyvals := []any{
		"engine", params.Engine,
		"voice", params.Voice,
		"format", params.Format,
		"chars", len(params.Text),
		"bytes", len(encoded),
		"duration", time.Since(start),
	}
	if seconds := audioSeconds(encoded, params.Format); seconds > 0 {
		keyvals = append(keyvals, "audio_seconds", fmt.Sprintf("%.1f", seconds))
	}
	log.Info("Synthesis completed", keyvals...)

	return tts.Result{Audio: encoded, Format: params.Format}, nil
}

// audioSeconds reports the playback length of a WAV result. MP3 payloads
// would need frame parsing, so they report 0 and are skipped in logs.
func audioSeconds(encoded []byte, format tts.Format) float64 {
	if format != tts.FormatWAV {
		return 0
	}
	pcm, pcmFormat, err := audio.DecodeWAV(encoded)
	if err != nil {
		return 0
	}
	return audio.Duration(len(pcm), pcmFormat)
}

func (s *Synthesizer) synthesizePiper(ctx context.Context, params tts.Params) ([]byte, error) {
	model, err := s.registry.Resolve(params.Voice)
	if err != nil {
		return nil, err
	}

	pcm, err := s.piper.Synthesize(ctx, model, params)
	if err != nil {
		return nil, err
	}

	switch params.Format {
	case tts.FormatMP3:
		if _, err := tts.CheckBinary("ffmpeg"); err != nil {
			return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure,
				"ffmpeg not installed, mp3 output unavailable", err)
		}
		mp3, err := s.transcoder.EncodeMP3(ctx, pcm)
		if err != nil {
			return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure, "mp3 encoding failed", err)
		}
		return mp3, nil
	default:
		return audio.EncodeWAV(pcm, s.pcmFormat), nil
	}
}

// Health describes the serviceability of the engines and their dependencies.
type Health struct {
	PiperInstalled  bool `json:"piper_installed"`
	FFmpegInstalled bool `json:"ffmpeg_installed"`
	VoiceCount      int  `json:"voice_count"`
	GoogleReady     bool `json:"google_configured"`
}

// Healthy reports whether the default engine is usable.
func (h Health) Healthy() bool {
	return h.PiperInstalled && h.VoiceCount > 0
}

// Health probes the external dependencies.
func (s *Synthesizer) Health() Health {
	return Health{
		PiperInstalled:  s.piper.Available(),
		FFmpegInstalled: s.transcoder.Available(),
		VoiceCount:      s.registry.Count(),
		GoogleReady:     s.google.Available(),
	}
}

// CacheStats exposes combined cache metrics.
func (s *Synthesizer) CacheStats() cache.StatsReport {
	return s.cache.Stats()
}

// Voices lists the registry contents.
func (s *Synthesizer) Voices() []voices.Voice {
	return s.registry.List()
}
