package engines

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"piperd/internal/tts"
	"piperd/internal/voices"
)

func TestBuildArgs(t *testing.T) {
	p := NewPiper(PiperConfig{})
	model := voices.Model{
		ModelPath:  "/voices/en_US-ryan-high.onnx",
		ConfigPath: "/voices/en_US-ryan-high.onnx.json",
	}
	params := tts.Params{
		SpeakerID:   3,
		LengthScale: 1.5,
		NoiseScale:  0.667,
		NoiseW:      0.8,
	}

	t.Run("with sentence silence", func(t *testing.T) {
		args := p.buildArgs(model, params, 0.25)
		want := "--model /voices/en_US-ryan-high.onnx " +
			"--config /voices/en_US-ryan-high.onnx.json " +
			"--output-raw --speaker 3 --length-scale 1.50 " +
			"--noise-scale 0.667 --noise-w 0.800 --sentence-silence 0.25"
		if got := strings.Join(args, " "); got != want {
			t.Errorf("args = %q, want %q", got, want)
		}
	})

	t.Run("zero silence omits the flag", func(t *testing.T) {
		args := p.buildArgs(model, params, 0)
		for _, arg := range args {
			if arg == "--sentence-silence" {
				t.Error("sentence-silence flag present for zero silence")
			}
		}
	})
}

func TestPiperDefaults(t *testing.T) {
	p := NewPiper(PiperConfig{})
	if p.binary != "piper" {
		t.Errorf("binary = %q, want piper", p.binary)
	}
	if p.timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", p.timeout)
	}
	if cap(p.sem) != 4 {
		t.Errorf("workers = %d, want 4", cap(p.sem))
	}
}

func TestPiperUnavailable(t *testing.T) {
	p := NewPiper(PiperConfig{Binary: "piper-test-no-such-binary"})

	if p.Available() {
		t.Fatal("Available returned true for a nonexistent binary")
	}

	_, err := p.Synthesize(context.Background(), voices.Model{}, tts.Params{Text: "hello"})
	if err == nil {
		t.Fatal("Synthesize succeeded without the binary")
	}
	var synthErr *tts.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err = %T, want *SynthesisError", err)
	}
	if synthErr.Code != tts.ErrorCodePiperUnavailable {
		t.Errorf("code = %q, want %q", synthErr.Code, tts.ErrorCodePiperUnavailable)
	}
	if tts.HTTPStatus(err) != 501 {
		t.Errorf("status = %d, want 501", tts.HTTPStatus(err))
	}
	if !strings.Contains(err.Error(), "not found in PATH") {
		t.Errorf("err = %q, want install guidance", err)
	}
}

func TestSynthesizeChunkCanceledWhileQueued(t *testing.T) {
	p := NewPiper(PiperConfig{Workers: 1})

	// Occupy the only worker slot so the next chunk queues.
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.synthesizeChunk(ctx, voices.Model{}, tts.Params{}, "hello", 0)
	if err == nil {
		t.Fatal("synthesizeChunk succeeded with a canceled context")
	}
	var synthErr *tts.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err = %T, want *SynthesisError", err)
	}
	if synthErr.Code != tts.ErrorCodeTimeout {
		t.Errorf("code = %q, want %q", synthErr.Code, tts.ErrorCodeTimeout)
	}
}
