package engines

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"piperd/internal/tts"
	"piperd/internal/voices"
)

// Piper synthesizes speech by running a fresh piper process per chunk, with
// text on stdin and raw PCM on stdout. A fresh process per call sidesteps the
// stdin race that long-lived piper processes are prone to; concurrency is
// bounded by a shared semaphore so a burst of long requests cannot fork
// unbounded processes.
type Piper struct {
	binary  string
	timeout time.Duration
	sem     chan struct{}
}

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable name or path. Defaults to "piper".
	Binary string

	// Timeout bounds a single chunk synthesis. Defaults to 60s.
	Timeout time.Duration

	// Workers bounds concurrent piper processes. Defaults to 4.
	Workers int
}

// NewPiper creates a Piper engine.
func NewPiper(config PiperConfig) *Piper {
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	return &Piper{
		binary:  config.Binary,
		timeout: config.Timeout,
		sem:     make(chan struct{}, config.Workers),
	}
}

// Available reports whether the piper binary can be found.
func (p *Piper) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Synthesize converts text to raw PCM. Long texts are split into chunks and
// synthesized through the worker pool with order preserved; sentence silence
// is passed to every chunk except the last so chunk boundaries sound like the
// sentence breaks they are.
func (p *Piper) Synthesize(ctx context.Context, model voices.Model, params tts.Params) ([]byte, error) {
	if _, err := tts.CheckBinary(p.binary); err != nil {
		return nil, tts.NewSynthesisError(tts.ErrorCodePiperUnavailable,
			"piper binary not installed", err)
	}

	chunks := tts.SplitText(params.Text)
	if len(chunks) == 0 {
		return nil, tts.ErrEmptyText
	}

	if len(chunks) == 1 {
		return p.synthesizeChunk(ctx, model, params, chunks[0], params.SentenceSilence)
	}

	log.Debug("Splitting long text for synthesis", "chunks", len(chunks), "voice", params.Voice)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		lastError error
	)
	results := make([][]byte, len(chunks))

	for i, chunk := range chunks {
		wg.Add(1)
		go func(index int, text string) {
			defer wg.Done()

			// Only the last chunk drops the trailing silence.
			silence := params.SentenceSilence
			if index == len(chunks)-1 {
				silence = 0
			}

			audio, err := p.synthesizeChunk(ctx, model, params, text, silence)
			if err != nil {
				mu.Lock()
				lastError = fmt.Errorf("chunk %d/%d: %w", index+1, len(chunks), err)
				mu.Unlock()
				return
			}
			results[index] = audio
		}(i, chunk)
	}
	wg.Wait()

	if lastError != nil {
		return nil, lastError
	}

	var combined bytes.Buffer
	for _, audio := range results {
		combined.Write(audio)
		if combined.Len() > tts.MaxAudioSize {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", tts.ErrAudioTooLarge, combined.Len(), tts.MaxAudioSize)
		}
	}

	return combined.Bytes(), nil
}

func (p *Piper) synthesizeChunk(ctx context.Context, model voices.Model, params tts.Params, text string, sentenceSilence float64) ([]byte, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, tts.NewSynthesisError(tts.ErrorCodeTimeout, "synthesis canceled while queued", ctx.Err())
	}
	defer func() { <-p.sem }()

	args := p.buildArgs(model, params, sentenceSilence)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, args...)

	// Attach stdin before starting so piper never races our write.
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- cmd.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, tts.NewSynthesisError(tts.ErrorCodeTimeout, "synthesis timeout", ctx.Err())
			}
			return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure,
				fmt.Sprintf("piper failed, stderr: %s", stderr.String()), err)
		}
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Signal(os.Interrupt)
			select {
			case <-done:
			case <-time.After(100 * time.Millisecond):
				_ = cmd.Process.Kill()
				<-done
			}
		}
		return nil, tts.NewSynthesisError(tts.ErrorCodeTimeout,
			fmt.Sprintf("synthesis timeout after %s", p.timeout), ctx.Err())
	}

	audio := stdout.Bytes()
	if len(audio) == 0 {
		return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure,
			fmt.Sprintf("piper produced no audio, stderr: %s", stderr.String()), tts.ErrSynthesisFailed)
	}
	if len(audio) > tts.MaxAudioSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", tts.ErrAudioTooLarge, len(audio), tts.MaxAudioSize)
	}

	log.Debug("Piper chunk synthesized",
		"voice", params.Voice,
		"chars", len(text),
		"bytes", len(audio),
		"duration", time.Since(start))

	return audio, nil
}

// buildArgs constructs the piper command line for one chunk.
func (p *Piper) buildArgs(model voices.Model, params tts.Params, sentenceSilence float64) []string {
	args := []string{
		"--model", model.ModelPath,
		"--config", model.ConfigPath,
		"--output-raw",
		"--speaker", fmt.Sprintf("%d", params.SpeakerID),
		"--length-scale", fmt.Sprintf("%.2f", params.LengthScale),
		"--noise-scale", fmt.Sprintf("%.3f", params.NoiseScale),
		"--noise-w", fmt.Sprintf("%.3f", params.NoiseW),
	}
	if sentenceSilence > 0 {
		args = append(args, "--sentence-silence", fmt.Sprintf("%.2f", sentenceSilence))
	}
	return args
}
