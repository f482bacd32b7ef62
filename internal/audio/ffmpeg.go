package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ffmpegTimeout bounds a single transcode. Transcoding is CPU-bound and much
// faster than synthesis, so a stuck ffmpeg means something is wrong.
const ffmpegTimeout = 30 * time.Second

// mp3Bitrate is the constant bitrate used for MP3 output.
const mp3Bitrate = "128k"

// Transcoder converts raw PCM to MP3 by piping through an ffmpeg subprocess.
type Transcoder struct {
	binary string
	format PCMFormat
}

// NewTranscoder creates a transcoder for the given PCM input format.
func NewTranscoder(format PCMFormat) *Transcoder {
	return &Transcoder{
		binary: "ffmpeg",
		format: format,
	}
}

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// EncodeMP3 converts raw PCM to MP3. PCM goes in on stdin, MP3 comes out on
// stdout; nothing touches the filesystem.
func (t *Transcoder) EncodeMP3(ctx context.Context, pcm []byte) ([]byte, error) {
	if err := ValidatePCM(pcm, t.format); err != nil {
		return nil, fmt.Errorf("invalid PCM input: %w", err)
	}

	args := t.BuildMP3Args()

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary, args...)

	// Attach stdin before starting so ffmpeg never races our write.
	cmd.Stdin = bytes.NewReader(pcm)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ffmpeg timeout: %w", ctx.Err())
			}
			return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
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
		return nil, fmt.Errorf("ffmpeg timeout: %w", ctx.Err())
	}

	mp3 := stdout.Bytes()
	if len(mp3) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output, stderr: %s", stderr.String())
	}

	return mp3, nil
}

// BuildMP3Args exposes the argument list for testing.
func (t *Transcoder) BuildMP3Args() []string {
	return []string{
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", t.format.SampleRate),
		"-ac", fmt.Sprintf("%d", t.format.Channels),
		"-i", "-",
		"-f", "mp3",
		"-b:a", mp3Bitrate,
		"-",
	}
}
