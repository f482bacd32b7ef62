package audio

import (
	"context"
	"strings"
	"testing"
)

func TestBuildMP3Args(t *testing.T) {
	tr := NewTranscoder(DefaultPCMFormat())
	args := tr.BuildMP3Args()

	joined := strings.Join(args, " ")
	want := "-f s16le -ar 22050 -ac 1 -i - -f mp3 -b:a 128k -"
	if joined != want {
		t.Errorf("args = %q, want %q", joined, want)
	}
}

func TestEncodeMP3RejectsInvalidPCM(t *testing.T) {
	tr := NewTranscoder(DefaultPCMFormat())

	if _, err := tr.EncodeMP3(context.Background(), nil); err == nil {
		t.Error("empty PCM accepted")
	}
	if _, err := tr.EncodeMP3(context.Background(), make([]byte, 3)); err == nil {
		t.Error("misaligned PCM accepted")
	}
}

func TestTranscoderMissingBinary(t *testing.T) {
	tr := &Transcoder{binary: "piperd-no-such-ffmpeg", format: DefaultPCMFormat()}

	if tr.Available() {
		t.Error("Available() = true for a missing binary")
	}
	if _, err := tr.EncodeMP3(context.Background(), make([]byte, 4)); err == nil {
		t.Error("EncodeMP3 succeeded without the binary")
	}
}
