package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 2000)
	format := DefaultPCMFormat()
	wav := EncodeWAV(pcm, format)

	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), wavHeaderSize+len(pcm))
	}

	if string(wav[0:4]) != "RIFF" {
		t.Errorf("missing RIFF marker: %q", wav[0:4])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF size = %d, want %d", got, 36+len(pcm))
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("missing WAVE marker: %q", wav[8:12])
	}
	if string(wav[12:16]) != "fmt " {
		t.Errorf("missing fmt marker: %q", wav[12:16])
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 22050 {
		t.Errorf("sample rate = %d, want 22050", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 44100 {
		t.Errorf("byte rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("missing data marker: %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	format := DefaultPCMFormat()
	pcm := make([]byte, 1024)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	decoded, gotFormat, err := DecodeWAV(EncodeWAV(pcm, format))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Error("decoded PCM differs from input")
	}
	if gotFormat != format {
		t.Errorf("format = %+v, want %+v", gotFormat, format)
	}
}

func TestDecodeWAVRejects(t *testing.T) {
	format := DefaultPCMFormat()
	valid := EncodeWAV(make([]byte, 100), format)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", valid[:20]},
		{"not riff", append([]byte("JUNK"), valid[4:]...)},
		{"not wave", func() []byte {
			d := append([]byte(nil), valid...)
			copy(d[8:12], "XXXX")
			return d
		}()},
		{"compressed format", func() []byte {
			d := append([]byte(nil), valid...)
			binary.LittleEndian.PutUint16(d[20:22], 85) // MP3
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("DecodeWAV succeeded, want error")
			}
		})
	}
}

func TestDecodeWAVTruncatedData(t *testing.T) {
	// Declared data size larger than the payload: decode clamps instead of
	// slicing out of range.
	wav := EncodeWAV(make([]byte, 100), DefaultPCMFormat())
	truncated := wav[:wavHeaderSize+50]

	pcm, _, err := DecodeWAV(truncated)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(pcm) != 50 {
		t.Errorf("pcm length = %d, want 50", len(pcm))
	}
}
