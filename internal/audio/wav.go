package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of a canonical RIFF/WAVE/fmt/data header.
const wavHeaderSize = 44

// EncodeWAV wraps raw PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, format PCMFormat) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	// fmt sub-chunk: PCM, 16 bytes.
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(format.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(format.BytesPerSample()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(format.BitDepth))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out
}

// DecodeWAV extracts raw PCM and its format from a RIFF/WAVE payload. Only
// uncompressed PCM with a canonical 44-byte header is supported, which covers
// both Piper WAV output and Google LINEAR16 responses.
func DecodeWAV(data []byte) ([]byte, PCMFormat, error) {
	if len(data) < wavHeaderSize {
		return nil, PCMFormat{}, errors.New("WAV data too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, PCMFormat{}, errors.New("not a RIFF/WAVE payload")
	}
	if string(data[12:16]) != "fmt " {
		return nil, PCMFormat{}, errors.New("missing fmt sub-chunk")
	}
	if audioFormat := binary.LittleEndian.Uint16(data[20:22]); audioFormat != 1 {
		return nil, PCMFormat{}, fmt.Errorf("unsupported WAV audio format %d (want PCM)", audioFormat)
	}

	format := PCMFormat{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
	}

	if string(data[36:40]) != "data" {
		return nil, PCMFormat{}, errors.New("missing data sub-chunk")
	}
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize > len(data)-wavHeaderSize {
		dataSize = len(data) - wavHeaderSize
	}

	return data[wavHeaderSize : wavHeaderSize+dataSize], format, nil
}
