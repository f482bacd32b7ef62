package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives the cache key for a synthesis request. Every parameter
// that changes the audible output is part of the key; two requests with the
// same fingerprint always yield byte-identical audio.
func Fingerprint(p Params) string {
	fields := []string{
		string(p.Engine),
		p.Text,
		p.Voice,
		string(p.Format),
		fmt.Sprintf("%d", p.SpeakerID),
		fmt.Sprintf("%.4f", p.LengthScale),
		fmt.Sprintf("%.4f", p.NoiseScale),
		fmt.Sprintf("%.4f", p.NoiseW),
		fmt.Sprintf("%.4f", p.SentenceSilence),
		p.GoogleVoiceName,
		fmt.Sprintf("%.4f", p.SpeakingRate),
		fmt.Sprintf("%.4f", p.Pitch),
	}

	hash := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(hash[:])[:16]
}
