package tts

// Engine identifies a synthesis backend.
type Engine string

const (
	// EnginePiper is the local Piper binary (offline).
	EnginePiper Engine = "piper"

	// EngineGoogle is the Google Cloud Text-to-Speech REST API (online).
	EngineGoogle Engine = "google"
)

// Format identifies the audio container returned to the client.
type Format string

const (
	// FormatWAV is 16-bit PCM in a RIFF/WAVE container.
	FormatWAV Format = "wav"

	// FormatMP3 is MPEG-1 Layer III at 128 kbit/s.
	FormatMP3 Format = "mp3"
)

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	if f == FormatMP3 {
		return "audio/mpeg"
	}
	return "audio/wav"
}

// Extension returns the filename extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Request limits.
const (
	// MaxTextLength is the maximum accepted text size in characters.
	MaxTextLength = 5000

	// MaxAudioSize caps the total synthesized audio per request.
	MaxAudioSize = 100 * 1024 * 1024 // 100MB
)

// Default synthesis parameters. These mirror Piper's own model defaults so
// an empty request sounds the same as running the binary by hand.
const (
	DefaultVoice           = "en_us"
	DefaultLengthScale     = 1.0
	DefaultNoiseScale      = 0.667
	DefaultNoiseW          = 0.8
	DefaultSentenceSilence = 0.0

	DefaultGoogleVoiceName = "en-US-Standard-A"
	DefaultSpeakingRate    = 1.0
	DefaultPitch           = 0.0
)

// Request is the JSON body accepted by POST /tts.
//
// Pointer fields distinguish "absent" from an explicit zero, since 0.0 is a
// meaningful value for noise_scale, noise_w, sentence_silence and pitch.
type Request struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
	Engine string `json:"engine"`

	// FileFormat is an accepted alias for Format; Format wins when both
	// are set.
	FileFormat string `json:"file_format"`

	// Piper parameters.
	SpeakerID       int      `json:"speaker_id"`
	LengthScale     *float64 `json:"length_scale"`
	NoiseScale      *float64 `json:"noise_scale"`
	NoiseW          *float64 `json:"noise_w"`
	SentenceSilence *float64 `json:"sentence_silence"`

	// Google parameters.
	GoogleVoiceName string   `json:"google_voice_name"`
	SpeakingRate    *float64 `json:"speaking_rate"`
	Pitch           *float64 `json:"pitch"`
}

// Params is a fully validated, defaulted synthesis request. Engines and the
// cache fingerprint operate on Params, never on the raw Request.
type Params struct {
	Text   string
	Voice  string
	Format Format
	Engine Engine

	SpeakerID       int
	LengthScale     float64
	NoiseScale      float64
	NoiseW          float64
	SentenceSilence float64

	GoogleVoiceName string
	SpeakingRate    float64
	Pitch           float64
}

// Result is the outcome of a synthesis call.
type Result struct {
	Audio    []byte
	Format   Format
	CacheHit bool
}
