package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"piperd/internal/tts"
)

// googleEndpoint is the Cloud Text-to-Speech synthesize endpoint.
const googleEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// Google calls the Cloud Text-to-Speech REST API. The API produces the
// requested container natively (LINEAR16 WAV or MP3), so no local
// transcoding happens on this path.
type Google struct {
	endpoint    string
	accessToken string
	projectID   string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// GoogleConfig holds configuration for the Google engine.
type GoogleConfig struct {
	// AccessToken is the OAuth bearer token (GOOGLE_TTS_ACCESS_TOKEN).
	AccessToken string

	// ProjectID is the billing project (GOOGLE_CLOUD_PROJECT).
	ProjectID string

	// Endpoint overrides the API URL, for tests.
	Endpoint string

	// RequestsPerMinute rate-limits API calls. Defaults to 60.
	RequestsPerMinute int

	// Timeout bounds a single API call. Defaults to 30s.
	Timeout time.Duration
}

// NewGoogle creates a Google engine. Credentials are checked per call, not
// here, so the server can start without them and report the engine as
// unavailable in /healthz.
func NewGoogle(config GoogleConfig) *Google {
	if config.Endpoint == "" {
		config.Endpoint = googleEndpoint
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Google{
		endpoint:    config.Endpoint,
		accessToken: config.AccessToken,
		projectID:   config.ProjectID,
		httpClient:  &http.Client{Timeout: config.Timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}
}

// Available reports whether credentials are configured.
func (g *Google) Available() bool {
	return g.accessToken != "" && g.projectID != ""
}

// synthesizeRequest mirrors the REST API request body.
type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
		Pitch         float64 `json:"pitch"`
	} `json:"audioConfig"`
}

// Synthesize converts text to encoded audio in the requested format.
func (g *Google) Synthesize(ctx context.Context, params tts.Params) ([]byte, error) {
	if !g.Available() {
		return nil, tts.NewSynthesisError(tts.ErrorCodeGoogleUnavailable,
			"google engine not configured: set GOOGLE_TTS_ACCESS_TOKEN and GOOGLE_CLOUD_PROJECT",
			tts.ErrEngineUnavailable)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, tts.NewSynthesisError(tts.ErrorCodeTimeout, "rate limit wait canceled", err)
	}

	body := synthesizeRequest{}
	body.Input.Text = params.Text
	body.Voice.LanguageCode = LanguageCode(params.GoogleVoiceName)
	body.Voice.Name = params.GoogleVoiceName
	body.AudioConfig.AudioEncoding = audioEncoding(params.Format)
	body.AudioConfig.SpeakingRate = params.SpeakingRate
	body.AudioConfig.Pitch = params.Pitch

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("unable to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-user-project", g.projectID)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, tts.NewSynthesisError(tts.ErrorCodeGoogleUnavailable, "google API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, g.classifyAPIError(resp.StatusCode, string(b))
	}

	var respBody struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure, "unable to decode google response", err)
	}
	if respBody.AudioContent == "" {
		return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure,
			"empty audioContent in google response", tts.ErrSynthesisFailed)
	}

	audio, err := base64.StdEncoding.DecodeString(respBody.AudioContent)
	if err != nil {
		return nil, tts.NewSynthesisError(tts.ErrorCodeEngineFailure, "unable to decode audioContent", err)
	}

	log.Debug("Google synthesis completed",
		"voice", params.GoogleVoiceName,
		"chars", len(params.Text),
		"bytes", len(audio),
		"duration", time.Since(start))

	return audio, nil
}

func (g *Google) classifyAPIError(status int, body string) error {
	switch status {
	case http.StatusBadRequest:
		return tts.NewSynthesisError(tts.ErrorCodeInvalidInput,
			fmt.Sprintf("google API rejected the request: %s", body), tts.ErrSynthesisFailed)
	case http.StatusUnauthorized, http.StatusForbidden:
		return tts.NewSynthesisError(tts.ErrorCodePermission,
			"google API permission denied: check GOOGLE_TTS_ACCESS_TOKEN", tts.ErrEngineUnavailable)
	case http.StatusTooManyRequests:
		return tts.NewSynthesisError(tts.ErrorCodeGoogleUnavailable,
			"google API quota exceeded", tts.ErrEngineUnavailable)
	default:
		return tts.NewSynthesisError(tts.ErrorCodeEngineFailure,
			fmt.Sprintf("google API error %d: %s", status, body), tts.ErrSynthesisFailed)
	}
}

// LanguageCode derives the BCP-47 language code from a Google voice name:
// the first two dash-separated segments ("en-US-Standard-A" -> "en-US").
func LanguageCode(voiceName string) string {
	parts := strings.Split(voiceName, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

func audioEncoding(format tts.Format) string {
	if format == tts.FormatMP3 {
		return "MP3"
	}
	return "LINEAR16"
}
