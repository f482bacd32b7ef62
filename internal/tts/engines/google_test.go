package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"piperd/internal/tts"
)

func newTestGoogle(endpoint string) *Google {
	return NewGoogle(GoogleConfig{
		AccessToken:       "test-token",
		ProjectID:         "test-project",
		Endpoint:          endpoint,
		RequestsPerMinute: 100000,
	})
}

func TestGoogleSynthesize(t *testing.T) {
	audio := []byte("fake-wav-bytes")

	var captured synthesizeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("x-goog-user-project"); got != "test-project" {
			t.Errorf("x-goog-user-project = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("unable to decode request: %v", err)
		}
		fmt.Fprintf(w, `{"audioContent": %q}`, base64.StdEncoding.EncodeToString(audio))
	}))
	defer server.Close()

	g := newTestGoogle(server.URL)
	params := tts.Params{
		Text:            "hello world",
		Format:          tts.FormatMP3,
		GoogleVoiceName: "en-GB-Wavenet-B",
		SpeakingRate:    1.25,
		Pitch:           -2,
	}

	got, err := g.Synthesize(context.Background(), params)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("audio = %q, want %q", got, audio)
	}

	if captured.Input.Text != "hello world" {
		t.Errorf("text = %q", captured.Input.Text)
	}
	if captured.Voice.Name != "en-GB-Wavenet-B" {
		t.Errorf("voice name = %q", captured.Voice.Name)
	}
	if captured.Voice.LanguageCode != "en-GB" {
		t.Errorf("language code = %q", captured.Voice.LanguageCode)
	}
	if captured.AudioConfig.AudioEncoding != "MP3" {
		t.Errorf("encoding = %q", captured.AudioConfig.AudioEncoding)
	}
	if captured.AudioConfig.SpeakingRate != 1.25 {
		t.Errorf("speaking rate = %v", captured.AudioConfig.SpeakingRate)
	}
	if captured.AudioConfig.Pitch != -2 {
		t.Errorf("pitch = %v", captured.AudioConfig.Pitch)
	}
}

func TestGoogleNotConfigured(t *testing.T) {
	g := NewGoogle(GoogleConfig{})

	if g.Available() {
		t.Fatal("Available returned true without credentials")
	}

	_, err := g.Synthesize(context.Background(), tts.Params{Text: "hello"})
	if err == nil {
		t.Fatal("Synthesize succeeded without credentials")
	}
	if tts.HTTPStatus(err) != 503 {
		t.Errorf("status = %d, want 503", tts.HTTPStatus(err))
	}
}

func TestGoogleAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		apiStatus  int
		wantCode   tts.ErrorCode
		wantStatus int
	}{
		{"bad request", http.StatusBadRequest, tts.ErrorCodeInvalidInput, 400},
		{"unauthorized", http.StatusUnauthorized, tts.ErrorCodePermission, 403},
		{"forbidden", http.StatusForbidden, tts.ErrorCodePermission, 403},
		{"quota exceeded", http.StatusTooManyRequests, tts.ErrorCodeGoogleUnavailable, 503},
		{"server error", http.StatusInternalServerError, tts.ErrorCodeEngineFailure, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.apiStatus)
			}))
			defer server.Close()

			g := newTestGoogle(server.URL)
			_, err := g.Synthesize(context.Background(), tts.Params{Text: "hello"})
			if err == nil {
				t.Fatal("Synthesize succeeded against a failing API")
			}

			var synthErr *tts.SynthesisError
			if !errors.As(err, &synthErr) {
				t.Fatalf("err = %T, want *SynthesisError", err)
			}
			if synthErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", synthErr.Code, tt.wantCode)
			}
			if tts.HTTPStatus(err) != tt.wantStatus {
				t.Errorf("status = %d, want %d", tts.HTTPStatus(err), tt.wantStatus)
			}
		})
	}
}

func TestGoogleEmptyAudioContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"audioContent": ""}`)
	}))
	defer server.Close()

	g := newTestGoogle(server.URL)
	_, err := g.Synthesize(context.Background(), tts.Params{Text: "hello"})
	if err == nil {
		t.Fatal("Synthesize succeeded with empty audioContent")
	}
	if tts.HTTPStatus(err) != 500 {
		t.Errorf("status = %d, want 500", tts.HTTPStatus(err))
	}
}

func TestGoogleUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // closed on purpose

	g := newTestGoogle(server.URL)
	_, err := g.Synthesize(context.Background(), tts.Params{Text: "hello"})
	if err == nil {
		t.Fatal("Synthesize succeeded against a dead endpoint")
	}
	if tts.HTTPStatus(err) != 503 {
		t.Errorf("status = %d, want 503", tts.HTTPStatus(err))
	}
}

func TestLanguageCode(t *testing.T) {
	tests := []struct {
		voice string
		want  string
	}{
		{"en-US-Standard-A", "en-US"},
		{"en-GB-Wavenet-B", "en-GB"},
		{"de-DE-Neural2-C", "de-DE"},
		{"en-US", "en-US"},
		{"nonsense", "en-US"},
		{"", "en-US"},
	}

	for _, tt := range tests {
		if got := LanguageCode(tt.voice); got != tt.want {
			t.Errorf("LanguageCode(%q) = %q, want %q", tt.voice, got, tt.want)
		}
	}
}

func TestAudioEncoding(t *testing.T) {
	if got := audioEncoding(tts.FormatMP3); got != "MP3" {
		t.Errorf("mp3 encoding = %q", got)
	}
	if got := audioEncoding(tts.FormatWAV); got != "LINEAR16" {
		t.Errorf("wav encoding = %q", got)
	}
}
