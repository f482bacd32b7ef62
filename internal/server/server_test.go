package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"piperd/internal/cache"
	"piperd/internal/synth"
	"piperd/internal/tts/engines"
	"piperd/internal/voices"
)

// newTestServer builds a server whose piper binary is absent and whose
// Google endpoint is the provided stub. Tests that only need error paths
// pass an empty endpoint.
func newTestServer(t *testing.T, googleEndpoint string) *Server {
	t.Helper()

	registry, err := voices.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })

	cacheConfig := cache.DefaultConfig()
	cacheConfig.DiskPath = t.TempDir()
	manager, err := cache.NewManager(cacheConfig)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	piper := engines.NewPiper(engines.PiperConfig{Binary: "piper-test-no-such-binary"})

	googleConfig := engines.GoogleConfig{RequestsPerMinute: 100000}
	if googleEndpoint != "" {
		googleConfig.AccessToken = "test-token"
		googleConfig.ProjectID = "test-project"
		googleConfig.Endpoint = googleEndpoint
	}
	google := engines.NewGoogle(googleConfig)

	synthesizer := synth.New(piper, google, registry, manager)
	return New(synthesizer, Config{SynthesisTimeout: 5 * time.Second})
}

// newGoogleStub serves a fixed audio payload in the Cloud TTS response shape.
func newGoogleStub(t *testing.T, audio []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"audioContent": %q}`, base64.StdEncoding.EncodeToString(audio))
	}))
	t.Cleanup(server.Close)
	return server
}

func postTTS(t *testing.T, s *Server, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, 10000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unable to decode error body: %v", err)
	}
	return body.Error
}

func TestTTSValidationErrors(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSubstr string
	}{
		{"invalid json", `{not json`, 400, "invalid JSON"},
		{"empty text", `{"text": "  "}`, 400, "text is required"},
		{"text too long", fmt.Sprintf(`{"text": %q}`, strings.Repeat("a", 5001)), 400, "text too long"},
		{"bad format", `{"text": "hi", "file_format": "ogg"}`, 400, "invalid format"},
		{"bad engine", `{"text": "hi", "engine": "festival"}`, 400, "invalid engine"},
		{"bad length scale", `{"text": "hi", "length_scale": -1}`, 400, "length_scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTTS(t, s, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if msg := decodeError(t, resp); !strings.Contains(msg, tt.wantSubstr) {
				t.Errorf("error = %q, want substring %q", msg, tt.wantSubstr)
			}
		})
	}
}

func TestRequestLoggerStatusOnErrors(t *testing.T) {
	s := newTestServer(t, "")

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	resp := postTTS(t, s, `{"text": "  "}`)
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, "status=400") {
		t.Errorf("log output %q does not carry status=400", out)
	}
	if strings.Contains(out, "status=200") {
		t.Errorf("log output %q claims status=200 for a failed request", out)
	}
}

func TestTTSFormatFieldAlias(t *testing.T) {
	stub := newGoogleStub(t, []byte("mp3-bytes"))
	s := newTestServer(t, stub.URL)

	for _, body := range []string{
		`{"text": "hello", "engine": "google", "format": "mp3"}`,
		`{"text": "hello there", "engine": "google", "file_format": "mp3"}`,
	} {
		resp := postTTS(t, s, body)
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d for %s", resp.StatusCode, body)
		}
		if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
			t.Errorf("Content-Type = %q for %s, want audio/mpeg", got, body)
		}
		resp.Body.Close()
	}
}

func TestTTSUnknownVoice(t *testing.T) {
	s := newTestServer(t, "")

	resp := postTTS(t, s, `{"text": "hi", "voice": "no-such-voice"}`)
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if msg := decodeError(t, resp); !strings.Contains(msg, "unknown voice") {
		t.Errorf("error = %q", msg)
	}
}

// writeFakeModel drops a fake ONNX model and its sidecar config into dir.
func writeFakeModel(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("onnx"), 0o644); err != nil {
		t.Fatalf("unable to write model: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("unable to write config: %v", err)
	}
}

// A resolvable voice with no piper binary must map to 501, not a voice error.
func TestTTSPiperNotInstalled(t *testing.T) {
	voicesDir := t.TempDir()
	writeFakeModel(t, voicesDir, "en_US-ryan-high.onnx")
	registry, err := voices.NewRegistry(voicesDir)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })

	cacheConfig := cache.DefaultConfig()
	cacheConfig.DiskPath = t.TempDir()
	manager, err := cache.NewManager(cacheConfig)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	piper := engines.NewPiper(engines.PiperConfig{Binary: "piper-test-no-such-binary"})
	google := engines.NewGoogle(engines.GoogleConfig{})
	srv := New(synth.New(piper, google, registry, manager), Config{})

	resp := postTTS(t, srv, `{"text": "hello"}`)
	defer resp.Body.Close()

	if resp.StatusCode != 501 {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
	msg := decodeError(t, resp)
	if !strings.Contains(msg, "piper binary not installed") {
		t.Errorf("error = %q", msg)
	}
	if !strings.Contains(msg, "not found in PATH") {
		t.Errorf("error = %q, want install guidance", msg)
	}
}

func TestTTSGoogleUnconfigured(t *testing.T) {
	s := newTestServer(t, "")

	resp := postTTS(t, s, `{"text": "hi", "engine": "google"}`)
	defer resp.Body.Close()

	if resp.StatusCode != 503 {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestTTSGoogleSuccess(t *testing.T) {
	audio := []byte("google-wav-audio")
	stub := newGoogleStub(t, audio)
	s := newTestServer(t, stub.URL)

	resp := postTTS(t, s, `{"text": "hello world", "engine": "google"}`)
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", got)
	}
	if got := resp.Header.Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment; filename=output_") {
		t.Errorf("Content-Disposition = %q", disposition)
	}
	if !strings.HasSuffix(disposition, ".wav") {
		t.Errorf("Content-Disposition = %q, want .wav suffix", disposition)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unable to read body: %v", err)
	}
	if !bytes.Equal(body, audio) {
		t.Errorf("body = %q, want %q", body, audio)
	}
}

func TestTTSGoogleMP3ContentType(t *testing.T) {
	stub := newGoogleStub(t, []byte("mp3-bytes"))
	s := newTestServer(t, stub.URL)

	resp := postTTS(t, s, `{"text": "hello", "engine": "google", "file_format": "mp3"}`)
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if !strings.HasSuffix(resp.Header.Get("Content-Disposition"), ".mp3") {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}
}

func TestTTSCacheHit(t *testing.T) {
	stub := newGoogleStub(t, []byte("cached-audio"))
	s := newTestServer(t, stub.URL)

	body := `{"text": "cache me", "engine": "google"}`

	first := postTTS(t, s, body)
	first.Body.Close()
	if got := first.Header.Get("X-Cache"); got != "miss" {
		t.Fatalf("first X-Cache = %q, want miss", got)
	}

	second := postTTS(t, s, body)
	defer second.Body.Close()
	if got := second.Header.Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}

	payload, err := io.ReadAll(second.Body)
	if err != nil {
		t.Fatalf("unable to read body: %v", err)
	}
	if string(payload) != "cached-audio" {
		t.Errorf("cached body = %q", payload)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/voices", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Voices []voices.Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unable to decode body: %v", err)
	}
	if len(body.Voices) != 0 {
		t.Errorf("voices = %d, want 0 for an empty registry", len(body.Voices))
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	// No piper binary and no voices: unhealthy.
	if resp.StatusCode != 503 {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	var health synth.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("unable to decode body: %v", err)
	}
	if health.PiperInstalled {
		t.Error("piper_installed = true")
	}
	if health.VoiceCount != 0 {
		t.Errorf("voice_count = %d, want 0", health.VoiceCount)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var report cache.StatsReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("unable to decode body: %v", err)
	}
	if report.MemorySizeHuman == "" {
		t.Error("memory size missing from report")
	}
}
