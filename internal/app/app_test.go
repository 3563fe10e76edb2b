package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/config"
)

type fakeRecognizer struct {
	text string
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) TranscribeFile(ctx context.Context, path string, cfg repositories.AudioConfig) (repositories.Transcription, error) {
	return repositories.Transcription{Text: f.text}, nil
}

func (f *fakeRecognizer) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.STT.Device = "cpu"
	cfg.STT.CacheDir = t.TempDir()
	cfg.Server.TempDir = t.TempDir()
	cfg.LLM.Provider = "echo"
	return cfg
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	l.Close()
	return port
}

func TestNewFailsWithoutCachedModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.STT.Model = "tiny"
	cfg.Server.Port = freePort(t)

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err == nil {
		a.Close()
		t.Fatal("Expected New to fail without a cached model")
	}
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Errorf("Expected ErrModelUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "tiny") {
		t.Errorf("Expected error to name the model, got %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:"+cfg.Server.Port)
	if err != nil {
		t.Fatalf("Port should still be free: %v", err)
	}
	l.Close()
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "bard"

	if _, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithRecognizer(&fakeRecognizer{})); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestTextRequest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Prompt.TextTemplate = "Q: {{input}}"

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithRecognizer(&fakeRecognizer{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	req := httptest.NewRequest(http.MethodPost, "/text", strings.NewReader(`{"input":"  when to plant maize  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["reply"] != "Echo: Q: when to plant maize" {
		t.Errorf("Unexpected reply %q", resp["reply"])
	}
}

func TestVoiceRequestCleansUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Prompt.VoiceTemplate = "V: {{input}}"

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithRecognizer(&fakeRecognizer{text: " hello "}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "clip.wav")
	part.Write([]byte("RIFF not really a wav"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/voice", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["reply"] != "Echo: V: hello" {
		t.Errorf("Unexpected reply %q", resp["reply"])
	}

	entries, err := os.ReadDir(cfg.Server.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), testConfig(t), zaptest.NewLogger(t),
		WithRecognizer(&fakeRecognizer{}), WithListener(l))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + l.Addr().String() + "/"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from root, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
