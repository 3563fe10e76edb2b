package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voiceassist/domain"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	o, err := NewOllamaLLM(OllamaConfig{
		Endpoint: server.URL + "/api/generate",
		Model:    "gemma3:4b",
		Timeout:  5 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create OllamaLLM: %v", err)
	}
	return o
}

func TestOllamaGenerateSendsNonStreamingRequest(t *testing.T) {
	var got map[string]interface{}
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected /api/generate, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"response":"Use neem oil.","done":true}`))
	})

	reply, err := o.Generate(context.Background(), "User said: aphids")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply != "Use neem oil." {
		t.Errorf("Expected reply 'Use neem oil.', got '%s'", reply)
	}

	if got["model"] != "gemma3:4b" {
		t.Errorf("Expected model gemma3:4b, got %v", got["model"])
	}
	if got["prompt"] != "User said: aphids" {
		t.Errorf("Unexpected prompt %v", got["prompt"])
	}
	if stream, ok := got["stream"].(bool); !ok || stream {
		t.Errorf("Expected stream=false, got %v", got["stream"])
	}
}

func TestOllamaQueryOverridesModel(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(`{"response":"` + req.Model + `"}`))
	})

	reply, err := o.Query(context.Background(), "hi", "mistral", time.Second)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if reply != "mistral" {
		t.Errorf("Expected model override to reach the server, got %s", reply)
	}
}

func TestOllamaQueryZeroTimeoutUsesDefault(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"still here"}`))
	})

	reply, err := o.Query(context.Background(), "hi", "gemma3:4b", 0)
	if err != nil {
		t.Fatalf("Query with zero timeout failed: %v", err)
	}
	if reply != "still here" {
		t.Errorf("Unexpected reply %q", reply)
	}
}

func TestOllamaEmptyReplyFallsBack(t *testing.T) {
	bodies := map[string]string{
		"empty response": `{"response":""}`,
		"missing field":  `{"done":true}`,
		"null field":     `{"response":null}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			reply, err := o.Generate(context.Background(), "hi")
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if reply != domain.NoReply {
				t.Errorf("Expected %q, got %q", domain.NoReply, reply)
			}
		})
	}
}

func TestOllamaNonSuccessStatus(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'gemma3:4b' not found"}`, http.StatusInternalServerError)
	})

	reply, err := o.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error for HTTP 500")
	}
	if reply != "" {
		t.Errorf("Expected no reply on failure, got %q", reply)
	}
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", upstream.StatusCode)
	}
	if upstream.Detail == "" {
		t.Error("Expected status detail to be kept")
	}
}

func TestOllamaMalformedBody(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if _, err := o.Generate(context.Background(), "hi"); !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("Expected ErrUpstream for malformed body, got %v", err)
	}
}

func TestOllamaTimeout(t *testing.T) {
	release := make(chan struct{})
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := o.Query(context.Background(), "hi", "gemma3:4b", 50*time.Millisecond)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("Expected ErrUpstream on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded to be wrapped, got %v", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/api/generate"
	server.Close()

	o, err := NewOllamaLLM(OllamaConfig{Endpoint: endpoint}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create OllamaLLM: %v", err)
	}
	if _, err := o.Generate(context.Background(), "hi"); !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("Expected ErrUpstream for closed server, got %v", err)
	}
}

func TestNewOllamaLLMDefaults(t *testing.T) {
	o, err := NewOllamaLLM(OllamaConfig{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create OllamaLLM: %v", err)
	}
	if o.endpoint != DefaultOllamaEndpoint {
		t.Errorf("Expected default endpoint, got %s", o.endpoint)
	}
	if o.model != DefaultOllamaModel {
		t.Errorf("Expected default model, got %s", o.model)
	}
	if o.timeout != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", o.timeout)
	}

	if _, err := NewOllamaLLM(OllamaConfig{Endpoint: "localhost"}, zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error for endpoint without scheme")
	}
}
