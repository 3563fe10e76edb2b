package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/satriahrh/voiceassist/internal/prompt"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "TEMP_DIR", "CORS_ALLOW_ORIGINS", "MAX_UPLOAD_BYTES",
		"STT_ENGINE", "STT_MODEL", "STT_DEVICE", "STT_LANGUAGE", "STT_WORKERS", "STT_THREADS",
		"MODEL_CACHE_DIR", "WHISPER_BIN",
		"LLM_PROVIDER", "LLM_ENDPOINT", "LLM_MODEL", "LLM_TIMEOUT_SECONDS", "LLM_API_KEY",
		"PROMPT_TEXT_TEMPLATE", "PROMPT_VOICE_TEMPLATE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	if cfg.LLM.Endpoint != "http://localhost:11434/api/generate" {
		t.Errorf("Unexpected default endpoint %s", cfg.LLM.Endpoint)
	}
	if cfg.LLM.Model != "gemma3:4b" {
		t.Errorf("Unexpected default LLM model %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout() != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %v", cfg.LLM.Timeout())
	}
	if cfg.STT.Device != "auto" {
		t.Errorf("Expected auto device, got %s", cfg.STT.Device)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("PORT", "9090")
	t.Setenv("STT_MODEL", "base.en")
	t.Setenv("STT_DEVICE", "cuda:1")
	t.Setenv("STT_WORKERS", "4")
	t.Setenv("LLM_MODEL", "llama3.2")
	t.Setenv("LLM_TIMEOUT_SECONDS", "30")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("PROMPT_TEXT_TEMPLATE", "Q: {{input}}")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.STT.Model != "base.en" || cfg.STT.Device != "cuda:1" || cfg.STT.Workers != 4 {
		t.Errorf("STT env not applied: %+v", cfg.STT)
	}
	if cfg.LLM.Model != "llama3.2" || cfg.LLM.Timeout() != 30*time.Second {
		t.Errorf("LLM env not applied: %+v", cfg.LLM)
	}
	if len(cfg.Server.CORSAllowOrigins) != 2 || cfg.Server.CORSAllowOrigins[1] != "http://b.test" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSAllowOrigins)
	}
	if cfg.Prompt.TextTemplate != "Q: {{input}}" {
		t.Errorf("Unexpected text template %q", cfg.Prompt.TextTemplate)
	}
	if cfg.Prompt.VoiceTemplate != prompt.DefaultVoiceTemplate {
		t.Errorf("Voice template should keep its default")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL=from-dotenv\nSTT_MODEL=tiny\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "from-env")
	// godotenv only fills variables that are unset.
	os.Unsetenv("STT_MODEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "from-env" {
		t.Errorf("Expected env to win over .env, got %s", cfg.LLM.Model)
	}
	if cfg.STT.Model != "tiny" {
		t.Errorf("Expected STT_MODEL from .env, got %s", cfg.STT.Model)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("Missing .env should be ignored, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL='unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(); err == nil {
		t.Error("Expected error for malformed .env")
	}
	if _, err := Load(); err == nil {
		t.Error("Expected Load to fail for malformed .env")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "7070"
stt:
  engine: google
  model: latest_short
llm:
  provider: openai
  endpoint: http://localhost:8081/v1
  model: qwen2.5
  timeout_seconds: 45
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_TIMEOUT_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.STT.Engine != "google" || cfg.STT.Model != "latest_short" {
		t.Errorf("Unexpected STT config %+v", cfg.STT)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "qwen2.5" {
		t.Errorf("Unexpected LLM config %+v", cfg.LLM)
	}
	if cfg.LLM.TimeoutSeconds != 60 {
		t.Errorf("Expected env to override file timeout, got %d", cfg.LLM.TimeoutSeconds)
	}
	if cfg.STT.Workers != defaultSTTWorkers {
		t.Errorf("Missing fields should keep defaults, got workers=%d", cfg.STT.Workers)
	}
}

func TestLoadPicksBackendModelDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STT_ENGINE", "google")
	t.Setenv("LLM_PROVIDER", "gemini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.STT.Model != defaultGoogleSTTModel {
		t.Errorf("Expected %s for google, got %s", defaultGoogleSTTModel, cfg.STT.Model)
	}
	if cfg.LLM.Model != defaultGeminiModel {
		t.Errorf("Expected %s for gemini, got %s", defaultGeminiModel, cfg.LLM.Model)
	}
}

func TestLoadKeepsExplicitBackendModels(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STT_ENGINE", "google")
	t.Setenv("STT_MODEL", "telephony")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_MODEL", "gemini-2.5-flash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.STT.Model != "telephony" || cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("Explicit models were replaced: stt=%s llm=%s", cfg.STT.Model, cfg.LLM.Model)
	}
}

func TestLoadRejectsNonNumeric(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("LLM_TIMEOUT_SECONDS", "soon")

	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric timeout")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown engine", func(c *Config) { c.STT.Engine = "vosk" }, "stt.engine"},
		{"bad device", func(c *Config) { c.STT.Device = "tpu" }, "stt.device"},
		{"zero workers", func(c *Config) { c.STT.Workers = 0 }, "stt.workers"},
		{"empty model", func(c *Config) { c.STT.Model = "" }, "stt.model"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"zero timeout", func(c *Config) { c.LLM.TimeoutSeconds = 0 }, "llm.timeout_seconds"},
		{"no endpoint", func(c *Config) { c.LLM.Endpoint = "" }, "llm.endpoint"},
		{"template without placeholder", func(c *Config) { c.Prompt.VoiceTemplate = "hello" }, "prompt.voice_template"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"google with whisper model", func(c *Config) {
			c.STT.Engine = "google"
			c.STT.Model = "base.en"
		}, "stt.model"},
		{"gemini with ollama tag", func(c *Config) {
			c.LLM.Provider = "gemini"
			c.LLM.Model = "llama3.2:3b"
		}, "llm.model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAcceptsDevices(t *testing.T) {
	for _, dev := range []string{"auto", "cpu", "cuda", "cuda:0", "gpu:2"} {
		cfg := Default()
		cfg.STT.Device = dev
		if err := cfg.Validate(); err != nil {
			t.Errorf("Device %q should be valid: %v", dev, err)
		}
	}
}
