// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/voiceassist/internal/prompt"
)

const (
	defaultPort           = "8080"
	defaultMaxUploadBytes = 25 << 20
	defaultSTTEngine      = "whisper"
	defaultSTTModel       = "small"
	defaultSTTDevice      = "auto"
	defaultSTTLanguage    = "auto"
	defaultSTTWorkers     = 2
	defaultWhisperBin     = "whisper-cli"
	defaultLLMProvider    = "ollama"
	defaultLLMEndpoint    = "http://localhost:11434/api/generate"
	defaultLLMModel       = "gemma3:4b"
	defaultLLMTimeout     = 120

	defaultGoogleSTTModel = "latest_long"
	defaultGeminiModel    = "gemini-2.0-flash"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig `yaml:"server"`
	STT       STTConfig    `yaml:"stt"`
	LLM       LLMConfig    `yaml:"llm"`
	Prompt    PromptConfig `yaml:"prompt"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"` // "json" or "console"
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Port             string   `yaml:"port"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
	MaxUploadBytes   int64    `yaml:"max_upload_bytes"`
	TempDir          string   `yaml:"temp_dir"`
}

// STTConfig holds speech recognition settings.
type STTConfig struct {
	Engine     string `yaml:"engine"` // "whisper" or "google"
	Model      string `yaml:"model"`
	Device     string `yaml:"device"` // "auto", "cpu", "cuda[:N]" or "gpu[:N]"
	Language   string `yaml:"language"`
	Workers    int    `yaml:"workers"`
	Threads    int    `yaml:"threads"`
	CacheDir   string `yaml:"cache_dir"`
	WhisperBin string `yaml:"whisper_bin"`
}

// LLMConfig holds generation endpoint settings.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // "ollama", "openai", "gemini" or "echo"
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	APIKey         string `yaml:"api_key"`
}

// Timeout returns the request timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PromptConfig holds the instruction templates per channel.
type PromptConfig struct {
	TextTemplate  string `yaml:"text_template"`
	VoiceTemplate string `yaml:"voice_template"`
}

// DefaultModelCacheDir returns the directory the model cache lives in by default.
func DefaultModelCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "voiceassist", "models")
	}
	return filepath.Join(dir, "voiceassist", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             defaultPort,
			CORSAllowOrigins: []string{"*"},
			MaxUploadBytes:   defaultMaxUploadBytes,
			TempDir:          os.TempDir(),
		},
		STT: STTConfig{
			Engine:     defaultSTTEngine,
			Model:      defaultSTTModel,
			Device:     defaultSTTDevice,
			Language:   defaultSTTLanguage,
			Workers:    defaultSTTWorkers,
			CacheDir:   DefaultModelCacheDir(),
			WhisperBin: defaultWhisperBin,
		},
		LLM: LLMConfig{
			Provider:       defaultLLMProvider,
			Endpoint:       defaultLLMEndpoint,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Prompt: PromptConfig{
			TextTemplate:  prompt.DefaultTextTemplate,
			VoiceTemplate: prompt.DefaultVoiceTemplate,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load builds the configuration. The YAML file named by CONFIG_FILE is read
// first when set, then .env is loaded without overriding variables that are
// already present, then the environment is applied. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyBackendDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the working directory without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// LoadFile reads a YAML file on top of the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyBackendDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	c.STT.CacheDir = expandTilde(c.STT.CacheDir)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.TempDir, "TEMP_DIR")
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.Server.CORSAllowOrigins = splitList(v)
	}
	if err := setInt64(&c.Server.MaxUploadBytes, "MAX_UPLOAD_BYTES"); err != nil {
		return err
	}

	setString(&c.STT.Engine, "STT_ENGINE")
	setString(&c.STT.Model, "STT_MODEL")
	setString(&c.STT.Device, "STT_DEVICE")
	setString(&c.STT.Language, "STT_LANGUAGE")
	setString(&c.STT.WhisperBin, "WHISPER_BIN")
	if v := os.Getenv("MODEL_CACHE_DIR"); v != "" {
		c.STT.CacheDir = expandTilde(v)
	}
	if err := setInt(&c.STT.Workers, "STT_WORKERS"); err != nil {
		return err
	}
	if err := setInt(&c.STT.Threads, "STT_THREADS"); err != nil {
		return err
	}

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Endpoint, "LLM_ENDPOINT")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	if err := setInt(&c.LLM.TimeoutSeconds, "LLM_TIMEOUT_SECONDS"); err != nil {
		return err
	}

	setString(&c.Prompt.TextTemplate, "PROMPT_TEXT_TEMPLATE")
	setString(&c.Prompt.VoiceTemplate, "PROMPT_VOICE_TEMPLATE")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	return nil
}

// applyBackendDefaults swaps the whisper and ollama model defaults for ones
// the selected engine and provider understand. Explicit values are kept.
func (c *Config) applyBackendDefaults() {
	if c.STT.Engine == "google" && c.STT.Model == defaultSTTModel {
		c.STT.Model = defaultGoogleSTTModel
	}
	if c.LLM.Provider == "gemini" && c.LLM.Model == defaultLLMModel {
		c.LLM.Model = defaultGeminiModel
	}
}

var (
	devicePattern = regexp.MustCompile(`^(auto|cpu|(cuda|gpu)(:[0-9]+)?)$`)
	// ggml whisper model identifiers, which Cloud Speech does not know
	whisperModelPattern = regexp.MustCompile(`^(tiny|base|small|medium|large)([.-]|$)`)
)

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be > 0")
	}

	switch c.STT.Engine {
	case "whisper", "google":
	default:
		return fmt.Errorf("stt.engine must be \"whisper\" or \"google\", got %q", c.STT.Engine)
	}
	if c.STT.Model == "" {
		return fmt.Errorf("stt.model must not be empty")
	}
	if !devicePattern.MatchString(c.STT.Device) {
		return fmt.Errorf("stt.device must be auto, cpu, cuda[:N] or gpu[:N], got %q", c.STT.Device)
	}
	if c.STT.Workers <= 0 {
		return fmt.Errorf("stt.workers must be > 0")
	}
	if c.STT.Threads < 0 {
		return fmt.Errorf("stt.threads must be >= 0")
	}
	if c.STT.Engine == "google" && whisperModelPattern.MatchString(c.STT.Model) {
		return fmt.Errorf("stt.model %q is a whisper model; the google engine needs a Cloud Speech model such as %s", c.STT.Model, defaultGoogleSTTModel)
	}
	if c.STT.Engine == "whisper" {
		if c.STT.CacheDir == "" {
			return fmt.Errorf("stt.cache_dir must not be empty")
		}
		if c.STT.WhisperBin == "" {
			return fmt.Errorf("stt.whisper_bin must not be empty")
		}
	}

	switch c.LLM.Provider {
	case "ollama", "openai":
		if c.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint must not be empty for provider %q", c.LLM.Provider)
		}
	case "gemini", "echo":
	default:
		return fmt.Errorf("llm.provider must be ollama, openai, gemini or echo, got %q", c.LLM.Provider)
	}
	if c.LLM.Provider != "echo" && c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.Provider == "gemini" && strings.Contains(c.LLM.Model, ":") {
		return fmt.Errorf("llm.model %q is an ollama tag; the gemini provider needs a model such as %s", c.LLM.Model, defaultGeminiModel)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}

	if err := prompt.ValidateTemplate(c.Prompt.TextTemplate); err != nil {
		return fmt.Errorf("prompt.text_template: %w", err)
	}
	if err := prompt.ValidateTemplate(c.Prompt.VoiceTemplate); err != nil {
		return fmt.Errorf("prompt.voice_template: %w", err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
