package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/entities"
	"github.com/satriahrh/voiceassist/domain/repositories"
)

const (
	maxStderr = 512
	waitDelay = 2 * time.Second
)

// WhisperConfig configures the whisper.cpp command line recognizer
type WhisperConfig struct {
	Binary    string
	Model     string // identifier, used in errors and logs
	ModelPath string
	Language  string
	Threads   int
	Device    entities.Device
}

// WhisperCLI implements SpeechToText by running whisper.cpp's whisper-cli on a file
type WhisperCLI struct {
	binary    string
	model     string
	modelPath string
	language  string
	threads   int
	device    entities.Device
	logger    *zap.Logger
}

// NewWhisperCLI checks that both the binary and the cached model exist.
// Nothing is downloaded here.
func NewWhisperCLI(config WhisperConfig, logger *zap.Logger) (*WhisperCLI, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, &domain.ModelUnavailableError{
			Identifier:  config.Model,
			Location:    config.ModelPath,
			Remediation: fmt.Sprintf("run `fetch-model -model %s` to populate the cache", config.Model),
			Err:         err,
		}
	}

	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, &domain.ModelUnavailableError{
			Identifier:  config.Model,
			Location:    config.Binary,
			Remediation: "install whisper.cpp or point WHISPER_BIN at whisper-cli",
			Err:         err,
		}
	}

	language := config.Language
	if language == "" {
		language = "auto"
	}

	logger.Info("Whisper recognizer ready",
		zap.String("binary", binary),
		zap.String("model", config.Model),
		zap.String("modelPath", config.ModelPath),
		zap.Stringer("device", config.Device))

	return &WhisperCLI{
		binary:    binary,
		model:     config.Model,
		modelPath: config.ModelPath,
		language:  language,
		threads:   config.Threads,
		device:    config.Device,
		logger:    logger,
	}, nil
}

func (w *WhisperCLI) Name() string { return "whisper" }

func (w *WhisperCLI) args(path, language string) []string {
	args := []string{"-m", w.modelPath, "-f", path, "-nt", "-np", "-l", language}
	if w.threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.threads))
	}
	if w.device.IsAccelerator() {
		args = append(args, "-dev", strconv.Itoa(w.device.Index))
	} else {
		args = append(args, "-ng")
	}
	return args
}

// TranscribeFile runs the recognizer on the file and returns its trimmed stdout.
// The process is killed when ctx ends.
func (w *WhisperCLI) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (repositories.Transcription, error) {
	language := w.language
	if config.Language != "" {
		language = config.Language
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binary, w.args(path, language)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return repositories.Transcription{}, fmt.Errorf("whisper interrupted: %w", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > maxStderr {
			detail = detail[len(detail)-maxStderr:]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return repositories.Transcription{}, fmt.Errorf("whisper exited with code %d: %s", exitErr.ExitCode(), detail)
		}
		return repositories.Transcription{}, fmt.Errorf("failed to run whisper: %w", err)
	}

	lines := strings.Fields(stdout.String())
	text := strings.Join(lines, " ")

	w.logger.Debug("Whisper finished", zap.String("path", path), zap.Int("chars", len(text)))
	return repositories.Transcription{Text: text, Language: language}, nil
}

// Close is a no-op; each transcription is its own process.
func (w *WhisperCLI) Close() error { return nil }
