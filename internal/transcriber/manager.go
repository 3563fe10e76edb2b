// Package transcriber owns the process-wide speech model: it is loaded once
// at startup, shared by every request and released at shutdown.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/adapters/stt"
	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/entities"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/audio"
	"github.com/satriahrh/voiceassist/internal/models"
	"github.com/satriahrh/voiceassist/internal/worker"
)

const (
	EngineWhisper = "whisper"
	EngineGoogle  = "google"

	defaultMaxUploadBytes = 25 << 20
	queuePerWorker        = 8
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// Options configure Load.
type Options struct {
	Engine         string
	Model          string
	Device         string
	Language       string
	Workers        int
	Threads        int
	CacheDir       string
	WhisperBin     string
	TempDir        string
	MaxUploadBytes int64

	// Recognizer replaces the engine selected by Engine when set.
	Recognizer repositories.SpeechToText
	// DetectAccelerator overrides GPU detection for device "auto".
	DetectAccelerator func() bool
}

// Manager is the loaded speech model together with the pool its inference runs on.
type Manager struct {
	recognizer     repositories.SpeechToText
	pool           *worker.WorkerPool
	model          entities.TranscriptionModel
	language       string
	tempDir        string
	maxUploadBytes int64
	logger         *zap.Logger
	closeOnce      sync.Once
}

// Load resolves the device, loads the recognizer and starts the inference pool.
// A model that is not already cached fails with *domain.ModelUnavailableError.
func Load(ctx context.Context, opts Options, logger *zap.Logger) (*Manager, error) {
	probe := opts.DetectAccelerator
	if probe == nil {
		probe = DetectAccelerator
	}
	device, err := ResolveDevice(opts.Device, probe)
	if err != nil {
		return nil, &domain.ModelUnavailableError{Identifier: opts.Model, Err: err}
	}

	recognizer := opts.Recognizer
	engine := opts.Engine
	if recognizer == nil {
		recognizer, err = newRecognizer(ctx, opts, device, logger)
		if err != nil {
			return nil, err
		}
	} else {
		engine = recognizer.Name()
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	pool := worker.New(workers, workers*queuePerWorker, logger.Named("worker"))
	pool.Start()

	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	m := &Manager{
		recognizer: recognizer,
		pool:       pool,
		model: entities.TranscriptionModel{
			Identifier: opts.Model,
			Engine:     engine,
			Device:     device,
			Status:     entities.ModelStatusLoaded,
			LoadedAt:   time.Now(),
		},
		language:       opts.Language,
		tempDir:        tempDir,
		maxUploadBytes: maxUpload,
		logger:         logger,
	}

	logger.Info("Speech model loaded",
		zap.String("model", opts.Model),
		zap.String("engine", engine),
		zap.Stringer("device", device),
		zap.Int("workers", workers))
	return m, nil
}

func newRecognizer(ctx context.Context, opts Options, device entities.Device, logger *zap.Logger) (repositories.SpeechToText, error) {
	switch opts.Engine {
	case "", EngineWhisper:
		if err := models.ValidateIdentifier(opts.Model); err != nil && !strings.HasSuffix(opts.Model, ".bin") {
			return nil, &domain.ModelUnavailableError{Identifier: opts.Model, Err: err}
		}
		return stt.NewWhisperCLI(stt.WhisperConfig{
			Binary:    opts.WhisperBin,
			Model:     opts.Model,
			ModelPath: models.Path(opts.CacheDir, opts.Model),
			Language:  opts.Language,
			Threads:   opts.Threads,
			Device:    device,
		}, logger.Named("whisper"))
	case EngineGoogle:
		return stt.NewGoogleSpeechToText(ctx, stt.GoogleConfig{
			Model:    opts.Model,
			Language: opts.Language,
		}, logger.Named("google"))
	default:
		return nil, &domain.ModelUnavailableError{
			Identifier: opts.Model,
			Err:        fmt.Errorf("unknown engine %q", opts.Engine),
		}
	}
}

// Model describes the loaded model.
func (m *Manager) Model() entities.TranscriptionModel {
	return m.model
}

// Store copies an upload into a new temporary file. The caller owns the file
// and must Release it.
func (m *Manager) Store(ctx context.Context, r io.Reader, filename string) (entities.AudioFile, error) {
	if err := ctx.Err(); err != nil {
		return entities.AudioFile{}, err
	}

	ext := filepath.Ext(filename)
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	f, err := os.CreateTemp(m.tempDir, "voice-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		return entities.AudioFile{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	file := entities.AudioFile{Path: f.Name(), Filename: filename}

	n, err := io.Copy(f, io.LimitReader(r, m.maxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("failed to store upload: %w", err)
	case n == 0:
		err = domain.ErrEmptyAudio
	case n > m.maxUploadBytes:
		err = fmt.Errorf("%w: more than %d bytes", domain.ErrAudioTooLarge, m.maxUploadBytes)
	}
	if err != nil {
		m.Release(file)
		return entities.AudioFile{}, err
	}
	file.Size = n

	info, err := audio.Inspect(file.Path)
	if err != nil {
		m.logger.Debug("Could not inspect upload", zap.String("filename", filename), zap.Error(err))
	}
	file.Format = info.Format
	file.SampleRate = info.SampleRate
	file.Channels = info.Channels
	file.Duration = info.Duration

	m.logger.Debug("Stored upload",
		zap.String("path", file.Path),
		zap.Int64("size", file.Size),
		zap.String("format", file.Format),
		zap.Duration("duration", file.Duration))
	return file, nil
}

// TranscribeFile runs recognition for a stored file on the inference pool and
// returns the trimmed transcript.
func (m *Manager) TranscribeFile(ctx context.Context, file entities.AudioFile) (string, error) {
	config := repositories.AudioConfig{
		SampleRate: file.SampleRate,
		Encoding:   encodingFor(file.Format),
		Language:   m.language,
	}

	start := time.Now()
	text, err := m.pool.Do(ctx, func(ctx context.Context) (string, error) {
		result, err := m.recognizer.TranscribeFile(ctx, file.Path, config)
		return result.Text, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}
		if errors.Is(err, worker.ErrPoolClosed) {
			return "", err
		}
		return "", &domain.TranscriptionError{Engine: m.model.Engine, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.TranscriptionError{Engine: m.model.Engine, Err: errors.New("no speech recognized")}
	}

	m.logger.Debug("Transcribed upload",
		zap.String("filename", file.Filename),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("transcript", text))
	return text, nil
}

// Release removes the temporary file. Releasing twice is fine.
func (m *Manager) Release(file entities.AudioFile) error {
	if file.Path == "" {
		return nil
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Failed to remove temp file", zap.String("path", file.Path), zap.Error(err))
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}

// Transcribe stores, transcribes and releases an upload in one call.
func (m *Manager) Transcribe(ctx context.Context, r io.Reader, filename string) (string, error) {
	file, err := m.Store(ctx, r, filename)
	if err != nil {
		return "", err
	}
	defer m.Release(file)

	return m.TranscribeFile(ctx, file)
}

// Close stops the pool, waiting for running jobs, and releases the recognizer.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.pool.Stop()
		err = m.recognizer.Close()
		m.logger.Info("Speech model released", zap.String("model", m.model.Identifier))
	})
	return err
}

func encodingFor(format string) string {
	switch format {
	case audio.FormatWAV:
		return "WAV"
	case audio.FormatFLAC:
		return "FLAC"
	case audio.FormatOgg:
		return "OGG"
	case audio.FormatWebM:
		return "WEBM"
	default:
		return ""
	}
}
