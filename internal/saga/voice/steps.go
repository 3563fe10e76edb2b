// Package voice holds the saga that turns an uploaded clip into a reply.
package voice

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/entities"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/saga"
)

// Transcriber is the part of the speech model manager the saga needs
type Transcriber interface {
	Store(ctx context.Context, r io.Reader, filename string) (entities.AudioFile, error)
	TranscribeFile(ctx context.Context, file entities.AudioFile) (string, error)
	Release(file entities.AudioFile) error
}

// Composer wraps user text into an instruction prompt
type Composer interface {
	Compose(raw string, channel domain.Channel) string
}

// Data keys for the voice saga
const (
	DataKeyUpload     = "upload"
	DataKeyFilename   = "filename"
	DataKeyAudioFile  = "audio_file"
	DataKeyTranscript = "transcript"
	DataKeyPrompt     = "prompt"
	DataKeyReply      = "reply"
)

// Step IDs, named after the stage the run reaches when they complete
const (
	StepStored      saga.StepID = "stored"
	StepTranscribed saga.StepID = "transcribed"
	StepPrompted    saga.StepID = "prompted"
	StepQueried     saga.StepID = "queried"
)

// Definition defines the voice request saga
type Definition struct {
	transcriber Transcriber
	composer    Composer
	llm         repositories.LargeLanguageModel
	timeout     time.Duration
	logger      *zap.Logger
}

// NewDefinition creates the voice saga definition. A zero timeout leaves the
// run bounded only by the request context and the LLM timeout.
func NewDefinition(transcriber Transcriber, composer Composer, llm repositories.LargeLanguageModel, timeout time.Duration, logger *zap.Logger) *Definition {
	return &Definition{
		transcriber: transcriber,
		composer:    composer,
		llm:         llm,
		timeout:     timeout,
		logger:      logger,
	}
}

func (d *Definition) ID() string {
	return "voice_request"
}

func (d *Definition) Timeout() time.Duration {
	return d.timeout
}

func (d *Definition) Steps() []saga.Step {
	return []saga.Step{
		&StoreStep{transcriber: d.transcriber, logger: d.logger},
		&TranscribeStep{transcriber: d.transcriber, logger: d.logger},
		&PromptStep{composer: d.composer},
		&QueryStep{llm: d.llm, logger: d.logger},
	}
}

// StoreStep copies the upload into a temporary file
type StoreStep struct {
	transcriber Transcriber
	logger      *zap.Logger
}

func (s *StoreStep) ID() saga.StepID { return StepStored }

func (s *StoreStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	upload, ok := data[DataKeyUpload].(io.Reader)
	if !ok || upload == nil {
		return saga.StepResult{Error: fmt.Errorf("%w: missing audio upload", domain.ErrInvalidInput)}
	}
	filename, _ := data[DataKeyFilename].(string)

	file, err := s.transcriber.Store(ctx, upload, filename)
	if err != nil {
		return saga.StepResult{Error: err}
	}
	data[DataKeyAudioFile] = file

	s.logger.Debug("Upload stored", zap.String("filename", filename), zap.Int64("size", file.Size))
	return saga.StepResult{Data: file.Path}
}

// Release removes the temporary file
func (s *StoreStep) Release(ctx context.Context, data saga.SagaData) error {
	file, ok := data[DataKeyAudioFile].(entities.AudioFile)
	if !ok {
		return nil
	}
	return s.transcriber.Release(file)
}

// TranscribeStep runs the speech model on the stored file
type TranscribeStep struct {
	transcriber Transcriber
	logger      *zap.Logger
}

func (s *TranscribeStep) ID() saga.StepID { return StepTranscribed }

func (s *TranscribeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	file, ok := data[DataKeyAudioFile].(entities.AudioFile)
	if !ok {
		return saga.StepResult{Error: fmt.Errorf("missing audio file from previous step")}
	}

	transcript, err := s.transcriber.TranscribeFile(ctx, file)
	if err != nil {
		return saga.StepResult{Error: err}
	}
	data[DataKeyTranscript] = transcript

	s.logger.Debug("Transcription completed", zap.String("transcript", transcript))
	return saga.StepResult{Data: transcript}
}

func (s *TranscribeStep) Release(ctx context.Context, data saga.SagaData) error { return nil }

// PromptStep wraps the transcript in the voice template
type PromptStep struct {
	composer Composer
}

func (s *PromptStep) ID() saga.StepID { return StepPrompted }

func (s *PromptStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	transcript, ok := data[DataKeyTranscript].(string)
	if !ok {
		return saga.StepResult{Error: fmt.Errorf("missing transcript from previous step")}
	}
	prompt := s.composer.Compose(transcript, domain.ChannelVoice)
	data[DataKeyPrompt] = prompt
	return saga.StepResult{Data: prompt}
}

func (s *PromptStep) Release(ctx context.Context, data saga.SagaData) error { return nil }

// QueryStep sends the prompt to the LLM
type QueryStep struct {
	llm    repositories.LargeLanguageModel
	logger *zap.Logger
}

func (s *QueryStep) ID() saga.StepID { return StepQueried }

func (s *QueryStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	prompt, ok := data[DataKeyPrompt].(string)
	if !ok {
		return saga.StepResult{Error: fmt.Errorf("missing prompt from previous step")}
	}

	reply, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return saga.StepResult{Error: err}
	}
	data[DataKeyReply] = reply

	s.logger.Debug("LLM replied", zap.String("provider", s.llm.Name()), zap.Int("chars", len(reply)))
	return saga.StepResult{Data: reply}
}

func (s *QueryStep) Release(ctx context.Context, data saga.SagaData) error { return nil }
