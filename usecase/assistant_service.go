package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/saga"
	"github.com/satriahrh/voiceassist/internal/saga/voice"
)

// AssistantService orchestrates the text and voice request flows
type AssistantService struct {
	composer voice.Composer
	llm      repositories.LargeLanguageModel
	runner   *saga.Runner
	voice    *voice.Definition
	logger   *zap.Logger
}

// NewAssistantService creates a new assistant service. voiceTimeout bounds a
// whole voice request; zero leaves it to the request context.
func NewAssistantService(
	transcriber voice.Transcriber,
	composer voice.Composer,
	llm repositories.LargeLanguageModel,
	voiceTimeout time.Duration,
	logger *zap.Logger,
) *AssistantService {
	return &AssistantService{
		composer: composer,
		llm:      llm,
		runner:   saga.NewRunner(logger.Named("saga")),
		voice:    voice.NewDefinition(transcriber, composer, llm, voiceTimeout, logger.Named("voice")),
		logger:   logger,
	}
}

// HandleText answers a typed message. Blank input is still sent through.
func (s *AssistantService) HandleText(ctx context.Context, input string) (string, error) {
	text := strings.TrimSpace(input)
	prompt := s.composer.Compose(text, domain.ChannelText)

	reply, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("text request: %w", err)
	}

	s.logger.Debug("Text request answered", zap.Int("inputChars", len(text)), zap.String("reply", reply))
	return reply, nil
}

// HandleVoice transcribes an uploaded clip and answers it. The temporary copy
// of the clip is removed before HandleVoice returns on every path.
func (s *AssistantService) HandleVoice(ctx context.Context, upload domain.AudioUpload) (string, error) {
	if upload.Content == nil {
		return "", fmt.Errorf("%w: missing audio upload", domain.ErrInvalidInput)
	}

	instance, err := s.runner.Run(ctx, s.voice, saga.SagaData{
		voice.DataKeyUpload:   upload.Content,
		voice.DataKeyFilename: upload.Filename,
	})
	if err != nil {
		s.logger.Info("Voice request failed",
			zap.String("sagaID", string(instance.ID)),
			zap.String("filename", upload.Filename),
			zap.Error(err))
		return "", fmt.Errorf("voice request: %w", err)
	}

	reply, _ := instance.Data[voice.DataKeyReply].(string)
	s.logger.Debug("Voice request answered",
		zap.String("sagaID", string(instance.ID)),
		zap.String("transcript", fmt.Sprint(instance.Data[voice.DataKeyTranscript])),
		zap.String("reply", reply))
	return reply, nil
}
