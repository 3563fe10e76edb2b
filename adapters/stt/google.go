package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/repositories"
)

const defaultGoogleLanguage = "en-US"

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleConfig configures the Cloud Speech recognizer
type GoogleConfig struct {
	Model    string // e.g. "latest_short", "default"
	Language string
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client    *speech.Client
	recognize recognizeFunc
	model     string
	language  string
	logger    *zap.Logger
}

// NewGoogleSpeechToText creates the Cloud Speech client once. Credentials come
// from the environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, &domain.ModelUnavailableError{
			Identifier:  config.Model,
			Location:    "cloud.google.com/go/speech",
			Remediation: "set GOOGLE_APPLICATION_CREDENTIALS to a service account key",
			Err:         fmt.Errorf("failed to create speech client: %w", err),
		}
	}

	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, config, logger)
	g.client = client
	return g, nil
}

func newGoogleSpeechToText(recognize recognizeFunc, config GoogleConfig, logger *zap.Logger) *GoogleSpeechToText {
	language := config.Language
	if language == "" || language == "auto" {
		language = defaultGoogleLanguage
	}
	return &GoogleSpeechToText{
		recognize: recognize,
		model:     config.Model,
		language:  language,
		logger:    logger,
	}
}

func (g *GoogleSpeechToText) Name() string { return "google" }

// TranscribeFile sends the whole file in a single synchronous Recognize call
func (g *GoogleSpeechToText) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (repositories.Transcription, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("failed to read audio: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return repositories.Transcription{}, err
	}

	language := g.language
	if config.Language != "" && config.Language != "auto" {
		language = config.Language
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:     encoding,
		LanguageCode: language,
		Model:        g.model,
	}
	// WAV and FLAC carry the rate in their header.
	if config.SampleRate > 0 && encoding != speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("recognize failed: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			// Take the best alternative
			parts = append(parts, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}

	g.logger.Debug("Google recognition finished", zap.Int("results", len(parts)))
	return repositories.Transcription{
		Text:     strings.TrimSpace(strings.Join(parts, " ")),
		Language: language,
	}, nil
}

func (g *GoogleSpeechToText) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// getAudioEncoding converts string encoding to Google Speech API enum.
// An empty encoding lets the service read it from the file header.
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "":
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG", "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM", "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
