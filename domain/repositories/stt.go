package repositories

import "context"

// SpeechToText abstracts speech recognition engines
type SpeechToText interface {
	// TranscribeFile runs recognition over the audio file at path
	TranscribeFile(ctx context.Context, path string, config AudioConfig) (Transcription, error)
	// Name identifies the engine in logs and errors
	Name() string
	// Close releases the engine's resources
	Close() error
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// Transcription is the structured result of a recognition call
type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}
