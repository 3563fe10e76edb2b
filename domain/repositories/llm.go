package repositories

import "context"

// LargeLanguageModel abstracts any generation provider
type LargeLanguageModel interface {
	// Generate takes a finished prompt and returns the model's reply
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider in logs and errors
	Name() string
}
