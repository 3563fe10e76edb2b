// Command fetch-model downloads a whisper.cpp model into the local cache so
// the server can load it without network access.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/satriahrh/voiceassist/internal/config"
	"github.com/satriahrh/voiceassist/internal/models"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "fetch-model: %v\n", err)
		os.Exit(1)
	}

	defaultModel := os.Getenv("STT_MODEL")
	if defaultModel == "" {
		defaultModel = "small"
	}
	defaultDir := os.Getenv("MODEL_CACHE_DIR")
	if defaultDir == "" {
		defaultDir = config.DefaultModelCacheDir()
	}

	model := flag.String("model", defaultModel, "model identifier, e.g. tiny, base.en, small, large-v3-turbo")
	dir := flag.String("dir", defaultDir, "model cache directory")
	baseURL := flag.String("base-url", models.DefaultBaseURL, "model repository URL")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Fetching model %q\n", *model)
	f := &models.Fetcher{BaseURL: *baseURL, Out: os.Stdout}
	path, err := f.Fetch(ctx, *model, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch-model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model ready at %s\n", path)
}
