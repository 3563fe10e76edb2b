// Package app wires the process-wide components together. Everything that
// can fail at startup is built in New, before anything listens.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/voiceassist/adapters"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/api"
	"github.com/satriahrh/voiceassist/internal/config"
	"github.com/satriahrh/voiceassist/internal/prompt"
	"github.com/satriahrh/voiceassist/internal/transcriber"
	"github.com/satriahrh/voiceassist/internal/websocket"
	"github.com/satriahrh/voiceassist/usecase"
)

const shutdownTimeout = 10 * time.Second

// Option customises New
type Option func(*options)

type options struct {
	recognizer repositories.SpeechToText
	listener   net.Listener
}

// WithRecognizer replaces the configured speech engine
func WithRecognizer(rec repositories.SpeechToText) Option {
	return func(o *options) { o.recognizer = rec }
}

// WithListener serves on l instead of listening on the configured port
func WithListener(l net.Listener) Option {
	return func(o *options) { o.listener = l }
}

// App is the application context shared by every request
type App struct {
	cfg         *config.Config
	echo        *echo.Echo
	hub         *websocket.Hub
	transcriber *transcriber.Manager
	listener    net.Listener
	logger      *zap.Logger
}

// New loads the speech model and builds every component. A model that is not
// available fails here and nothing is started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tm, err := transcriber.Load(ctx, transcriber.Options{
		Engine:         cfg.STT.Engine,
		Model:          cfg.STT.Model,
		Device:         cfg.STT.Device,
		Language:       cfg.STT.Language,
		Workers:        cfg.STT.Workers,
		Threads:        cfg.STT.Threads,
		CacheDir:       cfg.STT.CacheDir,
		WhisperBin:     cfg.STT.WhisperBin,
		TempDir:        cfg.Server.TempDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Recognizer:     o.recognizer,
	}, logger.Named("transcriber"))
	if err != nil {
		return nil, fmt.Errorf("loading speech model: %w", err)
	}

	llm, err := NewLLM(ctx, cfg.LLM, logger)
	if err != nil {
		tm.Close()
		return nil, fmt.Errorf("creating llm backend: %w", err)
	}

	composer, err := prompt.NewComposer(cfg.Prompt.TextTemplate, cfg.Prompt.VoiceTemplate)
	if err != nil {
		tm.Close()
		return nil, fmt.Errorf("creating prompt composer: %w", err)
	}

	users := adapters.NewMemoryUserRepository(adapters.DefaultUsers()...)
	assistant := usecase.NewAssistantService(tm, composer, llm, 0, logger.Named("assistant"))
	hub := websocket.NewHub(assistant, cfg.Server.MaxUploadBytes, logger.Named("websocket"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.InitMiddleware(e, cfg.Server.CORSAllowOrigins, logger.Named("http"))
	handler := api.NewHandler(assistant, users, tm, llm.Name(), cfg.Server.MaxUploadBytes, logger.Named("api"))
	api.InitRoutes(e, handler, hub, logger.Named("websocket"))

	logger.Info("Application ready",
		zap.String("llmProvider", llm.Name()),
		zap.String("llmModel", cfg.LLM.Model),
		zap.String("sttModel", cfg.STT.Model))

	return &App{
		cfg:         cfg,
		echo:        e,
		hub:         hub,
		transcriber: tm,
		listener:    o.listener,
		logger:      logger,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests
func (a *App) Handler() http.Handler {
	return a.echo
}

// Run serves until ctx is cancelled, then shuts the server down gracefully
// and releases the speech model.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		var err error
		if a.listener != nil {
			a.echo.Listener = a.listener
			a.logger.Info("Server started", zap.String("addr", a.listener.Addr().String()))
			err = a.echo.Start("")
		} else {
			a.logger.Info("Server started", zap.String("port", a.cfg.Server.Port))
			err = a.echo.Start(":" + a.cfg.Server.Port)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("Server exited")
	return err
}

// Close releases the speech model
func (a *App) Close() error {
	return a.transcriber.Close()
}
