package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/entities"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/websocket"
)

const serviceName = "voiceassist"

// Assistant answers text messages and audio clips
type Assistant interface {
	HandleText(ctx context.Context, input string) (string, error)
	HandleVoice(ctx context.Context, upload domain.AudioUpload) (string, error)
}

// ModelInfo describes the loaded speech model
type ModelInfo interface {
	Model() entities.TranscriptionModel
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	assistant      Assistant
	users          repositories.UserRepository
	model          ModelInfo
	llmName        string
	maxUploadBytes int64
	startedAt      time.Time
	logger         *zap.Logger
}

// NewHandler creates the HTTP handlers
func NewHandler(
	assistant Assistant,
	users repositories.UserRepository,
	model ModelInfo,
	llmName string,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		assistant:      assistant,
		users:          users,
		model:          model,
		llmName:        llmName,
		maxUploadBytes: maxUploadBytes,
		startedAt:      time.Now(),
		logger:         logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler, hub *websocket.Hub, logger *zap.Logger) {
	e.GET("/", h.root)
	e.GET("/health", h.health)

	// Assistant
	e.POST("/text", h.text)
	e.POST("/voice", h.voice, uploadLimit(h.maxUploadBytes))

	// Users
	users := e.Group("/api/users")
	users.GET("", h.listUsers)
	users.GET("/", h.listUsers)
	users.POST("", h.createUser)
	users.POST("/", h.createUser)

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func (h *Handler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Message: "Backend is running successfully"})
}

func (h *Handler) health(c echo.Context) error {
	resp := HealthResponse{
		Status:        "ok",
		Service:       serviceName,
		Model:         h.model.Model(),
		LLM:           h.llmName,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if vm, err := mem.VirtualMemoryWithContext(c.Request().Context()); err == nil {
		resp.MemoryUsedPercent = vm.UsedPercent
	} else {
		h.logger.Debug("Memory stats unavailable", zap.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) text(c echo.Context) error {
	var req domain.TextInput
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: request body must be JSON with an input field", domain.ErrInvalidInput))
	}

	reply, err := h.assistant.HandleText(c.Request().Context(), req.Input)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.TextResponse{Reply: reply})
}

func (h *Handler) voice(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return h.fail(c, domain.ErrAudioTooLarge)
		}
		return h.fail(c, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer file.Close()

	reply, err := h.assistant.HandleVoice(c.Request().Context(), domain.AudioUpload{
		Filename: fileHeader.Filename,
		Content:  file,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.TextResponse{Reply: reply})
}

func (h *Handler) listUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) createUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: request body must be JSON with a name field", domain.ErrInvalidInput))
	}

	user := &entities.User{Name: req.Name}
	if err := user.Validate(); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
	}
	if err := h.users.Create(c.Request().Context(), user); err != nil {
		return h.fail(c, err)
	}

	h.logger.Info("User created", zap.Int("id", user.ID))
	return c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("User %s created!", user.Name)})
}

// fail writes err as an ErrorResponse with the status its kind maps to
func (h *Handler) fail(c echo.Context, err error) error {
	code, message := domain.Describe(err)
	status := statusFor(code)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("code", code), zap.Error(err))
	} else {
		h.logger.Info("Request rejected", zap.String("code", code), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func statusFor(code string) int {
	switch code {
	case domain.CodeInvalidInput, domain.CodeEmptyAudio:
		return http.StatusBadRequest
	case domain.CodeAudioTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.CodeTranscriptionFailed:
		return http.StatusUnprocessableEntity
	case domain.CodeUpstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
