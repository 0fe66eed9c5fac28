package server

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"nerdsphere/contract"
	"nerdsphere/domain"
	"nerdsphere/errors"
	"nerdsphere/services"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 16 << 10

type postMessageRequest struct {
	Content     string `json:"content"`
	Fingerprint string `json:"fingerprint"`
}

type MessageServer struct {
	log            *slog.Logger
	messageService services.IMessageService
	sweeper        contract.Sweeper
	clock          func() time.Time
}

func NewMessageServer(log *slog.Logger, messageService services.IMessageService,
	sweeper contract.Sweeper, clock func() time.Time) *MessageServer {
	return &MessageServer{log: log, messageService: messageService, sweeper: sweeper, clock: clock}
}

// PostMessage handles POST /messages.
func (s *MessageServer) PostMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var body postMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.log.Debug("Invalid message body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	message, err := s.messageService.Submit(c.Request.Context(), body.Content, body.Fingerprint)
	if err != nil {
		s.writeError(c, err, "Failed to create message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": message})
}

// GetMessages handles GET /messages?limit=N, newest first.
func (s *MessageServer) GetMessages(c *gin.Context) {
	limit := domain.MaxRecentMessages
	if raw, ok := c.GetQuery("limit"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	messages, err := s.messageService.Recent(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err, "Failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": messages})
}

// Cleanup handles GET /cleanup, an on-demand retention sweep.
func (s *MessageServer) Cleanup(c *gin.Context) {
	deleted, err := s.sweeper.Sweep(c.Request.Context(), s.clock())
	if err != nil {
		s.writeError(c, err, "Failed to cleanup messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Old messages cleaned up successfully",
		"deletedCount": deleted,
	})
}

// writeError maps domain errors to their status and text.
// Anything unexpected becomes a 500 with the generic fallback text.
func (s *MessageServer) writeError(c *gin.Context, err error, fallback string) {
	var limited *errors.RateLimitedError
	if stderrors.As(err, &limited) {
		c.Header("Retry-After", strconv.Itoa(limited.RemainingSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":          false,
			"error":            limited.Error(),
			"remainingSeconds": limited.RemainingSeconds,
		})
		return
	}

	switch {
	case stderrors.Is(err, errors.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Content and fingerprint are required"})
	case stderrors.Is(err, errors.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message cannot be empty"})
	case stderrors.Is(err, errors.ErrTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message too long (max 500 characters)"})
	case stderrors.Is(err, errors.ErrSpamPattern):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message appears to be spam"})
	default:
		s.log.Error(fallback, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": fallback})
	}
}
