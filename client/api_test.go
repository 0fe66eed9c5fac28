package client

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nerdsphere/errors"
	"nerdsphere/infrastructure/http/server"
	"nerdsphere/infrastructure/lock"
	"nerdsphere/observability"
	"nerdsphere/repositories"
	"nerdsphere/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func newChatServer(t *testing.T, clock *testClock) *httptest.Server {
	gin.SetMode(gin.TestMode)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	repository := repositories.NewBadgerMessageRepository(db, log, 0)
	messageService := services.NewMessageService(log, repository, lock.NewLocal(), 10*time.Second, time.Second, clock.Now)
	retentionService := services.NewRetentionService(log, repository, time.Second)
	monitor, err := observability.NewProcessMonitor()
	require.NoError(t, err)

	router := server.NewRouter(log,
		server.NewMessageServer(log, messageService, retentionService, clock.Now),
		server.NewHealthServer(log, repository, "badger", monitor, time.Second),
		nil,
	)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func TestAPI_Post_Then_Recent_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := &testClock{at: time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)}
	api := NewAPI(newChatServer(t, clock).URL, time.Second)

	requestedAt := clock.Now()
	stored, err := api.Post(ctx, "<script>alert(1)</script>hello", "fp-1")
	req.NoError(err)
	req.NotEmpty(stored.ID)
	req.Equal("alert(1)hello", stored.Content)
	req.NotContains(stored.Content, "<")
	req.Equal("fp-1", stored.Fingerprint)

	messages, err := api.Recent(ctx, 100)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(stored.ID, messages[0].ID)
	req.Equal(stored.Content, messages[0].Content)
	req.False(messages[0].CreatedAt.Before(requestedAt))
}

func TestAPI_Post_Rate_Limited(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := &testClock{at: time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)}
	api := NewAPI(newChatServer(t, clock).URL, time.Second)

	_, err := api.Post(ctx, "first", "fp-1")
	req.NoError(err)

	clock.Advance(2 * time.Second)
	_, err = api.Post(ctx, "second", "fp-1")
	req.ErrorIs(err, errors.ErrRateLimited)

	var apiErr *APIError
	req.True(stderrors.As(err, &apiErr))
	req.Equal(http.StatusTooManyRequests, apiErr.Status)
	req.Equal(8, apiErr.RemainingSeconds)
	req.Equal("Rate limit exceeded. Please wait 8 seconds.", apiErr.Message)

	// Another client class is not affected
	_, err = api.Post(ctx, "other", "fp-2")
	req.NoError(err)

	clock.Advance(9 * time.Second)
	_, err = api.Post(ctx, "third", "fp-1")
	req.NoError(err)
}

func TestAPI_Post_Validation_Errors(t *testing.T) {
	clock := &testClock{at: time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)}
	api := NewAPI(newChatServer(t, clock).URL, time.Second)

	testCases := []struct {
		name        string
		content     string
		fingerprint string
		message     string
	}{
		{name: "missing fingerprint", content: "hi", message: "Content and fingerprint are required"},
		{name: "markup only", content: "<b></b>", fingerprint: "fp", message: "Message cannot be empty"},
		{name: "spam", content: strings.Repeat("a", 50), fingerprint: "fp", message: "Message appears to be spam"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := api.Post(context.Background(), tc.content, tc.fingerprint)
			var apiErr *APIError
			require.True(t, stderrors.As(err, &apiErr))
			require.Equal(t, http.StatusBadRequest, apiErr.Status)
			require.Equal(t, tc.message, apiErr.Message)
			require.NotErrorIs(t, err, errors.ErrRateLimited)
		})
	}
}

func TestAPI_Cleanup(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := &testClock{at: time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)}
	api := NewAPI(newChatServer(t, clock).URL, time.Second)

	_, err := api.Post(ctx, "old news", "fp-1")
	req.NoError(err)

	clock.Advance(25 * time.Hour)
	_, err = api.Post(ctx, "fresh", "fp-1")
	req.NoError(err)

	deleted, err := api.Cleanup(ctx)
	req.NoError(err)
	req.Equal(1, deleted)

	deleted, err = api.Cleanup(ctx)
	req.NoError(err)
	req.Zero(deleted)

	messages, err := api.Recent(ctx, 100)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("fresh", messages[0].Content)
}

func TestAPI_Unreachable_Server(t *testing.T) {
	api := NewAPI("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := api.Recent(context.Background(), 10)
	require.Error(t, err)
}
