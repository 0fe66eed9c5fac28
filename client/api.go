// Package client is the Go counterpart of the browser chat page: it posts
// messages, polls the newest ones and keeps the advisory local cooldown.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nerdsphere/domain"
	"nerdsphere/errors"
)

// APIError is a non 2xx answer of the chat API.
// A 429 matches errors.ErrRateLimited with errors.Is.
type APIError struct {
	Status           int
	Message          string
	RemainingSeconds int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == errors.ErrRateLimited && e.Status == http.StatusTooManyRequests
}

type envelope struct {
	Success          bool            `json:"success"`
	Data             json.RawMessage `json:"data,omitempty"`
	Error            string          `json:"error,omitempty"`
	RemainingSeconds int             `json:"remainingSeconds,omitempty"`
	DeletedCount     int             `json:"deletedCount,omitempty"`
}

type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI targets the server at baseURL, e.g. http://localhost:8080.
func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Post submits one message. The returned record is the stored one and
// supersedes any optimistic local copy.
func (a *API) Post(ctx context.Context, content, fingerprint string) (domain.Message, error) {
	body, err := json.Marshal(map[string]string{"content": content, "fingerprint": fingerprint})
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	if _, err := a.do(ctx, http.MethodPost, "/messages", body, &message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// Recent returns up to limit messages, newest first.
func (a *API) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	path := "/messages?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	var messages []domain.Message
	if _, err := a.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Cleanup triggers an on-demand retention sweep and returns the deleted count.
func (a *API) Cleanup(ctx context.Context) (int, error) {
	answer, err := a.do(ctx, http.MethodGet, "/cleanup", nil, nil)
	if err != nil {
		return 0, err
	}
	return answer.DeletedCount, nil
}

func (a *API) do(ctx context.Context, method, path string, body []byte, data any) (envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := a.http.Do(request)
	if err != nil {
		return envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	var answer envelope
	if err := json.NewDecoder(response.Body).Decode(&answer); err != nil {
		return envelope{}, fmt.Errorf("decode %s %s (status %d): %w", method, path, response.StatusCode, err)
	}
	if response.StatusCode >= http.StatusBadRequest || !answer.Success {
		return answer, &APIError{
			Status:           response.StatusCode,
			Message:          answer.Error,
			RemainingSeconds: answer.RemainingSeconds,
		}
	}
	if data != nil && len(answer.Data) > 0 {
		if err := json.Unmarshal(answer.Data, data); err != nil {
			return answer, fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return answer, nil
}
