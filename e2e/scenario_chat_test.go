//go:build e2e

package e2e

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"nerdsphere/client"
	"nerdsphere/errors"

	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseHTTPSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, new(testChatSuite))
}

func (s *testChatSuite) TestPost_Read_And_Cooldown() {
	fingerprint := s.Fingerprint()
	requestedAt := time.Now().UTC().Add(-time.Second)
	var stored string

	s.Step("Post a message with markup", func(ctx context.Context) {
		message, err := s.API.Post(ctx, "<script>alert(1)</script>hello from e2e", fingerprint)
		s.Require().NoError(err)
		s.Require().Equal("hello from e2e", message.Content)
		s.Require().False(message.CreatedAt.Before(requestedAt))
		stored = message.ID
	})

	s.Step("Read it back", func(ctx context.Context) {
		messages, err := s.API.Recent(ctx, 100)
		s.Require().NoError(err)
		found := false
		for _, message := range messages {
			if message.ID == stored {
				found = true
				s.Require().Equal("hello from e2e", message.Content)
			}
		}
		s.Require().True(found, "posted message not in the feed")
	})

	s.Step("Second post inside the cooldown", func(ctx context.Context) {
		_, err := s.API.Post(ctx, "too soon", fingerprint)
		s.Require().ErrorIs(err, errors.ErrRateLimited)
		var apiErr *client.APIError
		s.Require().True(stderrors.As(err, &apiErr))
		s.Require().Greater(apiErr.RemainingSeconds, 0)
		s.Require().LessOrEqual(apiErr.RemainingSeconds, 10)
	})

	s.Step("On demand cleanup", func(ctx context.Context) {
		_, err := s.API.Cleanup(ctx)
		s.Require().NoError(err)
	})
}
