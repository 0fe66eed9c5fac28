//go:build e2e

package e2e

import (
	"context"
	"fmt"

	"nerdsphere/client"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite talks to a running server, see SERVER_URL.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	API    *client.API
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.API = client.NewAPI(s.Config.ServerURL, s.Config.Timeout)
}

// Step prints a header in the test log then runs fn with its own timeout.
func (s *BaseHTTPSuite) Step(name string, fn func(ctx context.Context)) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	fn(ctx)
}

// Fingerprint gives every run its own rate-limit key so reruns never collide.
func (s *BaseHTTPSuite) Fingerprint() string {
	return "e2e-" + uuid.NewString()[:8]
}
