package automation

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/vk/shotmatrix/internal/ctxlog"
)

const (
	// serverStartTimeout bounds how long we wait for a freshly spawned
	// server to answer its status endpoint.
	serverStartTimeout = 60 * time.Second
	serverPollInterval = 500 * time.Millisecond
)

// ExecProvider spawns one automation server process per job and talks
// WebDriver JSON over HTTP. The binary defaults to "appium" and can be
// swapped for any server speaking the same protocol.
type ExecProvider struct {
	Binary string
	client *http.Client
}

// NewExecProvider creates a provider spawning the given server binary.
func NewExecProvider(binary string) *ExecProvider {
	if binary == "" {
		binary = "appium"
	}
	return &ExecProvider{
		Binary: binary,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type execServer struct {
	port int
	cmd  *exec.Cmd
}

func (s *execServer) Port() int { return s.port }

func (s *execServer) Stop(ctx context.Context) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing automation server on port %d: %w", s.port, err)
	}
	_ = s.cmd.Wait()
	s.cmd = nil
	return nil
}

// StartServer spawns the server on the job's port and blocks until its
// status endpoint answers.
func (p *ExecProvider) StartServer(ctx context.Context, port int) (Server, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := exec.Command(p.Binary, "--port", fmt.Sprintf("%d", port))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s on port %d: %w", p.Binary, port, err)
	}
	server := &execServer{port: port, cmd: cmd}
	logger.Debug("Automation server spawned.", "binary", p.Binary, "port", port)

	deadline := time.Now().Add(serverStartTimeout)
	statusURL := fmt.Sprintf("http://127.0.0.1:%d/status", port)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			_ = server.Stop(ctx)
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				logger.Debug("Automation server ready.", "port", port)
				return server, nil
			}
		}
		if time.Now().After(deadline) {
			_ = server.Stop(ctx)
			return nil, fmt.Errorf("automation server on port %d not ready after %s", port, serverStartTimeout)
		}
		select {
		case <-ctx.Done():
			_ = server.Stop(ctx)
			return nil, fmt.Errorf("waiting for automation server on port %d: %w", port, ctx.Err())
		case <-time.After(serverPollInterval):
		}
	}
}
