package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/shotmatrix/internal/config"
)

const findPollInterval = 500 * time.Millisecond

// httpSession is a WebDriver JSON session over stdlib net/http.
type httpSession struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

// CreateSession opens a session with platform capabilities derived from
// the request plus the device's free-form capability map.
func (p *ExecProvider) CreateSession(ctx context.Context, port int, req SessionRequest) (Session, error) {
	caps := map[string]any{
		"platformName":      platformName(req.Platform),
		"appium:deviceName": req.DeviceName,
		"appium:udid":       req.DeviceID,
		"appium:app":        req.ArtifactPath,
	}
	if req.OSVersion != "" {
		caps["appium:platformVersion"] = req.OSVersion
	}
	if req.AppID != "" {
		if req.Platform == config.PlatformIOS {
			caps["appium:bundleId"] = req.AppID
		} else {
			caps["appium:appPackage"] = req.AppID
		}
	}
	for key, value := range req.Capabilities {
		caps["appium:"+key] = value
	}

	session := &httpSession{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		client:  p.client,
	}
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": caps},
	}
	var resp struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := session.do(ctx, http.MethodPost, "/session", body, &resp); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if resp.Value.SessionID == "" {
		return nil, fmt.Errorf("creating session: server returned no session id")
	}
	session.sessionID = resp.Value.SessionID
	return session, nil
}

func platformName(p config.Platform) string {
	if p == config.PlatformIOS {
		return "iOS"
	}
	return "Android"
}

// FindElement retries until the element resolves or the timeout elapses.
func (s *httpSession) FindElement(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	body := map[string]any{"using": "accessibility id", "value": selector}
	for {
		var resp struct {
			Value map[string]string `json:"value"`
		}
		err := s.do(ctx, http.MethodPost, s.sessionPath("/element"), body, &resp)
		if err == nil {
			for _, id := range resp.Value {
				if id != "" {
					return id, nil
				}
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("element %q not found within %s", selector, timeout)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("finding element %q: %w", selector, ctx.Err())
		case <-time.After(findPollInterval):
		}
	}
}

// Click taps a located element.
func (s *httpSession) Click(ctx context.Context, elementID string) error {
	path := s.sessionPath("/element/" + elementID + "/click")
	if err := s.do(ctx, http.MethodPost, path, map[string]any{}, nil); err != nil {
		return fmt.Errorf("clicking element %s: %w", elementID, err)
	}
	return nil
}

// WaitFor is FindElement without keeping the handle.
func (s *httpSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.FindElement(ctx, selector, timeout)
	return err
}

// SetOrientation rotates the screen.
func (s *httpSession) SetOrientation(ctx context.Context, o config.Orientation) error {
	body := map[string]any{"orientation": strings.ToUpper(string(o))}
	if err := s.do(ctx, http.MethodPost, s.sessionPath("/orientation"), body, nil); err != nil {
		return fmt.Errorf("setting orientation %s: %w", o, err)
	}
	return nil
}

// PageSource returns the UI hierarchy XML.
func (s *httpSession) PageSource(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := s.do(ctx, http.MethodGet, s.sessionPath("/source"), nil, &resp); err != nil {
		return "", fmt.Errorf("fetching page source: %w", err)
	}
	return resp.Value, nil
}

// Close deletes the session.
func (s *httpSession) Close(ctx context.Context) error {
	if s.sessionID == "" {
		return nil
	}
	err := s.do(ctx, http.MethodDelete, "/session/"+s.sessionID, nil, nil)
	s.sessionID = ""
	return err
}

func (s *httpSession) sessionPath(suffix string) string {
	return "/session/" + s.sessionID + suffix
}

// do performs one JSON round trip against the server.
func (s *httpSession) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

var _ Session = (*httpSession)(nil)
