package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/shotmatrix/internal/automation"
	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/device"
)

// FakeDriver is an in-memory device.Driver with failure injection and
// call counters, safe for concurrent jobs.
type FakeDriver struct {
	mu sync.Mutex

	BootErr       error
	InstallErr    error
	LocaleErr     error
	ScreenshotErr error

	BootCalls      int
	ShutdownCalls  int
	InstallCalls   int
	LocaleCalls    int
	StatusBarCalls int
	ResetCalls     int

	// ResetRemovesApp makes the fake behave like an uninstall-based
	// reset, so the executor must reinstall afterwards.
	ResetRemovesApp bool

	// ScreenshotData is returned from Screenshot; defaults to a short
	// placeholder payload.
	ScreenshotData []byte
	// Logs is returned from TailLogs before the byte cap is applied.
	Logs []byte
}

func (d *FakeDriver) Boot(ctx context.Context, dev *config.Device, auxPort int) (string, error) {
	d.mu.Lock()
	d.BootCalls++
	d.mu.Unlock()
	if d.BootErr != nil {
		return "", d.BootErr
	}
	return fmt.Sprintf("fake-%s-%d", dev.Folder, auxPort), nil
}

func (d *FakeDriver) Shutdown(ctx context.Context, deviceID string) error {
	d.mu.Lock()
	d.ShutdownCalls++
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) InstallApp(ctx context.Context, deviceID, artifactPath string) error {
	d.mu.Lock()
	d.InstallCalls++
	d.mu.Unlock()
	return d.InstallErr
}

func (d *FakeDriver) SetLocale(ctx context.Context, deviceID, locale string) error {
	d.mu.Lock()
	d.LocaleCalls++
	d.mu.Unlock()
	return d.LocaleErr
}

func (d *FakeDriver) SetStatusBar(ctx context.Context, deviceID string, bar device.StatusBar) error {
	d.mu.Lock()
	d.StatusBarCalls++
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) ResetAppData(ctx context.Context, deviceID, appID string) error {
	d.mu.Lock()
	d.ResetCalls++
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) ResetRequiresReinstall() bool {
	return d.ResetRemovesApp
}

func (d *FakeDriver) Screenshot(ctx context.Context, deviceID string) ([]byte, error) {
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	if d.ScreenshotData != nil {
		return d.ScreenshotData, nil
	}
	return []byte("fake-image-bytes"), nil
}

func (d *FakeDriver) TailLogs(ctx context.Context, deviceID string, maxBytes int64) ([]byte, error) {
	logs := d.Logs
	if logs == nil {
		logs = []byte("fake device log line\n")
	}
	if maxBytes > 0 && int64(len(logs)) > maxBytes {
		logs = logs[int64(len(logs))-maxBytes:]
	}
	return logs, nil
}

var _ device.Driver = (*FakeDriver)(nil)

// Counts returns a snapshot of the call counters.
func (d *FakeDriver) Counts() (boot, shutdown, install int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BootCalls, d.ShutdownCalls, d.InstallCalls
}

// FakeServer records stop calls for one spawned automation server.
type FakeServer struct {
	mu        sync.Mutex
	port      int
	StopCalls int
}

func (s *FakeServer) Port() int { return s.port }

func (s *FakeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	return nil
}

// FakeSession is an automation.Session whose selectors all resolve
// unless listed in Missing.
type FakeSession struct {
	mu sync.Mutex

	// Missing selectors never resolve; FindElement and WaitFor fail for
	// them after their timeout.
	Missing map[string]bool

	Source string

	FindCalls   int
	ClickCalls  int
	OrientCalls int
	CloseCalls  int
}

func (s *FakeSession) FindElement(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	s.mu.Lock()
	s.FindCalls++
	missing := s.Missing[selector]
	s.mu.Unlock()
	if missing {
		return "", fmt.Errorf("element %q not found within %s", selector, timeout)
	}
	return "element-" + selector, nil
}

func (s *FakeSession) Click(ctx context.Context, elementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClickCalls++
	return nil
}

func (s *FakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.FindElement(ctx, selector, timeout)
	return err
}

func (s *FakeSession) SetOrientation(ctx context.Context, o config.Orientation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OrientCalls++
	return nil
}

func (s *FakeSession) PageSource(ctx context.Context) (string, error) {
	if s.Source == "" {
		return "<hierarchy/>", nil
	}
	return s.Source, nil
}

func (s *FakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

var _ automation.Session = (*FakeSession)(nil)

// FakeAutomation is an automation.Provider that hands out fake servers
// and sessions.
type FakeAutomation struct {
	mu sync.Mutex

	StartErr   error
	SessionErr error

	Servers  []*FakeServer
	Sessions []*FakeSession

	// NewSession customizes sessions as they are created; nil gives a
	// session where everything resolves.
	NewSession func() *FakeSession
}

func (p *FakeAutomation) StartServer(ctx context.Context, port int) (automation.Server, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	server := &FakeServer{port: port}
	p.mu.Lock()
	p.Servers = append(p.Servers, server)
	p.mu.Unlock()
	return server, nil
}

func (p *FakeAutomation) CreateSession(ctx context.Context, port int, req automation.SessionRequest) (automation.Session, error) {
	if p.SessionErr != nil {
		return nil, p.SessionErr
	}
	session := &FakeSession{}
	if p.NewSession != nil {
		session = p.NewSession()
	}
	p.mu.Lock()
	p.Sessions = append(p.Sessions, session)
	p.mu.Unlock()
	return session, nil
}

var _ automation.Provider = (*FakeAutomation)(nil)

// FakeInspector reports fixed dimensions for every image.
type FakeInspector struct {
	Width  int
	Height int
	Err    error
}

func (i FakeInspector) Dimensions(path string) (int, int, error) {
	if i.Err != nil {
		return 0, 0, i.Err
	}
	return i.Width, i.Height, nil
}

// FakeResolver returns a fixed artifact path per platform.
type FakeResolver struct {
	Paths map[config.Platform]string
	Err   error
}

func (r FakeResolver) Resolve(platform config.Platform, override string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if override != "" {
		return override, nil
	}
	if r.Paths != nil {
		if p, ok := r.Paths[platform]; ok {
			return p, nil
		}
	}
	return "/tmp/fake-" + string(platform) + ".artifact", nil
}
