// Package automation manages per-job UI-automation servers and the
// WebDriver-style HTTP sessions used to drive the app. One server, one
// session, one job: nothing here is shared across jobs.
package automation

import (
	"context"
	"time"

	"github.com/vk/shotmatrix/internal/config"
)

// SessionRequest carries everything needed to open a session against a
// provisioned device.
type SessionRequest struct {
	Platform     config.Platform
	DeviceID     string
	DeviceName   string
	OSVersion    string
	AppID        string
	ArtifactPath string
	// Capabilities is the provider-specific escape hatch from the device
	// config; entries are passed through to the server untouched.
	Capabilities map[string]string
}

// Server is a running automation server bound to one job's port.
type Server interface {
	Port() int
	// Stop terminates the server process. Safe to call more than once.
	Stop(ctx context.Context) error
}

// Session is an open automation session on a device.
type Session interface {
	// FindElement locates an element by selector, retrying until the
	// timeout elapses. Returns the element handle.
	FindElement(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// Click taps a previously located element.
	Click(ctx context.Context, elementID string) error

	// WaitFor blocks until the selector resolves or the timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// SetOrientation rotates the device screen.
	SetOrientation(ctx context.Context, o config.Orientation) error

	// PageSource returns the current UI hierarchy for diagnostics.
	PageSource(ctx context.Context) (string, error)

	// Close ends the session. Safe to call on a dead session.
	Close(ctx context.Context) error
}

// Provider starts servers and opens sessions. The executor owns the
// lifecycle ordering: StartServer, CreateSession, Close, Stop.
type Provider interface {
	StartServer(ctx context.Context, port int) (Server, error)
	CreateSession(ctx context.Context, port int, req SessionRequest) (Session, error)
}
