// Package device abstracts emulator/simulator control behind a small
// driver interface, with exec-based implementations for the iOS
// simulator (xcrun simctl) and the Android emulator (adb).
package device

import (
	"context"
	"os/exec"

	"github.com/vk/shotmatrix/internal/config"
)

// StatusBar is the cosmetic overlay applied before capturing: a fixed
// clock, full battery, full signal. Marketing screenshots never show a
// 3% battery.
type StatusBar struct {
	Time         string
	BatteryLevel int
	SignalBars   int
}

// DefaultStatusBar is the conventional demo status bar.
var DefaultStatusBar = StatusBar{Time: "9:41", BatteryLevel: 100, SignalBars: 4}

// Driver controls one platform's devices. Implementations are stateless:
// every method addresses the device by the id returned from Boot, so a
// single driver instance serves many concurrent jobs.
type Driver interface {
	// Boot starts (or acquires) the device and blocks until it is ready,
	// returning the platform-native device id. auxPort is the job's
	// platform auxiliary port; the Android driver uses it as the emulator
	// console port so parallel emulators never collide, the iOS driver
	// ignores it.
	Boot(ctx context.Context, dev *config.Device, auxPort int) (string, error)

	// Shutdown stops the device. Safe to call on an already-stopped id.
	Shutdown(ctx context.Context, deviceID string) error

	// InstallApp installs the application artifact.
	InstallApp(ctx context.Context, deviceID, artifactPath string) error

	// SetLocale applies the platform locale identifier.
	SetLocale(ctx context.Context, deviceID, locale string) error

	// SetStatusBar applies the demo status bar overlay.
	SetStatusBar(ctx context.Context, deviceID string, bar StatusBar) error

	// ResetAppData clears the app's state, per the configured reset policy.
	ResetAppData(ctx context.Context, deviceID, appID string) error

	// ResetRequiresReinstall reports whether ResetAppData removes the app
	// itself, so the executor must install the artifact again after any
	// reset regardless of policy. Android's pm clear keeps the app;
	// simctl has no clear-data, so the iOS reset is uninstall-based.
	ResetRequiresReinstall() bool

	// Screenshot captures the device screen and returns the raw image bytes.
	Screenshot(ctx context.Context, deviceID string) ([]byte, error)

	// TailLogs returns up to maxBytes of the most recent device log output.
	TailLogs(ctx context.Context, deviceID string, maxBytes int64) ([]byte, error)
}

// runner executes an external command and returns its combined output.
// It exists so tests can substitute a fake without spawning processes.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// tail keeps at most maxBytes from the end of the output.
func tail(b []byte, maxBytes int64) []byte {
	if maxBytes <= 0 || int64(len(b)) <= maxBytes {
		return b
	}
	return b[int64(len(b))-maxBytes:]
}
