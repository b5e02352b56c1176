package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ctxlog"
)

// IOSDriver drives iOS simulators via xcrun simctl.
type IOSDriver struct {
	run runner
}

// NewIOSDriver creates a simctl-backed driver.
func NewIOSDriver() *IOSDriver {
	return &IOSDriver{run: execRun}
}

// simctlDeviceList mirrors the JSON shape of `simctl list devices -j`.
type simctlDeviceList struct {
	Devices map[string][]struct {
		UDID  string `json:"udid"`
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"devices"`
}

// Boot resolves the simulator UDID by name (and OS version when
// configured), boots it, and waits for boot to finish. The auxiliary
// port is unused: simulators are addressed by UDID, not port.
func (d *IOSDriver) Boot(ctx context.Context, dev *config.Device, _ int) (string, error) {
	logger := ctxlog.FromContext(ctx)

	udid, err := d.resolveUDID(ctx, dev)
	if err != nil {
		return "", err
	}
	logger.Debug("Resolved simulator.", "device", dev.Name, "udid", udid)

	if out, err := d.run(ctx, "xcrun", "simctl", "boot", udid); err != nil {
		// Booting an already-booted simulator is not an error for us.
		if !strings.Contains(string(out), "current state: Booted") {
			return "", fmt.Errorf("simctl boot %s: %w: %s", dev.Name, err, strings.TrimSpace(string(out)))
		}
	}
	if out, err := d.run(ctx, "xcrun", "simctl", "bootstatus", udid, "-b"); err != nil {
		return "", fmt.Errorf("simctl bootstatus %s: %w: %s", dev.Name, err, strings.TrimSpace(string(out)))
	}
	return udid, nil
}

func (d *IOSDriver) resolveUDID(ctx context.Context, dev *config.Device) (string, error) {
	out, err := d.run(ctx, "xcrun", "simctl", "list", "devices", "-j")
	if err != nil {
		return "", fmt.Errorf("simctl list devices: %w", err)
	}
	var list simctlDeviceList
	if err := json.Unmarshal(out, &list); err != nil {
		return "", fmt.Errorf("parsing simctl device list: %w", err)
	}
	for runtimeName, devices := range list.Devices {
		if dev.OSVersion != "" && !strings.Contains(runtimeName, strings.ReplaceAll(dev.OSVersion, ".", "-")) {
			continue
		}
		for _, candidate := range devices {
			if strings.EqualFold(candidate.Name, dev.Name) {
				return candidate.UDID, nil
			}
		}
	}
	return "", fmt.Errorf("no simulator named %q (os %q) found", dev.Name, dev.OSVersion)
}

// Shutdown stops the simulator.
func (d *IOSDriver) Shutdown(ctx context.Context, deviceID string) error {
	out, err := d.run(ctx, "xcrun", "simctl", "shutdown", deviceID)
	if err != nil && !strings.Contains(string(out), "current state: Shutdown") {
		return fmt.Errorf("simctl shutdown: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// InstallApp installs the .app bundle.
func (d *IOSDriver) InstallApp(ctx context.Context, deviceID, artifactPath string) error {
	if out, err := d.run(ctx, "xcrun", "simctl", "install", deviceID, artifactPath); err != nil {
		return fmt.Errorf("simctl install: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SetLocale writes the simulator's global locale and language defaults.
// Takes effect for apps launched afterwards; no reboot required.
func (d *IOSDriver) SetLocale(ctx context.Context, deviceID, locale string) error {
	language := strings.ReplaceAll(locale, "_", "-")
	if out, err := d.run(ctx, "xcrun", "simctl", "spawn", deviceID,
		"defaults", "write", ".GlobalPreferences", "AppleLocale", "-string", locale); err != nil {
		return fmt.Errorf("setting AppleLocale: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if out, err := d.run(ctx, "xcrun", "simctl", "spawn", deviceID,
		"defaults", "write", ".GlobalPreferences", "AppleLanguages", "-array", language); err != nil {
		return fmt.Errorf("setting AppleLanguages: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SetStatusBar applies simctl's status bar override.
func (d *IOSDriver) SetStatusBar(ctx context.Context, deviceID string, bar StatusBar) error {
	out, err := d.run(ctx, "xcrun", "simctl", "status_bar", deviceID, "override",
		"--time", bar.Time,
		"--batteryState", "charged",
		"--batteryLevel", fmt.Sprintf("%d", bar.BatteryLevel),
		"--cellularMode", "active",
		"--cellularBars", fmt.Sprintf("%d", bar.SignalBars),
		"--wifiBars", "3")
	if err != nil {
		return fmt.Errorf("simctl status_bar: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ResetAppData uninstalls the app. simctl has no direct "clear data" so
// uninstall is the reliable reset; ResetRequiresReinstall tells the
// executor to put the artifact back afterwards.
func (d *IOSDriver) ResetAppData(ctx context.Context, deviceID, appID string) error {
	if out, err := d.run(ctx, "xcrun", "simctl", "uninstall", deviceID, appID); err != nil {
		return fmt.Errorf("simctl uninstall: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ResetRequiresReinstall is true: the reset above removes the app.
func (d *IOSDriver) ResetRequiresReinstall() bool { return true }

// Screenshot captures a PNG via a temporary file, since simctl cannot
// write to stdout.
func (d *IOSDriver) Screenshot(ctx context.Context, deviceID string) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("shotmatrix-%s.png", uuid.NewString()))
	defer os.Remove(tmp)

	if out, err := d.run(ctx, "xcrun", "simctl", "io", deviceID, "screenshot", tmp); err != nil {
		return nil, fmt.Errorf("simctl screenshot: %w: %s", err, strings.TrimSpace(string(out)))
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("reading screenshot: %w", err)
	}
	return data, nil
}

// TailLogs returns the most recent simulator log output, capped at
// maxBytes from the end.
func (d *IOSDriver) TailLogs(ctx context.Context, deviceID string, maxBytes int64) ([]byte, error) {
	out, err := d.run(ctx, "xcrun", "simctl", "spawn", deviceID,
		"log", "show", "--style", "compact", "--last", "10m")
	if err != nil {
		return nil, fmt.Errorf("simctl log show: %w", err)
	}
	return tail(out, maxBytes), nil
}

// interface conformance
var _ Driver = (*IOSDriver)(nil)
