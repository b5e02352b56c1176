package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ctxlog"
)

// bootPollInterval is how often we re-check sys.boot_completed while an
// emulator is coming up.
const bootPollInterval = 2 * time.Second

// AndroidDriver drives Android emulators via the emulator binary and adb.
type AndroidDriver struct {
	run   runner
	start starter
}

// starter launches a long-lived external process without waiting for it.
type starter func(ctx context.Context, name string, args ...string) error

// execStart spawns a process that must outlive the caller's context: the
// emulator keeps running after Boot returns, so tying it to the boot
// context (or its timeout) would kill a healthy device. Only the boot
// polling is cancellable; the process itself is stopped by Shutdown.
func execStart(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(context.WithoutCancel(ctx), name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the process when it eventually exits so it never zombies.
	go func() { _ = cmd.Wait() }()
	return nil
}

// NewAndroidDriver creates an adb/emulator-backed driver.
func NewAndroidDriver() *AndroidDriver {
	return &AndroidDriver{run: execRun, start: execStart}
}

// Boot launches the AVD on the job's console port and waits until Android
// reports boot completed. The serial is derived from the port, which is
// what makes concurrently booted emulators addressable without races.
func (d *AndroidDriver) Boot(ctx context.Context, dev *config.Device, auxPort int) (string, error) {
	logger := ctxlog.FromContext(ctx)
	serial := fmt.Sprintf("emulator-%d", auxPort)

	err := d.start(ctx, "emulator",
		"-avd", dev.AVD,
		"-port", fmt.Sprintf("%d", auxPort),
		"-no-snapshot", "-no-audio", "-no-boot-anim")
	if err != nil {
		return "", fmt.Errorf("starting emulator %s: %w", dev.AVD, err)
	}
	logger.Debug("Emulator starting.", "avd", dev.AVD, "serial", serial)

	if out, err := d.run(ctx, "adb", "-s", serial, "wait-for-device"); err != nil {
		return "", fmt.Errorf("adb wait-for-device %s: %w: %s", serial, err, strings.TrimSpace(string(out)))
	}

	for {
		out, err := d.run(ctx, "adb", "-s", serial, "shell", "getprop", "sys.boot_completed")
		if err == nil && strings.TrimSpace(string(out)) == "1" {
			return serial, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s to finish booting: %w", serial, ctx.Err())
		case <-time.After(bootPollInterval):
		}
	}
}

// Shutdown kills the emulator through its console.
func (d *AndroidDriver) Shutdown(ctx context.Context, deviceID string) error {
	if out, err := d.run(ctx, "adb", "-s", deviceID, "emu", "kill"); err != nil {
		return fmt.Errorf("adb emu kill %s: %w: %s", deviceID, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// InstallApp installs the APK, replacing any existing install and
// granting runtime permissions up front.
func (d *AndroidDriver) InstallApp(ctx context.Context, deviceID, artifactPath string) error {
	if out, err := d.run(ctx, "adb", "-s", deviceID, "install", "-r", "-g", artifactPath); err != nil {
		return fmt.Errorf("adb install: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SetLocale writes the system locale list. Apps observe it on next start.
func (d *AndroidDriver) SetLocale(ctx context.Context, deviceID, locale string) error {
	out, err := d.run(ctx, "adb", "-s", deviceID, "shell",
		"settings", "put", "system", "system_locales", locale)
	if err != nil {
		return fmt.Errorf("setting system locale: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SetStatusBar drives the SystemUI demo mode.
func (d *AndroidDriver) SetStatusBar(ctx context.Context, deviceID string, bar StatusBar) error {
	steps := [][]string{
		{"settings", "put", "global", "sysui_demo_allowed", "1"},
		{"am", "broadcast", "-a", "com.android.systemui.demo", "-e", "command", "enter"},
		{"am", "broadcast", "-a", "com.android.systemui.demo", "-e", "command", "clock",
			"-e", "hhmm", strings.ReplaceAll(bar.Time, ":", "")},
		{"am", "broadcast", "-a", "com.android.systemui.demo", "-e", "command", "battery",
			"-e", "level", fmt.Sprintf("%d", bar.BatteryLevel), "-e", "plugged", "false"},
		{"am", "broadcast", "-a", "com.android.systemui.demo", "-e", "command", "network",
			"-e", "mobile", "show", "-e", "level", fmt.Sprintf("%d", bar.SignalBars)},
	}
	for _, step := range steps {
		args := append([]string{"-s", deviceID, "shell"}, step...)
		if out, err := d.run(ctx, "adb", args...); err != nil {
			return fmt.Errorf("status bar demo mode: %w: %s", err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// ResetAppData clears the package's data without uninstalling.
func (d *AndroidDriver) ResetAppData(ctx context.Context, deviceID, appID string) error {
	if out, err := d.run(ctx, "adb", "-s", deviceID, "shell", "pm", "clear", appID); err != nil {
		return fmt.Errorf("pm clear %s: %w: %s", appID, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ResetRequiresReinstall is false: pm clear keeps the app installed.
func (d *AndroidDriver) ResetRequiresReinstall() bool { return false }

// Screenshot captures a PNG straight off the device.
func (d *AndroidDriver) Screenshot(ctx context.Context, deviceID string) ([]byte, error) {
	out, err := d.run(ctx, "adb", "-s", deviceID, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("screencap: %w", err)
	}
	return out, nil
}

// TailLogs dumps the logcat ring buffer, capped at maxBytes from the end.
func (d *AndroidDriver) TailLogs(ctx context.Context, deviceID string, maxBytes int64) ([]byte, error) {
	out, err := d.run(ctx, "adb", "-s", deviceID, "logcat", "-d")
	if err != nil {
		return nil, fmt.Errorf("logcat: %w", err)
	}
	return tail(out, maxBytes), nil
}

var _ Driver = (*AndroidDriver)(nil)
