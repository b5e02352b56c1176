package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shotmatrix/internal/config"
)

// scriptedRunner maps a joined command line to a canned output or error.
type scriptedRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (s *scriptedRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	s.calls = append(s.calls, key)
	if err, ok := s.errs[key]; ok {
		return []byte(s.outputs[key]), err
	}
	return []byte(s.outputs[key]), nil
}

const simctlListJSON = `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-17-4": [
      {"udid": "UDID-17", "name": "iPhone 15 Pro", "state": "Shutdown"}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-16-0": [
      {"udid": "UDID-16", "name": "iPhone 15 Pro", "state": "Shutdown"}
    ]
  }
}`

func iosTestDevice() *config.Device {
	return &config.Device{
		Platform:  config.PlatformIOS,
		Name:      "iPhone 15 Pro",
		Folder:    "iphone-15-pro",
		OSVersion: "17.4",
	}
}

func TestIOSBoot_ResolvesUDIDByNameAndOSVersion(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := &scriptedRunner{outputs: map[string]string{
		"xcrun simctl list devices -j": simctlListJSON,
	}}
	d := &IOSDriver{run: runner.run}

	// --- Act ---
	udid, err := d.Boot(context.Background(), iosTestDevice(), 4724)

	// --- Assert ---
	require.NoError(t, err)
	// The 17.4 runtime's device wins over the same name under 16.0.
	assert.Equal(t, "UDID-17", udid)
	assert.Contains(t, runner.calls, "xcrun simctl boot UDID-17")
	assert.Contains(t, runner.calls, "xcrun simctl bootstatus UDID-17 -b")
}

func TestIOSBoot_ToleratesAlreadyBooted(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := &scriptedRunner{
		outputs: map[string]string{
			"xcrun simctl list devices -j": simctlListJSON,
			"xcrun simctl boot UDID-17":    "Unable to boot device in current state: Booted",
		},
		errs: map[string]error{
			"xcrun simctl boot UDID-17": errors.New("exit status 149"),
		},
	}
	d := &IOSDriver{run: runner.run}

	// --- Act ---
	udid, err := d.Boot(context.Background(), iosTestDevice(), 4724)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "UDID-17", udid)
}

func TestIOSBoot_UnknownDevice(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{outputs: map[string]string{
		"xcrun simctl list devices -j": simctlListJSON,
	}}
	d := &IOSDriver{run: runner.run}
	dev := iosTestDevice()
	dev.Name = "iPhone 4"

	_, err := d.Boot(context.Background(), dev, 4724)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `no simulator named "iPhone 4"`)
}

func TestIOSSetLocale(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := &scriptedRunner{}
	d := &IOSDriver{run: runner.run}

	// --- Act ---
	err := d.SetLocale(context.Background(), "UDID-17", "de_DE")

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[0], "AppleLocale -string de_DE")
	// The language list wants hyphenated codes.
	assert.Contains(t, runner.calls[1], "AppleLanguages -array de-DE")
}

func TestIOSShutdown_ToleratesAlreadyShutdown(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{
		outputs: map[string]string{
			"xcrun simctl shutdown UDID-17": "Unable to shutdown device in current state: Shutdown",
		},
		errs: map[string]error{
			"xcrun simctl shutdown UDID-17": errors.New("exit status 149"),
		},
	}
	d := &IOSDriver{run: runner.run}

	assert.NoError(t, d.Shutdown(context.Background(), "UDID-17"))
}

func TestIOSResetAppData_IsUninstallBased(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := &scriptedRunner{}
	d := &IOSDriver{run: runner.run}

	// --- Act ---
	err := d.ResetAppData(context.Background(), "UDID-17", "com.example.demo")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"xcrun simctl uninstall UDID-17 com.example.demo"}, runner.calls)
	// The reset removed the app, so callers must put the artifact back.
	assert.True(t, d.ResetRequiresReinstall())
}

func TestTail(t *testing.T) {
	t.Parallel()

	data := []byte("abcdefgh")
	assert.Equal(t, data, tail(data, 0), "no cap keeps everything")
	assert.Equal(t, data, tail(data, 100))
	assert.Equal(t, []byte("fgh"), tail(data, 3))
}
