package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
device "ios" "iPhone 15 Pro" {
  folder = "iphone-15-pro"
}

device "android" "Pixel 8" {
  folder = "pixel-8"
  avd    = "Pixel_8_API_34"
}

language "en-US" {
  ios_locale     = "en_US"
  android_locale = "en-US"
}

screenshot "home" {
  action "capture" {}
}
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// An HCL syntax error is guaranteed to panic inside app.NewApp().
	invalidHCL := `
		device "ios" "iPhone" {
		// Missing closing brace here
	`
	filePath := writeTestConfig(t, invalidHCL)
	out := &bytes.Buffer{}

	// --- Act ---
	// run should recover the panic and return it as an error.
	runErr := run(out, []string{filePath})

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to parse"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag makes cli.Parse report a clean exit.
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{"-h"})

	// --- Assert ---
	require.NoError(t, runErr, "run() should exit cleanly for the help flag")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	runErr := run(out, []string{"--log-level", "loud", "some.hcl"})

	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "invalid log-level")
}

func TestRun_PrintMatrix(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Artifact overrides point at real files so planning succeeds without
	// a build directory; --print-matrix stops before any execution.
	filePath := writeTestConfig(t, validConfig)
	artifactDir := t.TempDir()
	iosApp := filepath.Join(artifactDir, "Demo.app")
	apk := filepath.Join(artifactDir, "demo.apk")
	require.NoError(t, os.MkdirAll(iosApp, 0o755))
	require.NoError(t, os.WriteFile(apk, []byte("apk"), 0o644))

	out := &bytes.Buffer{}
	args := []string{
		"--print-matrix", "flat",
		"--log-level", "error",
		"--ios-app", iosApp,
		"--android-app", apk,
		filePath,
	}

	// --- Act ---
	runErr := run(out, args)

	// --- Assert ---
	require.NoError(t, runErr)

	// Logs and JSON share the writer; the payload starts at the first '['.
	payload := out.String()
	start := strings.Index(payload, "[")
	require.GreaterOrEqual(t, start, 0, "expected a JSON array in the output")

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload[start:]), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "job-0", records[0]["id"])
	assert.Equal(t, "ios", records[0]["platform"])
	assert.Equal(t, "job-1", records[1]["id"])
	assert.Equal(t, "android", records[1]["platform"])
}

func TestRun_MissingArtifactAbortsPlanning(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	filePath := writeTestConfig(t, validConfig)
	out := &bytes.Buffer{}

	// --- Act ---
	// No artifact overrides and no build dir: planning must fail before
	// any device is touched.
	runErr := run(out, []string{"--log-level", "error", filePath})

	// --- Assert ---
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "artifact")
}
