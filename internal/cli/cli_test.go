package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shotmatrix/internal/app"
)

func TestParse_PositionalConfigPath(t *testing.T) {
	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{"grids/demo.hcl"}, out)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "grids/demo.hcl", cfg.ConfigPath)
	assert.Equal(t, "screenshots", cfg.OutputRoot)
	assert.Equal(t, "appium", cfg.AutomationBinary)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ConfigFlagWinsOverPositional(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, _, err := Parse([]string{"--config", "a.hcl", "b.hcl"}, out)

	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.ConfigPath)
}

func TestParse_AllFlags(t *testing.T) {
	// --- Arrange ---
	out := &bytes.Buffer{}
	args := []string{
		"--output", "shots",
		"--locales", "locales.yaml",
		"--platform", "ios, android",
		"--device", "iPhone 15 Pro,pixel-8",
		"--language", "en-US",
		"--screenshot", "home",
		"--ios-app", "/b/Demo.app",
		"--android-app", "/b/demo.apk",
		"--automation-binary", "appium2",
		"--workers", "3",
		"--print-matrix", "device",
		"--status-port", "8090",
		"--log-format", "json",
		"--log-level", "debug",
		"demo.hcl",
	}

	// --- Act ---
	cfg, shouldExit, err := Parse(args, out)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "shots", cfg.OutputRoot)
	assert.Equal(t, "locales.yaml", cfg.LocalePath)
	assert.Equal(t, []string{"ios", "android"}, cfg.Platforms)
	assert.Equal(t, []string{"iPhone 15 Pro", "pixel-8"}, cfg.Devices)
	assert.Equal(t, []string{"en-US"}, cfg.Languages)
	assert.Equal(t, []string{"home"}, cfg.Screenshots)
	assert.Equal(t, "/b/Demo.app", cfg.IOSArtifact)
	assert.Equal(t, "/b/demo.apk", cfg.AndroidArtifact)
	assert.Equal(t, "appium2", cfg.AutomationBinary)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, app.MatrixDevice, cfg.PrintMatrix)
	assert.Equal(t, 8090, cfg.StatusPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_HelpExitsCleanly(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
}

func TestParse_NoConfigPathPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"--log-format", "xml", "demo.hcl"}},
		{"bad log level", []string{"--log-level", "loud", "demo.hcl"}},
		{"bad print-matrix mode", []string{"--print-matrix", "spiral", "demo.hcl"}},
		{"unknown flag", []string{"--frobnicate", "demo.hcl"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}

			_, _, err := Parse(tc.args, out)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"a"}, splitList("a,,  ,"))
}
