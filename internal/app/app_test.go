package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shotmatrix/internal/testutil"
)

const appTestConfig = `
device "ios" "iPhone 15 Pro" {
  folder = "iphone-15-pro"
}
language "en-US" {
  ios_locale = "en_US"
}
screenshot "home" {
  action "capture" {}
}
`

func writeAppConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires a config path", func(t *testing.T) {
		_, err := NewConfig(Config{})
		require.Error(t, err)
	})

	t.Run("defaults the output root", func(t *testing.T) {
		cfg, err := NewConfig(Config{ConfigPath: "demo.hcl"})
		require.NoError(t, err)
		assert.Equal(t, "screenshots", cfg.OutputRoot)
	})

	t.Run("rejects unknown matrix modes", func(t *testing.T) {
		_, err := NewConfig(Config{ConfigPath: "demo.hcl", PrintMatrix: "spiral"})
		require.Error(t, err)
	})

	t.Run("accepts every matrix mode", func(t *testing.T) {
		for _, mode := range []string{MatrixOff, MatrixFlat, MatrixPlatform, MatrixDevice, MatrixLanguage} {
			_, err := NewConfig(Config{ConfigPath: "demo.hcl", PrintMatrix: mode})
			assert.NoError(t, err, "mode %q", mode)
		}
	})
}

func TestNewApp_LoadsModel(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeAppConfig(t, appTestConfig)
	cfg, err := NewConfig(Config{ConfigPath: path, LogLevel: "error"})
	require.NoError(t, err)
	out := &testutil.SafeBuffer{}

	// --- Act ---
	application := NewApp(out, cfg)

	// --- Assert ---
	require.NotNil(t, application)
	model := application.Model()
	require.Len(t, model.Devices, 1)
	assert.Equal(t, "iphone-15-pro", model.Devices[0].Folder)
	assert.NotNil(t, application.Registry())
}

func TestNewApp_PanicsOnBrokenConfig(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeAppConfig(t, `device "ios" "iPhone" {`)
	cfg, err := NewConfig(Config{ConfigPath: path, LogLevel: "error"})
	require.NoError(t, err)

	// --- Act / Assert ---
	require.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, cfg)
	})
}

func TestNewApp_AppliesLocaleOverrides(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	configPath := writeAppConfig(t, appTestConfig)
	localePath := filepath.Join(t.TempDir(), "locales.yaml")
	require.NoError(t, os.WriteFile(localePath, []byte("en-US:\n  ios: en_GB\n"), 0o644))
	cfg, err := NewConfig(Config{ConfigPath: configPath, LocalePath: localePath, LogLevel: "error"})
	require.NoError(t, err)

	// --- Act ---
	application := NewApp(&testutil.SafeBuffer{}, cfg)

	// --- Assert ---
	lang, ok := application.Model().LanguageByCode("en-US")
	require.True(t, ok)
	assert.Equal(t, "en_GB", lang.IOSLocale)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("honors the configured level", func(t *testing.T) {
		buf := &testutil.SafeBuffer{}
		logger := newLogger("debug", "text", buf)

		logger.Debug("visible")

		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		buf := &testutil.SafeBuffer{}
		logger := newLogger("chatty", "text", buf)

		logger.Debug("hidden")
		logger.Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("json format emits JSON records", func(t *testing.T) {
		buf := &testutil.SafeBuffer{}
		logger := newLogger("info", "json", buf)

		logger.Info("structured")

		assert.Contains(t, buf.String(), `"msg":"structured"`)
	})
}
