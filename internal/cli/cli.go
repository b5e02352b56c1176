// Package cli turns command-line arguments and environment defaults
// into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/shotmatrix/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("shotmatrix", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
shotmatrix - Runs a matrix of device-automation jobs that screenshot a
mobile app across platforms, devices and languages.

Usage:
  shotmatrix [options] CONFIG_PATH

Arguments:
  CONFIG_PATH
    Path to a single .hcl config file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the config file or directory.")
	cFlag := flagSet.String("c", "", "Path to the config file or directory (shorthand).")
	outputFlag := flagSet.String("output", envOr("SHOTMATRIX_OUTPUT", "screenshots"), "Root directory for captured screenshots and the manifest.")
	localesFlag := flagSet.String("locales", "", "Optional YAML file overriding per-language locale mappings.")
	platformFlag := flagSet.String("platform", "", "Comma-separated platform filter (ios, android).")
	deviceFlag := flagSet.String("device", "", "Comma-separated device name/folder filter.")
	languageFlag := flagSet.String("language", "", "Comma-separated language code filter.")
	screenshotFlag := flagSet.String("screenshot", "", "Comma-separated screenshot name filter.")
	iosAppFlag := flagSet.String("ios-app", "", "Path to the iOS .app bundle, overriding discovery.")
	androidAppFlag := flagSet.String("android-app", "", "Path to the Android .apk, overriding discovery.")
	automationFlag := flagSet.String("automation-binary", envOr("SHOTMATRIX_AUTOMATION_BINARY", "appium"), "Automation server binary spawned per job.")
	workersFlag := flagSet.Int("workers", 0, "Cap on concurrent jobs. 0 derives it from CPU count.")
	matrixFlag := flagSet.String("print-matrix", "", "Print the job matrix as JSON and exit: 'flat', 'platform', 'device' or 'language'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP run-status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", envOr("SHOTMATRIX_LOG_FORMAT", "text"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", envOr("SHOTMATRIX_LOG_LEVEL", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Config path determined.", "path", path)

	if path == "" {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath:       path,
		OutputRoot:       *outputFlag,
		LocalePath:       *localesFlag,
		Platforms:        splitList(*platformFlag),
		Devices:          splitList(*deviceFlag),
		Languages:        splitList(*languageFlag),
		Screenshots:      splitList(*screenshotFlag),
		IOSArtifact:      *iosAppFlag,
		AndroidArtifact:  *androidAppFlag,
		AutomationBinary: *automationFlag,
		Workers:          *workersFlag,
		PrintMatrix:      strings.ToLower(*matrixFlag),
		StatusPort:       *statusPortFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}

// splitList parses a comma-separated flag value into a clean slice.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// envOr reads an environment default, typically seeded from a .env file
// by the entrypoint.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
