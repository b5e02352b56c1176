package app

import (
	"errors"
	"fmt"
)

// Matrix export modes accepted by --print-matrix.
const (
	MatrixOff      = ""
	MatrixFlat     = "flat"
	MatrixPlatform = "platform"
	MatrixDevice   = "device"
	MatrixLanguage = "language"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // hcl file or directory of hcl files
	OutputRoot string
	LocalePath string // optional yaml locale-override file

	// Case-insensitive allow-list filters over the job matrix.
	Platforms   []string
	Devices     []string
	Languages   []string
	Screenshots []string

	// Artifact overrides; empty means resolve from config/build dir.
	IOSArtifact     string
	AndroidArtifact string

	AutomationBinary string
	Workers          int
	PrintMatrix      string
	StatusPort       int

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "screenshots"
	}
	switch cfg.PrintMatrix {
	case MatrixOff, MatrixFlat, MatrixPlatform, MatrixDevice, MatrixLanguage:
	default:
		return nil, fmt.Errorf("invalid print-matrix mode %q (want %q, %q, %q or %q)",
			cfg.PrintMatrix, MatrixFlat, MatrixPlatform, MatrixDevice, MatrixLanguage)
	}
	return &cfg, nil
}
