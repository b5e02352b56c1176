// Package plan expands a configuration and CLI filters into the ordered,
// immutable list of jobs a run will execute. One job is one
// platform+device+language combination with its own port triple, output
// directory, and resolved app artifact.
package plan

import (
	"fmt"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ports"
)

// Job is the immutable plan for one platform+device+language combination.
// Exactly one of IOSDevice/AndroidDevice is non-nil, matching Platform.
type Job struct {
	Index    int
	Platform config.Platform

	IOSDevice     *config.Device
	AndroidDevice *config.Device

	Language    config.Language
	Screenshots []config.ScreenshotPlan

	OutputDir    string
	Ports        ports.Allocation
	ArtifactPath string
}

// ID is the stable identifier used in logs, matrix exports, and results.
func (j *Job) ID() string {
	return fmt.Sprintf("job-%d", j.Index)
}

// Device returns the device descriptor for the job's platform.
func (j *Job) Device() *config.Device {
	if j.Platform == config.PlatformIOS {
		return j.IOSDevice
	}
	return j.AndroidDevice
}

// String renders the job for log lines.
func (j *Job) String() string {
	return fmt.Sprintf("%s %s/%s/%s", j.ID(), j.Platform, j.Device().Folder, j.Language.Code)
}
