package executor

import (
	"fmt"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/device"
	"github.com/vk/shotmatrix/internal/plan"
)

// platformRuntime binds the platform-dependent pieces of a job exactly
// once at construction: the driver, the app identifier, the locale, the
// auxiliary port, and the assertion selector lookup. Everything after
// this point runs without branching on the platform enum.
type platformRuntime struct {
	driver  device.Driver
	appID   string
	locale  string
	auxPort int
	assert  func(config.ScreenshotPlan) string
}

func newPlatformRuntime(cfg *config.Model, job *plan.Job, drivers map[config.Platform]device.Driver) (*platformRuntime, error) {
	driver, ok := drivers[job.Platform]
	if !ok {
		return nil, fmt.Errorf("no device driver registered for platform %s", job.Platform)
	}

	if job.Platform == config.PlatformIOS {
		return &platformRuntime{
			driver:  driver,
			appID:   cfg.App.IOSBundleID,
			locale:  job.Language.IOSLocale,
			auxPort: job.Ports.IOSAux,
			assert:  func(s config.ScreenshotPlan) string { return s.IOSAssert },
		}, nil
	}
	return &platformRuntime{
		driver:  driver,
		appID:   cfg.App.AndroidPackage,
		locale:  job.Language.AndroidLocale,
		auxPort: job.Ports.AndroidAux,
		assert:  func(s config.ScreenshotPlan) string { return s.AndroidAssert },
	}, nil
}
