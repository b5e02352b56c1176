package testutil

import (
	"time"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/plan"
	"github.com/vk/shotmatrix/internal/ports"
)

// BuildPlan expands a fixture model into its full run plan using the
// model's own port settings and a fake artifact resolver.
func BuildPlan(cfg *config.Model, outputRoot string) (*plan.Plan, error) {
	alloc, err := ports.New(cfg.Ports.Base, cfg.Ports.Offset)
	if err != nil {
		return nil, err
	}
	return plan.Build(cfg, outputRoot, plan.Filters{}, plan.Overrides{}, alloc, FakeResolver{})
}

// TestModel builds the canonical two-platform fixture: one iOS device,
// one Android device, two languages, two screenshot plans. The full
// matrix is 2 × 1 × 2 = 4 jobs.
func TestModel() *config.Model {
	return &config.Model{
		App: config.AppSettings{
			IOSBundleID:    "com.example.demo",
			AndroidPackage: "com.example.demo",
			BuildDir:       "build",
			ResetPolicy:    config.ResetNone,
		},
		Ports: config.PortSettings{Base: 4723, Offset: 10},
		Timeouts: config.TimeoutSettings{
			DeviceOp: 2 * time.Minute,
			Action:   10 * time.Second,
		},
		Artifacts: config.ArtifactSettings{DeviceLogLimitBytes: 256 * 1024},
		Devices: []config.Device{
			{
				Platform:  config.PlatformIOS,
				Name:      "iPhone 15 Pro",
				Folder:    "iphone-15-pro",
				OSVersion: "17.4",
				StatusBar: true,
			},
			{
				Platform:  config.PlatformAndroid,
				Name:      "Pixel 8",
				Folder:    "pixel-8",
				OSVersion: "14",
				AVD:       "Pixel_8_API_34",
			},
		},
		Languages: []config.Language{
			{Code: "en-US", IOSLocale: "en_US", AndroidLocale: "en-US"},
			{Code: "de-DE", IOSLocale: "de_DE", AndroidLocale: "de-DE"},
		},
		Screenshots: []config.ScreenshotPlan{
			{
				Name:        "home",
				Orientation: config.OrientationPortrait,
				Actions: []config.Action{
					{Type: config.ActionWaitFor, Selector: "home-screen"},
					{Type: config.ActionCapture},
				},
				IOSAssert:     "tab-bar",
				AndroidAssert: "bottom-nav",
			},
			{
				Name:        "settings",
				Orientation: config.OrientationPortrait,
				Actions: []config.Action{
					{Type: config.ActionTap, Selector: "settings-button"},
					{Type: config.ActionWait, Duration: time.Millisecond},
					{Type: config.ActionCapture},
				},
			},
		},
	}
}
