package config

import (
	"strings"
	"time"
)

// Platform identifies which mobile ecosystem a device or job belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform normalizes a user-supplied platform name.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios":
		return PlatformIOS, true
	case "android":
		return PlatformAndroid, true
	}
	return "", false
}

// ResetPolicy controls how app state is cleared between language groups.
type ResetPolicy string

const (
	ResetNone             ResetPolicy = "none"
	ResetOnLanguageChange ResetPolicy = "on-language-change"
	ResetAlwaysReinstall  ResetPolicy = "always-reinstall"
)

// ActionType enumerates the primitives a screenshot plan is built from.
type ActionType string

const (
	ActionTap     ActionType = "tap"
	ActionWait    ActionType = "wait"
	ActionWaitFor ActionType = "wait_for"
	ActionCapture ActionType = "capture"
)

// Orientation is a device screen orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Model is the validated, format-agnostic configuration consumed by the
// planner and executor. It is immutable after Load returns it.
type Model struct {
	App       AppSettings
	Ports     PortSettings
	Timeouts  TimeoutSettings
	Artifacts ArtifactSettings

	Devices     []Device
	Languages   []Language
	Screenshots []ScreenshotPlan

	// Dismissors are best-effort selectors run once per screenshot plan
	// to close transient popups before the main actions.
	Dismissors []string

	Validation ValidationSettings
}

// AppSettings identifies the application under test and how its state is
// reset between runs.
type AppSettings struct {
	IOSBundleID     string
	AndroidPackage  string
	IOSArtifact     string
	AndroidArtifact string
	BuildDir        string
	ResetPolicy     ResetPolicy
}

// PortSettings configures the deterministic port allocator.
type PortSettings struct {
	Base   int
	Offset int
}

// TimeoutSettings bounds the blocking operations inside a job.
type TimeoutSettings struct {
	DeviceOp time.Duration
	Action   time.Duration
}

// ArtifactSettings tunes failure-diagnostic capture.
type ArtifactSettings struct {
	DeviceLogLimitBytes int64
}

// Device describes one emulator/simulator target. Exactly the fields for
// its platform are meaningful; Capabilities is the escape hatch for
// provider-specific keys that have no first-class field.
type Device struct {
	Platform  Platform
	Name      string
	Folder    string
	OSVersion string

	// Android only: the AVD name passed to the emulator.
	AVD string

	StatusBar    bool
	Capabilities map[string]string
}

// Language pairs a canonical language code with its platform-specific
// locale identifiers.
type Language struct {
	Code          string
	IOSLocale     string
	AndroidLocale string
}

// Locale returns the platform-specific locale identifier, or "" when the
// mapping is absent for that platform.
func (l Language) Locale(p Platform) string {
	if p == PlatformIOS {
		return l.IOSLocale
	}
	return l.AndroidLocale
}

// ScreenshotPlan is one named screenshot with the ordered actions that
// produce it.
type ScreenshotPlan struct {
	Name        string
	Orientation Orientation
	Actions     []Action

	// Per-platform presence assertions evaluated after the actions.
	// Failure is logged, never fatal.
	IOSAssert     string
	AndroidAssert string
}

// Action is a single automation primitive inside a screenshot plan.
type Action struct {
	Type     ActionType
	Selector string
	Duration time.Duration
	Timeout  time.Duration
}

// ValidationSettings holds expected pixel dimensions per device folder
// and orientation. Enforce decides whether a mismatch fails the job or
// only warns.
type ValidationSettings struct {
	Enforce bool
	Expect  map[string]DimensionSet
}

// DimensionSet is the expected width×height per orientation for one
// device folder. A zero Dimension means "not configured".
type DimensionSet struct {
	Portrait  Dimension
	Landscape Dimension
}

// Dimension is a width×height pair in pixels.
type Dimension struct {
	Width  int
	Height int
}

// IsZero reports whether no expectation was configured.
func (d Dimension) IsZero() bool { return d.Width == 0 && d.Height == 0 }

// Expected returns the configured dimension for a folder+orientation, or
// false when none is set.
func (v ValidationSettings) Expected(folder string, o Orientation) (Dimension, bool) {
	set, ok := v.Expect[folder]
	if !ok {
		return Dimension{}, false
	}
	d := set.Portrait
	if o == OrientationLandscape {
		d = set.Landscape
	}
	if d.IsZero() {
		return Dimension{}, false
	}
	return d, true
}

// DevicesFor returns the devices for one platform, in config order.
func (m *Model) DevicesFor(p Platform) []Device {
	var out []Device
	for _, d := range m.Devices {
		if d.Platform == p {
			out = append(out, d)
		}
	}
	return out
}

// Platforms returns the distinct platforms present in the config, iOS
// first, matching the order jobs are planned in.
func (m *Model) Platforms() []Platform {
	var out []Platform
	for _, p := range []Platform{PlatformIOS, PlatformAndroid} {
		if len(m.DevicesFor(p)) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// LanguageByCode looks a language up case-insensitively.
func (m *Model) LanguageByCode(code string) (Language, bool) {
	for _, l := range m.Languages {
		if strings.EqualFold(l.Code, code) {
			return l, true
		}
	}
	return Language{}, false
}
