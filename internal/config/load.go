package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/shotmatrix/internal/ctxlog"
	"github.com/vk/shotmatrix/internal/fsutil"
)

// Error is a configuration error. It is fatal: nothing is planned or
// executed once one is reported.
type Error struct {
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "configuration error: " + e.Detail
}

func errf(format string, args ...any) *Error {
	return &Error{Detail: fmt.Sprintf(format, args...)}
}

// Built-in defaults applied before validation.
const (
	defaultPortBase        = 4723
	defaultPortOffset      = 10
	defaultDeviceOpTimeout = 2 * time.Minute
	defaultActionTimeout   = 10 * time.Second
	defaultLogLimitBytes   = 256 * 1024
	defaultBuildDir        = "build"
)

// fileSchema mirrors the HCL surface of one config file.
type fileSchema struct {
	App         *appSchema         `hcl:"app,block"`
	Ports       *portsSchema       `hcl:"ports,block"`
	Timeouts    *timeoutsSchema    `hcl:"timeouts,block"`
	Artifacts   *artifactsSchema   `hcl:"artifacts,block"`
	Devices     []deviceSchema     `hcl:"device,block"`
	Languages   []languageSchema   `hcl:"language,block"`
	Screenshots []screenshotSchema `hcl:"screenshot,block"`
	Dismissors  []string           `hcl:"dismissors,optional"`
	Validation  *validationSchema  `hcl:"validation,block"`
}

type appSchema struct {
	IOSBundleID     string `hcl:"ios_bundle_id,optional"`
	AndroidPackage  string `hcl:"android_package,optional"`
	IOSArtifact     string `hcl:"ios_artifact,optional"`
	AndroidArtifact string `hcl:"android_artifact,optional"`
	BuildDir        string `hcl:"build_dir,optional"`
	ResetPolicy     string `hcl:"reset_policy,optional"`
}

type portsSchema struct {
	Base   int `hcl:"base,optional"`
	Offset int `hcl:"offset,optional"`
}

type timeoutsSchema struct {
	DeviceOpMS int64 `hcl:"device_op_ms,optional"`
	ActionMS   int64 `hcl:"action_ms,optional"`
}

type artifactsSchema struct {
	DeviceLogLimitBytes int64 `hcl:"device_log_limit_bytes,optional"`
}

type deviceSchema struct {
	Platform     string    `hcl:"platform,label"`
	Name         string    `hcl:"name,label"`
	Folder       string    `hcl:"folder"`
	OSVersion    string    `hcl:"os_version,optional"`
	AVD          string    `hcl:"avd,optional"`
	StatusBar    *bool     `hcl:"status_bar,optional"`
	Capabilities cty.Value `hcl:"capabilities,optional"`
}

type languageSchema struct {
	Code          string `hcl:"code,label"`
	IOSLocale     string `hcl:"ios_locale,optional"`
	AndroidLocale string `hcl:"android_locale,optional"`
}

type screenshotSchema struct {
	Name          string         `hcl:"name,label"`
	Orientation   string         `hcl:"orientation,optional"`
	IOSAssert     string         `hcl:"ios_assert,optional"`
	AndroidAssert string         `hcl:"android_assert,optional"`
	Actions       []actionSchema `hcl:"action,block"`
}

type actionSchema struct {
	Type       string `hcl:"type,label"`
	Selector   string `hcl:"selector,optional"`
	DurationMS int64  `hcl:"duration_ms,optional"`
	TimeoutMS  int64  `hcl:"timeout_ms,optional"`
}

type validationSchema struct {
	Enforce bool           `hcl:"enforce,optional"`
	Expect  []expectSchema `hcl:"expect,block"`
}

type expectSchema struct {
	Folder    string `hcl:"folder,label"`
	Portrait  []int  `hcl:"portrait,optional"`
	Landscape []int  `hcl:"landscape,optional"`
}

// Load parses the config path (a single .hcl file or a directory of
// them), merges all files, applies defaults, and validates the result
// into an immutable Model.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered config files.", "count", len(files), "path", path)

	parser := hclparse.NewParser()
	merged := &fileSchema{}
	for _, f := range files {
		file, diags := parser.ParseHCLFile(f)
		if diags.HasErrors() {
			return nil, errf("failed to parse %s: %s", f, diags.Error())
		}
		var fs fileSchema
		if diags := gohcl.DecodeBody(file.Body, nil, &fs); diags.HasErrors() {
			return nil, errf("failed to decode %s: %s", f, diags.Error())
		}
		if err := mergeFile(merged, &fs, f); err != nil {
			return nil, err
		}
	}

	model, err := translate(merged)
	if err != nil {
		return nil, err
	}
	if err := validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.",
		"devices", len(model.Devices),
		"languages", len(model.Languages),
		"screenshots", len(model.Screenshots))
	return model, nil
}

func configFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errf("config path %q: %v", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, errf("scanning config directory %q: %v", path, err)
	}
	if len(files) == 0 {
		return nil, errf("no .hcl files found under %q", path)
	}
	return files, nil
}

// mergeFile folds one parsed file into the accumulated schema. Singleton
// blocks may appear in at most one file; repeatable blocks append.
func mergeFile(dst, src *fileSchema, path string) error {
	setOnce := func(name string, dstSet bool) error {
		if dstSet {
			return errf("duplicate %q block in %s: only one is allowed across all config files", name, path)
		}
		return nil
	}
	if src.App != nil {
		if err := setOnce("app", dst.App != nil); err != nil {
			return err
		}
		dst.App = src.App
	}
	if src.Ports != nil {
		if err := setOnce("ports", dst.Ports != nil); err != nil {
			return err
		}
		dst.Ports = src.Ports
	}
	if src.Timeouts != nil {
		if err := setOnce("timeouts", dst.Timeouts != nil); err != nil {
			return err
		}
		dst.Timeouts = src.Timeouts
	}
	if src.Artifacts != nil {
		if err := setOnce("artifacts", dst.Artifacts != nil); err != nil {
			return err
		}
		dst.Artifacts = src.Artifacts
	}
	if src.Validation != nil {
		if err := setOnce("validation", dst.Validation != nil); err != nil {
			return err
		}
		dst.Validation = src.Validation
	}
	if len(src.Dismissors) > 0 {
		if err := setOnce("dismissors", len(dst.Dismissors) > 0); err != nil {
			return err
		}
		dst.Dismissors = src.Dismissors
	}
	dst.Devices = append(dst.Devices, src.Devices...)
	dst.Languages = append(dst.Languages, src.Languages...)
	dst.Screenshots = append(dst.Screenshots, src.Screenshots...)
	return nil
}

func translate(fs *fileSchema) (*Model, error) {
	m := &Model{
		App: AppSettings{
			BuildDir:    defaultBuildDir,
			ResetPolicy: ResetNone,
		},
		Ports: PortSettings{
			Base:   defaultPortBase,
			Offset: defaultPortOffset,
		},
		Timeouts: TimeoutSettings{
			DeviceOp: defaultDeviceOpTimeout,
			Action:   defaultActionTimeout,
		},
		Artifacts: ArtifactSettings{
			DeviceLogLimitBytes: defaultLogLimitBytes,
		},
		Dismissors: fs.Dismissors,
	}

	if a := fs.App; a != nil {
		m.App.IOSBundleID = a.IOSBundleID
		m.App.AndroidPackage = a.AndroidPackage
		m.App.IOSArtifact = a.IOSArtifact
		m.App.AndroidArtifact = a.AndroidArtifact
		if a.BuildDir != "" {
			m.App.BuildDir = a.BuildDir
		}
		if a.ResetPolicy != "" {
			m.App.ResetPolicy = ResetPolicy(a.ResetPolicy)
		}
	}
	if p := fs.Ports; p != nil {
		if p.Base != 0 {
			m.Ports.Base = p.Base
		}
		if p.Offset != 0 {
			m.Ports.Offset = p.Offset
		}
	}
	if t := fs.Timeouts; t != nil {
		if t.DeviceOpMS != 0 {
			m.Timeouts.DeviceOp = time.Duration(t.DeviceOpMS) * time.Millisecond
		}
		if t.ActionMS != 0 {
			m.Timeouts.Action = time.Duration(t.ActionMS) * time.Millisecond
		}
	}
	if a := fs.Artifacts; a != nil && a.DeviceLogLimitBytes != 0 {
		m.Artifacts.DeviceLogLimitBytes = a.DeviceLogLimitBytes
	}

	for _, d := range fs.Devices {
		platform, ok := ParsePlatform(d.Platform)
		if !ok {
			return nil, errf("device %q: unknown platform label %q (want \"ios\" or \"android\")", d.Name, d.Platform)
		}
		caps, err := capabilityMap(d.Capabilities, d.Name)
		if err != nil {
			return nil, err
		}
		dev := Device{
			Platform:     platform,
			Name:         d.Name,
			Folder:       d.Folder,
			OSVersion:    d.OSVersion,
			AVD:          d.AVD,
			StatusBar:    true,
			Capabilities: caps,
		}
		if d.StatusBar != nil {
			dev.StatusBar = *d.StatusBar
		}
		m.Devices = append(m.Devices, dev)
	}

	for _, l := range fs.Languages {
		m.Languages = append(m.Languages, Language{
			Code:          l.Code,
			IOSLocale:     l.IOSLocale,
			AndroidLocale: l.AndroidLocale,
		})
	}

	for _, s := range fs.Screenshots {
		plan := ScreenshotPlan{
			Name:          s.Name,
			IOSAssert:     s.IOSAssert,
			AndroidAssert: s.AndroidAssert,
		}
		if s.Orientation != "" {
			plan.Orientation = Orientation(s.Orientation)
		}
		for _, a := range s.Actions {
			plan.Actions = append(plan.Actions, Action{
				Type:     ActionType(a.Type),
				Selector: a.Selector,
				Duration: time.Duration(a.DurationMS) * time.Millisecond,
				Timeout:  time.Duration(a.TimeoutMS) * time.Millisecond,
			})
		}
		m.Screenshots = append(m.Screenshots, plan)
	}

	if v := fs.Validation; v != nil {
		m.Validation.Enforce = v.Enforce
		m.Validation.Expect = make(map[string]DimensionSet, len(v.Expect))
		for _, e := range v.Expect {
			set, err := dimensionSet(e)
			if err != nil {
				return nil, err
			}
			m.Validation.Expect[e.Folder] = set
		}
	}

	return m, nil
}

// capabilityMap converts the free-form capabilities attribute into a
// string map. Values must be convertible to string; anything else is a
// config error rather than a silent coercion.
func capabilityMap(v cty.Value, deviceName string) (map[string]string, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, errf("device %q: capabilities must be an object of string values", deviceName)
	}
	out := make(map[string]string)
	for key, val := range v.AsValueMap() {
		converted, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, errf("device %q: capability %q is not a string value", deviceName, key)
		}
		out[key] = converted.AsString()
	}
	return out, nil
}

func dimensionSet(e expectSchema) (DimensionSet, error) {
	parse := func(vals []int, orientation string) (Dimension, error) {
		if len(vals) == 0 {
			return Dimension{}, nil
		}
		if len(vals) != 2 || vals[0] <= 0 || vals[1] <= 0 {
			return Dimension{}, errf("validation expect %q: %s must be a [width, height] pair of positive integers", e.Folder, orientation)
		}
		return Dimension{Width: vals[0], Height: vals[1]}, nil
	}
	portrait, err := parse(e.Portrait, "portrait")
	if err != nil {
		return DimensionSet{}, err
	}
	landscape, err := parse(e.Landscape, "landscape")
	if err != nil {
		return DimensionSet{}, err
	}
	return DimensionSet{Portrait: portrait, Landscape: landscape}, nil
}
