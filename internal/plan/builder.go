package plan

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vk/shotmatrix/internal/config"
	"github.com/vk/shotmatrix/internal/ports"
)

// Rough wall-clock estimates used for the plan's duration hint. They are
// deliberately pessimistic: device boot dominates real runs.
const (
	perJobOverheadEstimate = 90 * time.Second
	perShotEstimate        = 10 * time.Second
)

// Filters are case-insensitive allow-lists. An empty list keeps
// everything; a non-empty list keeps only matching names.
type Filters struct {
	Platforms   []string
	Devices     []string
	Languages   []string
	Screenshots []string
}

// Overrides carries the CLI-supplied artifact paths that take precedence
// over the configured ones.
type Overrides struct {
	IOSArtifact     string
	AndroidArtifact string
}

// ArtifactResolver locates the application artifact for a platform. The
// override, when non-empty, wins over any discovered build output.
type ArtifactResolver interface {
	Resolve(platform config.Platform, override string) (string, error)
}

// Totals are the aggregate counts over a built plan.
type Totals struct {
	Platforms   int `json:"platforms"`
	Devices     int `json:"devices"`
	Languages   int `json:"languages"`
	Screenshots int `json:"screenshots"`
}

// Plan is the ordered, immutable job list for one run.
type Plan struct {
	Jobs              []*Job
	Totals            Totals
	EstimatedDuration time.Duration
}

// Build expands the configuration into the filtered Cartesian product of
// platforms × devices × languages. Filters apply before index assignment,
// so job indices are always contiguous 0..N-1 for the filtered plan and
// port ranges never have gaps.
func Build(cfg *config.Model, outputRoot string, filters Filters, overrides Overrides, alloc *ports.Allocator, resolver ArtifactResolver) (*Plan, error) {
	shots, err := filterScreenshots(cfg.Screenshots, filters.Screenshots)
	if err != nil {
		return nil, err
	}

	languages := filterLanguages(cfg.Languages, filters.Languages)

	p := &Plan{}
	platformsSeen := make(map[config.Platform]bool)
	devicesSeen := make(map[string]bool)
	languagesSeen := make(map[string]bool)
	artifacts := make(map[config.Platform]string)

	index := 0
	for _, platform := range cfg.Platforms() {
		if !matches(filters.Platforms, string(platform)) {
			continue
		}
		for _, device := range cfg.DevicesFor(platform) {
			if !matches(filters.Devices, device.Name) && !matches(filters.Devices, device.Folder) {
				continue
			}
			for _, language := range languages {
				if language.Locale(platform) == "" {
					return nil, &config.Error{Detail: fmt.Sprintf(
						"language %q has no %s locale mapping", language.Code, platform)}
				}

				artifact, ok := artifacts[platform]
				if !ok {
					artifact, err = resolver.Resolve(platform, artifactOverride(cfg, overrides, platform))
					if err != nil {
						return nil, err
					}
					artifacts[platform] = artifact
				}

				allocation, err := alloc.Allocate(index)
				if err != nil {
					return nil, err
				}

				device := device
				job := &Job{
					Index:        index,
					Platform:     platform,
					Language:     language,
					Screenshots:  shots,
					OutputDir:    filepath.Join(outputRoot, string(platform), device.Folder, language.Code),
					Ports:        allocation,
					ArtifactPath: artifact,
				}
				if platform == config.PlatformIOS {
					job.IOSDevice = &device
				} else {
					job.AndroidDevice = &device
				}
				p.Jobs = append(p.Jobs, job)

				platformsSeen[platform] = true
				devicesSeen[string(platform)+"/"+device.Folder] = true
				languagesSeen[strings.ToLower(language.Code)] = true
				index++
			}
		}
	}

	if len(p.Jobs) == 0 {
		return nil, &config.Error{Detail: "filters matched no jobs: nothing to run"}
	}

	p.Totals = Totals{
		Platforms:   len(platformsSeen),
		Devices:     len(devicesSeen),
		Languages:   len(languagesSeen),
		Screenshots: len(shots) * len(p.Jobs),
	}
	perJob := perJobOverheadEstimate + time.Duration(len(shots))*perShotEstimate
	p.EstimatedDuration = time.Duration(len(p.Jobs)) * perJob

	return p, nil
}

func artifactOverride(cfg *config.Model, overrides Overrides, platform config.Platform) string {
	if platform == config.PlatformIOS {
		if overrides.IOSArtifact != "" {
			return overrides.IOSArtifact
		}
		return cfg.App.IOSArtifact
	}
	if overrides.AndroidArtifact != "" {
		return overrides.AndroidArtifact
	}
	return cfg.App.AndroidArtifact
}

// matches implements allow-list semantics: an empty filter admits every
// name, a non-empty one admits case-insensitive members only.
func matches(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.ContainsFunc(filter, func(f string) bool {
		return strings.EqualFold(strings.TrimSpace(f), name)
	})
}

func filterScreenshots(all []config.ScreenshotPlan, filter []string) ([]config.ScreenshotPlan, error) {
	if len(filter) == 0 {
		return all, nil
	}
	var out []config.ScreenshotPlan
	for _, s := range all {
		if matches(filter, s.Name) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &config.Error{Detail: fmt.Sprintf(
			"screenshot filter %v matched none of the configured plans", filter)}
	}
	return out, nil
}

func filterLanguages(all []config.Language, filter []string) []config.Language {
	if len(filter) == 0 {
		return all
	}
	var out []config.Language
	for _, l := range all {
		if matches(filter, l.Code) {
			out = append(out, l)
		}
	}
	return out
}
