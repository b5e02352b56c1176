// Package build locates application artifacts. It never builds anything
// itself: when no artifact can be found the caller gets a
// MissingArtifactError telling the user to build first.
package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/shotmatrix/internal/config"
)

// MissingArtifactError means no artifact exists for a platform and the
// app must be built before a run can be planned.
type MissingArtifactError struct {
	Platform  config.Platform
	SearchDir string
}

// Error implements the error interface.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("no %s artifact found under %q: build the app first or pass an explicit artifact path",
		e.Platform, e.SearchDir)
}

// Resolver finds artifacts by explicit path or by scanning the build
// directory for the most recent output.
type Resolver struct {
	BuildDir string
}

// NewResolver creates a resolver rooted at the configured build dir.
func NewResolver(buildDir string) *Resolver {
	return &Resolver{BuildDir: buildDir}
}

// Resolve returns the artifact path for a platform. A non-empty override
// must exist; otherwise the newest conventional build output wins.
func (r *Resolver) Resolve(platform config.Platform, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%s artifact %q: %w", platform, override, err)
		}
		return override, nil
	}

	suffix := ".apk"
	if platform == config.PlatformIOS {
		suffix = ".app"
	}
	found, err := newestWithSuffix(r.BuildDir, suffix)
	if err != nil {
		return "", fmt.Errorf("scanning %q for %s artifacts: %w", r.BuildDir, platform, err)
	}
	if found == "" {
		return "", &MissingArtifactError{Platform: platform, SearchDir: r.BuildDir}
	}
	return found, nil
}

// newestWithSuffix finds the most recently modified entry with the given
// suffix. iOS .app bundles are directories, so both files and dirs match;
// descent stops at a matching dir so nested bundle contents never win.
func newestWithSuffix(root, suffix string) (string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	newest := ""
	var newestMod int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = path
			newestMod = mod
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return newest, nil
}
