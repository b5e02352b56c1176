// Package fsutil holds the small filesystem helpers behind configuration
// discovery.
package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesByExtension walks rootPath and returns the full path of every
// file whose name ends with extension, in walk order. The configuration
// loader uses it to gather the .hcl files of a config directory.
func FindFilesByExtension(rootPath, extension string) ([]string, error) {
	if extension == "" {
		return nil, errors.New("file extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
