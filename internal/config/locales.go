package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// localeOverride is one entry in the optional YAML locale file. Keys are
// canonical language codes; empty fields leave the HCL value in place.
type localeOverride struct {
	IOS     string `yaml:"ios"`
	Android string `yaml:"android"`
}

// ApplyLocaleOverrides merges a YAML locale-mapping file into the model.
// Entries for unknown language codes add new languages, so a translation
// team can extend the matrix without touching the main config.
func ApplyLocaleOverrides(m *Model, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errf("locale override file %q: %v", path, err)
	}

	overrides := make(map[string]localeOverride)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return errf("locale override file %q: %v", path, err)
	}

	for code, o := range overrides {
		if o.IOS == "" && o.Android == "" {
			return errf("locale override %q maps no platform", code)
		}
		applied := false
		for i := range m.Languages {
			if !strings.EqualFold(m.Languages[i].Code, code) {
				continue
			}
			if o.IOS != "" {
				m.Languages[i].IOSLocale = o.IOS
			}
			if o.Android != "" {
				m.Languages[i].AndroidLocale = o.Android
			}
			applied = true
			break
		}
		if !applied {
			m.Languages = append(m.Languages, Language{
				Code:          code,
				IOSLocale:     o.IOS,
				AndroidLocale: o.Android,
			})
		}
	}
	return nil
}
