package config

import "strings"

// validate performs the semantic checks that the HCL schema alone cannot
// express. The returned error is always a *Error.
func validate(m *Model) error {
	if err := validateApp(m); err != nil {
		return err
	}
	if err := validateDevices(m); err != nil {
		return err
	}
	if err := validateLanguages(m); err != nil {
		return err
	}
	return validateScreenshots(m)
}

func validateApp(m *Model) error {
	switch m.App.ResetPolicy {
	case ResetNone, ResetOnLanguageChange, ResetAlwaysReinstall:
	default:
		return errf("unknown reset_policy %q (want %q, %q or %q)",
			m.App.ResetPolicy, ResetNone, ResetOnLanguageChange, ResetAlwaysReinstall)
	}
	return nil
}

func validateDevices(m *Model) error {
	if len(m.Devices) == 0 {
		return errf("at least one device block is required")
	}
	seenName := make(map[string]bool)
	seenFolder := make(map[string]Platform)
	for _, d := range m.Devices {
		key := string(d.Platform) + "/" + strings.ToLower(d.Name)
		if seenName[key] {
			return errf("duplicate device %q for platform %s", d.Name, d.Platform)
		}
		seenName[key] = true

		if d.Folder == "" {
			return errf("device %q: folder is required", d.Name)
		}
		if owner, dup := seenFolder[d.Folder]; dup && owner == d.Platform {
			return errf("device %q: folder %q already used by another %s device", d.Name, d.Folder, d.Platform)
		}
		seenFolder[d.Folder] = d.Platform

		if d.Platform == PlatformAndroid && d.AVD == "" {
			return errf("device %q: android devices must name an avd", d.Name)
		}
	}
	return nil
}

func validateLanguages(m *Model) error {
	if len(m.Languages) == 0 {
		return errf("at least one language block is required")
	}
	seen := make(map[string]bool)
	for _, l := range m.Languages {
		code := strings.ToLower(l.Code)
		if seen[code] {
			return errf("duplicate language %q", l.Code)
		}
		seen[code] = true
		if l.IOSLocale == "" && l.AndroidLocale == "" {
			return errf("language %q has no locale mapping for any platform", l.Code)
		}
	}
	return nil
}

func validateScreenshots(m *Model) error {
	if len(m.Screenshots) == 0 {
		return errf("at least one screenshot block is required")
	}
	seen := make(map[string]bool)
	for _, s := range m.Screenshots {
		name := strings.ToLower(s.Name)
		if seen[name] {
			return errf("duplicate screenshot %q", s.Name)
		}
		seen[name] = true

		switch s.Orientation {
		case "", OrientationPortrait, OrientationLandscape:
		default:
			return errf("screenshot %q: invalid orientation %q", s.Name, s.Orientation)
		}

		captures := 0
		for i, a := range s.Actions {
			switch a.Type {
			case ActionTap:
				if a.Selector == "" {
					return errf("screenshot %q action %d: tap requires a selector", s.Name, i)
				}
			case ActionWait:
				if a.Duration <= 0 {
					return errf("screenshot %q action %d: wait requires duration_ms > 0", s.Name, i)
				}
			case ActionWaitFor:
				if a.Selector == "" {
					return errf("screenshot %q action %d: wait_for requires a selector", s.Name, i)
				}
			case ActionCapture:
				captures++
			default:
				return errf("screenshot %q action %d: unknown action type %q", s.Name, i, a.Type)
			}
		}
		if captures == 0 {
			return errf("screenshot %q has no capture action", s.Name)
		}
	}
	return nil
}
