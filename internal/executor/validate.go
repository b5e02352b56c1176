package executor

import (
	"context"
	"fmt"

	"github.com/vk/shotmatrix/internal/config"
)

// validate checks every captured screenshot against the configured
// expected dimensions for this device folder and the plan's orientation.
// Dimensions are recorded on the result either way; whether a mismatch
// fails the job depends on the enforce flag.
func (r *jobRun) validate(ctx context.Context) error {
	settings := r.e.cfg.Validation
	folder := r.job.Device().Folder

	orientations := make(map[string]config.Orientation, len(r.job.Screenshots))
	for _, shot := range r.job.Screenshots {
		o := shot.Orientation
		if o == "" {
			o = config.OrientationPortrait
		}
		orientations[shot.Name] = o
	}

	for i := range r.res.Screenshots {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		shot := &r.res.Screenshots[i]
		if !shot.OK {
			continue
		}

		width, height, err := r.e.deps.Inspector.Dimensions(shot.Path)
		if err != nil {
			// A screenshot we cannot even inspect is suspicious but not a
			// dimension mismatch; leave the decision to a human.
			r.logger.Warn("Could not inspect screenshot.", "name", shot.Name, "error", err)
			continue
		}
		shot.Width = width
		shot.Height = height

		want, configured := settings.Expected(folder, orientations[shot.Name])
		if !configured {
			continue
		}
		if width == want.Width && height == want.Height {
			continue
		}

		mismatch := &ValidationError{
			Screenshot: shot.Name,
			Want:       want,
			Got:        config.Dimension{Width: width, Height: height},
		}
		if settings.Enforce {
			return mismatch
		}
		r.logger.Warn("Screenshot dimensions differ from expectation.",
			"name", shot.Name,
			"got", fmt.Sprintf("%dx%d", width, height),
			"want", fmt.Sprintf("%dx%d", want.Width, want.Height))
	}
	return nil
}
