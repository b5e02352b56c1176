package executor

import (
	"fmt"

	"github.com/vk/shotmatrix/internal/config"
)

// ProvisionError is a failure while getting the device and app ready.
// It is terminal for its job only; sibling jobs are unaffected.
type ProvisionError struct {
	Stage string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// ActionError is a failure inside a screenshot plan. It ends the job's
// remaining actions but never aborts sibling jobs.
type ActionError struct {
	Plan   string
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("screenshot %q: action %s failed: %v", e.Plan, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ValidationError is a dimension mismatch. Whether it fails the job is
// decided by the validation enforce flag; when not enforced it is only
// logged.
type ValidationError struct {
	Screenshot string
	Want       config.Dimension
	Got        config.Dimension
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("screenshot %q: dimensions %dx%d do not match expected %dx%d",
		e.Screenshot, e.Got.Width, e.Got.Height, e.Want.Width, e.Want.Height)
}
