// Package ports deterministically maps a job index to a non-overlapping
// set of network ports. Allocation is a pure computation: whether a port
// is genuinely free on the host is a runtime concern surfaced by the job
// that tries to bind it, never predicted here.
package ports

import "fmt"

const (
	// minPort is the lowest port we will ever hand out. Everything below
	// is reserved for well-known services.
	minPort = 1024
	// maxPort is the top of the valid TCP port range.
	maxPort = 65535
	// maxOffset bounds the per-job stride so a large plan cannot walk off
	// the end of the port range.
	maxOffset = 100
	// portsPerJob is the number of ports reserved by one allocation:
	// the automation server port plus one auxiliary port per platform.
	portsPerJob = 3
)

// Allocation is the port triple owned by exactly one job. Both auxiliary
// ports are reserved for every job regardless of platform so the formula
// stays index-only; only the one matching the job's platform is bound.
type Allocation struct {
	Automation int `json:"automation"`
	IOSAux     int `json:"ios_aux"`
	AndroidAux int `json:"android_aux"`
}

// Ports returns all three reserved ports, bound or not.
func (a Allocation) Ports() [3]int {
	return [3]int{a.Automation, a.IOSAux, a.AndroidAux}
}

// RangeError reports an allocation request that would leave the valid
// TCP port range, or an allocator built from out-of-range settings.
type RangeError struct {
	Base   int
	Offset int
	Index  int
	Reason string
}

// Error implements the error interface for RangeError.
func (e *RangeError) Error() string {
	return fmt.Sprintf("port allocation invalid (base=%d offset=%d index=%d): %s",
		e.Base, e.Offset, e.Index, e.Reason)
}

// Allocator computes port allocations from a base port and a fixed
// per-job offset. It is safe for concurrent use; it holds no state
// beyond its configuration.
type Allocator struct {
	base   int
	offset int
}

// New validates the base and offset once, so every later Allocate call
// only needs to range-check its own index.
func New(base, offset int) (*Allocator, error) {
	if base < minPort || base > maxPort {
		return nil, &RangeError{Base: base, Offset: offset,
			Reason: fmt.Sprintf("base port must be within %d-%d", minPort, maxPort)}
	}
	if offset < portsPerJob {
		return nil, &RangeError{Base: base, Offset: offset,
			Reason: fmt.Sprintf("offset must be at least %d so consecutive jobs cannot overlap", portsPerJob)}
	}
	if offset > maxOffset {
		return nil, &RangeError{Base: base, Offset: offset,
			Reason: fmt.Sprintf("offset must not exceed %d to avoid port exhaustion", maxOffset)}
	}
	return &Allocator{base: base, offset: offset}, nil
}

// Allocate returns the deterministic port triple for a zero-based job
// index. For any two distinct indices the resulting triples are disjoint.
func (a *Allocator) Allocate(index int) (Allocation, error) {
	if index < 0 {
		return Allocation{}, &RangeError{Base: a.base, Offset: a.offset, Index: index,
			Reason: "job index must not be negative"}
	}
	automation := a.base + index*a.offset
	if automation+portsPerJob-1 > maxPort {
		return Allocation{}, &RangeError{Base: a.base, Offset: a.offset, Index: index,
			Reason: fmt.Sprintf("computed ports exceed %d", maxPort)}
	}
	return Allocation{
		Automation: automation,
		IOSAux:     automation + 1,
		AndroidAux: automation + 2,
	}, nil
}
