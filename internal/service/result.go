package service

import (
	"time"

	"github.com/mmcdole/covergen/internal/domain"
)

// Status is the outcome class of one collection
type Status string

const (
	StatusUpdated  Status = "updated"
	StatusSkipped  Status = "skipped"  // history says the cover is current
	StatusExcluded Status = "excluded" // on the exclude list
	StatusEmpty    Status = "empty"    // no usable items or images
	StatusFailed   Status = "failed"
)

// Outcome reports what happened to one collection
type Outcome struct {
	Server     string
	Collection domain.Collection
	Status     Status
	Custom     bool // Composed from the custom image directory
	Images     int  // Source images handed to the compositor
	OutputPath string
	Err        error
	Duration   time.Duration
}

// Result summarizes a run
type Result struct {
	Outcomes []Outcome
	Catalog  []string // Names of every listed collection, filtered or not
	Duration time.Duration
}

// Count returns how many outcomes have the given status
func (r Result) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// AllFailed reports whether at least one collection was attempted and none succeeded
func (r Result) AllFailed() bool {
	attempted := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusExcluded {
			continue
		}
		attempted++
		if o.Status != StatusFailed {
			return false
		}
	}
	return attempted > 0
}
