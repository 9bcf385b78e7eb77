// Package model provides result types shared by the matrix runner, the task
// dispatcher and the CLI summary printer.
package model

import (
	"errors"
	"time"

	"github.com/AndreyAkinshin/taskmatrix/internal/testparser"
)

// Status is the outcome of one environment in a matrix run.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// EnvironmentResult tracks the execution result of a single environment.
type EnvironmentResult struct {
	Name       string
	Status     Status
	Duration   time.Duration
	Error      error  // Failure or skip reason
	Command    string // Command that failed, if any
	TestCounts *testparser.TestCounts
}

// MatrixSummary contains aggregated results from running several environments.
type MatrixSummary struct {
	Environments  []EnvironmentResult
	TotalDuration time.Duration
	Passed        int
	Failed        int
	Skipped       int
	TestCounts    *testparser.TestCounts // Aggregated test counts; nil when nothing was parsed
}

// Add records an environment result and updates the counters.
func (s *MatrixSummary) Add(r EnvironmentResult) {
	s.Environments = append(s.Environments, r)
	switch r.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	if r.TestCounts != nil && r.TestCounts.Parsed {
		if s.TestCounts == nil {
			s.TestCounts = &testparser.TestCounts{}
		}
		s.TestCounts.Add(r.TestCounts)
	}
}

// Success reports whether no environment failed.
func (s *MatrixSummary) Success() bool {
	return s.Failed == 0
}

// Err joins every environment failure, in run order.
// Returns nil when all environments passed or were skipped.
func (s *MatrixSummary) Err() error {
	var errs []error
	for _, r := range s.Environments {
		if r.Status == StatusFailed && r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return errors.Join(errs...)
}
