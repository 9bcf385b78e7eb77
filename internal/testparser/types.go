// Package testparser extracts test counts from Python test runner output.
package testparser

// FailedTest holds information about a single failed test.
type FailedTest struct {
	Name   string // Test node id (e.g., "tests/test_middleware.py::test_register")
	Reason string // Failure reason/error message
}

// TestCounts holds parsed test result counts.
type TestCounts struct {
	Passed      int
	Failed      int
	Skipped     int
	Errors      int
	Total       int
	Parsed      bool         // true if counts were successfully extracted
	FailedTests []FailedTest // details of failed tests
}

// Add adds another TestCounts to this one.
// Parsed is sticky: the aggregate is Parsed if any added value was.
func (tc *TestCounts) Add(other *TestCounts) {
	if other == nil {
		return
	}
	tc.Passed += other.Passed
	tc.Failed += other.Failed
	tc.Skipped += other.Skipped
	tc.Errors += other.Errors
	tc.Total += other.Total
	tc.FailedTests = append(tc.FailedTests, other.FailedTests...)
	if other.Parsed {
		tc.Parsed = true
	}
}

// Parser extracts test counts from a test runner's output.
type Parser interface {
	Parse(output string) TestCounts
	Name() string
}
