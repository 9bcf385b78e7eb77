package testparser

import (
	"regexp"
	"strconv"
)

var (
	unittestRanRegex     = regexp.MustCompile(`(?m)^Ran (\d+) tests? in `)
	unittestResultRegex  = regexp.MustCompile(`(?m)^(OK|FAILED)(?: \(([^)]*)\))?\s*$`)
	unittestDetailRegex  = regexp.MustCompile(`(failures|errors|skipped|expected failures|unexpected successes)=(\d+)`)
	unittestFailureRegex = regexp.MustCompile(`(?m)^(FAIL|ERROR): (\S+) \(([^)]+)\)`)
)

// UnittestParser parses the standard library unittest runner output
// (python -m unittest, setup.py test).
type UnittestParser struct{}

// Name returns the parser name.
func (p *UnittestParser) Name() string {
	return "unittest"
}

// Parse extracts counts from output such as:
//
//	Ran 12 tests in 0.004s
//
//	FAILED (failures=1, errors=1, skipped=2)
func (p *UnittestParser) Parse(output string) TestCounts {
	counts := TestCounts{}

	ran := unittestRanRegex.FindStringSubmatch(output)
	result := unittestResultRegex.FindStringSubmatch(output)
	if ran == nil || result == nil {
		return counts
	}

	counts.Total, _ = strconv.Atoi(ran[1])
	for _, m := range unittestDetailRegex.FindAllStringSubmatch(result[2], -1) {
		n, _ := strconv.Atoi(m[2])
		switch m[1] {
		case "failures":
			counts.Failed = n
		case "errors":
			counts.Errors = n
		case "skipped", "expected failures":
			counts.Skipped += n
		}
	}
	counts.Passed = max(counts.Total-counts.Failed-counts.Errors-counts.Skipped, 0)
	counts.Parsed = true

	for _, m := range unittestFailureRegex.FindAllStringSubmatch(output, -1) {
		counts.FailedTests = append(counts.FailedTests, FailedTest{
			Name:   m[3] + "." + m[2],
			Reason: m[1],
		})
	}
	return counts
}
