package testparser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Summary line: "==== 3 failed, 45 passed, 2 skipped, 1 error in 0.12s ====".
	pytestSummaryRegex = regexp.MustCompile(`(?m)^=+ (.+) in [\d.]+s(?: \([^)]*\))? =+\s*$`)
	pytestCountRegex   = regexp.MustCompile(`(\d+) (passed|failed|skipped|errors?|xfailed|xpassed|deselected|warnings?)`)

	// Short test summary entry: "FAILED tests/test_x.py::test_y - AssertionError: boom".
	pytestFailedLineRegex = regexp.MustCompile(`(?m)^(FAILED|ERROR) (\S+)(?: - (.*))?$`)
)

// PytestParser parses pytest output.
type PytestParser struct{}

// Name returns the parser name.
func (p *PytestParser) Name() string {
	return "pytest"
}

// Parse extracts counts from the last pytest summary line in output.
// xpassed counts as passed and xfailed as skipped; deselected and warnings are ignored.
func (p *PytestParser) Parse(output string) TestCounts {
	counts := TestCounts{}

	summaries := pytestSummaryRegex.FindAllStringSubmatch(output, -1)
	if len(summaries) == 0 {
		return counts
	}
	summary := summaries[len(summaries)-1][1]

	for _, m := range pytestCountRegex.FindAllStringSubmatch(summary, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "passed", "xpassed":
			counts.Passed += n
		case "failed":
			counts.Failed += n
		case "skipped", "xfailed":
			counts.Skipped += n
		case "error", "errors":
			counts.Errors += n
		default:
			continue
		}
		counts.Parsed = true
	}
	if !counts.Parsed {
		return counts
	}
	counts.Total = counts.Passed + counts.Failed + counts.Skipped + counts.Errors

	for _, m := range pytestFailedLineRegex.FindAllStringSubmatch(output, -1) {
		counts.FailedTests = append(counts.FailedTests, FailedTest{
			Name:   m[2],
			Reason: strings.TrimSpace(m[3]),
		})
	}
	return counts
}
