package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/AndreyAkinshin/taskmatrix/internal/model"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/testparser"
)

// printMatrixSummary prints per-environment results followed by totals.
func printMatrixSummary(w *output.Writer, s *model.MatrixSummary) {
	if len(s.Environments) == 0 {
		w.Info("No environments to run.")
		return
	}

	w.SummaryHeader("Matrix Summary")
	for _, r := range s.Environments {
		w.SummaryAction(r.Name, summaryStatus(r.Status), formatDuration(r.Duration), resultDetail(r))
	}

	w.Println("")
	w.SummaryItem("Environments", fmt.Sprintf("%d passed, %d failed, %d skipped", s.Passed, s.Failed, s.Skipped))
	if s.TestCounts != nil {
		w.SummaryItem("Tests", formatCounts(s.TestCounts))
		if len(s.TestCounts.FailedTests) > 0 {
			w.Println("")
			w.Println("  Failed tests:")
			for _, ft := range s.TestCounts.FailedTests {
				if ft.Reason != "" {
					w.Println("    %s - %s", ft.Name, ft.Reason)
				} else {
					w.Println("    %s", ft.Name)
				}
			}
		}
	}
	w.SummaryItem("Duration", formatDuration(s.TotalDuration))

	total := len(s.Environments)
	if s.Success() {
		w.FinalSuccess("All %d environment(s) succeeded.", total-s.Skipped)
	} else {
		w.FinalFailure("%d of %d environment(s) failed.", s.Failed, total)
	}
}

func summaryStatus(s model.Status) output.Status {
	switch s {
	case model.StatusPassed:
		return output.StatusPassed
	case model.StatusSkipped:
		return output.StatusSkipped
	}
	return output.StatusFailed
}

func resultDetail(r model.EnvironmentResult) string {
	switch {
	case r.Status == model.StatusSkipped && r.Error != nil:
		return r.Error.Error()
	case r.Command != "":
		return r.Command
	case r.TestCounts != nil && r.TestCounts.Parsed:
		return formatCounts(r.TestCounts)
	}
	return ""
}

func formatCounts(c *testparser.TestCounts) string {
	parts := []string{fmt.Sprintf("%d passed", c.Passed)}
	if c.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", c.Failed))
	}
	if c.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", c.Errors))
	}
	if c.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", c.Skipped))
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
