package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func output(c *cli.Command) io.Writer {
	if root := c.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// statusLabel renders a RAG status in its traffic light color
func statusLabel(s types.ToleranceStatus) string {
	switch s {
	case types.ToleranceGreen:
		return color.GreenString("%s", s)
	case types.ToleranceAmber:
		return color.YellowString("%s", s)
	case types.ToleranceRed:
		return color.New(color.FgRed, color.Bold).Sprint(s.String())
	default:
		return color.HiBlackString("%s", types.ToleranceUnknown)
	}
}

func printStatus(w io.Writer, status *model.EnterpriseStatus) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Organization %s: ", status.OrgID)
	_, _ = fmt.Fprintln(w, statusLabel(status.Status))
	if status.UnknownCategories > 0 {
		_, _ = fmt.Fprintf(w, "  categories without a known status: %d\n", status.UnknownCategories)
	}

	for _, cat := range status.Categories {
		_, _ = fmt.Fprintf(w, "\n  %-24s %-12s %s\n", cat.CategoryID, cat.Level, statusLabel(cat.Status))
		for _, m := range cat.Metrics {
			value := "-"
			if m.Value != nil {
				value = fmt.Sprintf("%g", *m.Value)
			}
			_, _ = fmt.Fprintf(w, "    %-22s %-12s %-10s %s\n", m.Name, m.MetricType, value, statusLabel(m.Status))
		}
	}
}

func printCommit(w io.Writer, result *model.CommitResult) {
	commit := result.Commit
	_, _ = color.New(color.FgGreen, color.Bold).Fprintf(w, "Committed %s for %s\n", commit.Period, commit.OrgID)
	_, _ = fmt.Fprintf(w, "  snapshots:      %d\n", result.SnapshotCount)
	_, _ = fmt.Fprintf(w, "  open:           %d\n", commit.OpenCount)
	_, _ = fmt.Fprintf(w, "  monitoring:     %d\n", commit.MonitoringCount)
	_, _ = fmt.Fprintf(w, "  closed:         %d\n", commit.ClosedCount)
	_, _ = fmt.Fprintf(w, "  total inherent: %d\n", commit.TotalInherent)
	_, _ = fmt.Fprintf(w, "  total residual: %d\n", commit.TotalResidual)
	_, _ = fmt.Fprintf(w, "  active period:  %s\n", result.ActivePeriod)
}
