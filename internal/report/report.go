// Package report renders a finished run: a machine-readable JSON
// manifest and a human summary. Everything printed here is read straight
// off the RunResult; success and counts are never recomputed.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/vk/shotmatrix/internal/result"
)

// ManifestName is the manifest file written into the output root.
const ManifestName = "manifest.json"

const (
	timeRounding  = 100 * time.Millisecond
	maxErrorWidth = 60
)

// WriteManifest serializes the full run result under the output root.
func WriteManifest(outputRoot string, run *result.RunResult) (string, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating output root: %w", err)
	}
	path := filepath.Join(outputRoot, ManifestName)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

// WriteSummary renders the human-readable run summary.
func WriteSummary(w io.Writer, run *result.RunResult) {
	status := "✅ SUCCESS"
	if !run.Success {
		status = "❌ FAILED"
	}
	fmt.Fprintf(w, "\nRun %s — %s\n", run.RunID, status)
	fmt.Fprintf(w, "Duration: %s  Jobs: %d (%d ok, %d failed, %d cancelled)  Screenshots: %d\n\n",
		run.FinishedAt.Sub(run.StartedAt).Round(timeRounding),
		run.Summary.Jobs, run.Summary.Succeeded, run.Summary.Failed, run.Summary.Cancelled,
		run.Summary.Screenshots)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tPLATFORM\tDEVICE\tLANGUAGE\tSTATUS\tSHOTS\tDURATION\tERROR")
	for _, j := range run.Jobs {
		// Truncate on rune boundaries; error text can carry multi-byte
		// characters (device names, quoted selectors).
		errMsg := j.Error
		if runes := []rune(errMsg); len(runes) > maxErrorWidth {
			errMsg = string(runes[:maxErrorWidth-1]) + "…"
		}
		fmt.Fprintf(tw, "job-%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			j.JobIndex, j.Platform, j.Device, j.Language, j.Status,
			j.CapturedCount(), j.Duration().Round(timeRounding), errMsg)
	}
	tw.Flush()
}
