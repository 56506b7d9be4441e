package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/klhsieh/punchd/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running punchd daemon",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup()

	url := fmt.Sprintf("http://127.0.0.1:%d/health/detailed", cfg.Server.Port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Could not reach the daemon, is it running?", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode health report", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "STATUS\t%s\n", report.SystemStatus)
	_, _ = fmt.Fprintf(w, "BREAKER\t%s\n", report.BreakerState)
	_, _ = fmt.Fprintf(w, "UPTIME\t%ds\n", report.UptimeSeconds)
	_, _ = fmt.Fprintf(w, "FAILURE STREAK\t%d\n", report.ConsecutiveFailures)
	if report.LastRun != nil {
		_, _ = fmt.Fprintf(w, "LAST RUN\t%s %s (%s) %s\n",
			report.LastRun.Action,
			report.LastRun.Result,
			report.LastRun.Timestamp.Format(time.RFC3339),
			report.LastRun.Message,
		)
	}
	for _, run := range report.NextRuns {
		_, _ = fmt.Fprintf(w, "NEXT %s\t%s\n", run.Job, run.At.Format(time.RFC3339))
	}
	_ = w.Flush()
}
