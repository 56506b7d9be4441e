package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/klhsieh/punchd/internal/control"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a probe message through every configured notification channel",
	Run:   runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) {
	cfg := setup()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize punchd", "error", err)
		os.Exit(1)
	}

	if len(app.Providers()) == 0 {
		fmt.Println("No notification providers configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, r := range app.TestNotify(ctx) {
		switch {
		case r.Delivered:
			fmt.Printf("%s: ok (%v)\n", r.Provider, r.Elapsed.Round(time.Millisecond))
		case r.Skipped:
			fmt.Printf("%s: skipped by policy\n", r.Provider)
		default:
			fmt.Printf("%s: FAILED: %v\n", r.Provider, r.Err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
