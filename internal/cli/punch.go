package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/klhsieh/punchd/internal/control"
	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/punch"
)

var (
	punchReal bool
	punchYes  bool
)

var punchCmd = &cobra.Command{
	Use:   "punch [enter|exit]",
	Short: "Run a single punch flow immediately",
	Long: `Runs one punch flow and exits. Without --real the flow stops short of
the button click and reports what would have happened. With --real the
confirmation prompt guards the click unless --yes pre-authorizes it.`,
	Args: cobra.ExactArgs(1),
	Run:  runPunch,
}

func init() {
	punchCmd.Flags().BoolVar(&punchReal, "real", false, "actually click the punch button")
	punchCmd.Flags().BoolVar(&punchYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(punchCmd)
}

func runPunch(cmd *cobra.Command, args []string) {
	action, err := domain.ParseAction(args[0])
	if err != nil {
		fmt.Printf("Invalid action: %v\n", err)
		os.Exit(1)
	}

	cfg := setup()
	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize punchd", "error", err)
		os.Exit(1)
	}

	outcome := app.RunOnce(context.Background(), punch.RunRequest{
		Action:      action,
		Real:        punchReal,
		Confirmed:   punchYes,
		Interactive: true,
	})

	slog.Info("Run complete",
		"run_id", outcome.RunID,
		"result", outcome.Result(),
		"message", outcome.Message,
	)
	if !outcome.Success {
		os.Exit(1)
	}
}
