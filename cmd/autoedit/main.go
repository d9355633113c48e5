package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/makeasinger/autoedit/internal/app"
	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/logging"
)

var (
	verbose bool
	jsonOut bool
)

type appKey struct{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "autoedit",
	Short:         "autoedit - automated video edit planning and rendering",
	Long:          "Runs the analysis, planning and render pipeline against registered assets without going through the job queue.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		level := cfg.Server.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Configure(logging.Config{
			Level:   level,
			Output:  os.Stderr,
			Service: "autoedit-cli",
			Console: true,
		})

		// token minting needs no stores
		if cmd == tokenCmd {
			cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
			return nil
		}

		a, err := app.Open(cmd.Context(), cfg, logging.Base())
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(config.WithConfig(cmd.Context(), cfg), appKey{}, a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a := appFrom(cmd); a != nil {
			a.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
}

func appFrom(cmd *cobra.Command) *app.App {
	a, _ := cmd.Context().Value(appKey{}).(*app.App)
	return a
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
