package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "impactgate",
		Short: "Flag high-impact AI research/news story clusters with self-calibrating thresholds",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(guardrailCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Collect feeds and update story clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest()
		},
	}
}

func scoreCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rescore all active clusters and apply the gates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		jsonOutput   bool
		limit        int
		eligibleOnly bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the calibration report (clear passes and near misses)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(jsonOutput, limit, eligibleOnly)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows per side")
	cmd.Flags().BoolVar(&eligibleOnly, "eligible-only", true, "restrict to eligible clusters")
	return cmd
}

func guardrailCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Show trailing-window label rates against the guardrail band",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardrail(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	return cmd
}
