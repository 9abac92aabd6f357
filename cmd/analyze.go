package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/marketintel/internal/model"
)

var (
	analyzeScope  string
	analyzeRegion string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Run one full analysis synchronously and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.RunReport(cmd.Context(), model.JobInput{
			BaseURL: args[0],
			Scope:   analyzeScope,
			Region:  analyzeRegion,
		})
		if err != nil {
			return eris.Wrapf(err, "analyze %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeScope, "scope", "", "market scope, e.g. \"B2B accounting software\"")
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "", "geographic focus, e.g. \"Europe\"")
	rootCmd.AddCommand(analyzeCmd)
}
