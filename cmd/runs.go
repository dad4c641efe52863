package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect batch run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.Store.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs recorded")
			return nil
		}
		for _, run := range runs {
			fmt.Fprintf(out, "%s  %-8s  %3d files  %s  %s\n",
				run.ID, run.Status, run.FileCount,
				run.CreatedAt.Format("2006-01-02 15:04:05"), run.DestRoot)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s (%s), %d files, dest %s\n", run.ID, run.Status, run.FileCount, run.DestRoot)
		if run.Report == nil {
			fmt.Fprintln(out, "no report recorded")
			return nil
		}
		printReport(cmd, run.Report)
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
