package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gedworks/archive-cli/internal/fetcher"
	"github.com/gedworks/archive-cli/internal/hash"
)

var scanReconcile bool

var scanCmd = &cobra.Command{
	Use:   "scan [files or directories...]",
	Short: "Report which files are already archived",
	Long: `Hashes every file and checks the duplicate index.

By default lists files whose content is already archived. With --reconcile
it lists the opposite: files that are NOT in the index. Run it against the
archive tree to find copies left behind by an interrupted batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := fetcher.Collect(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		known, unknown, unreadable := 0, 0, 0
		for _, file := range files {
			fp, err := hash.File(file)
			if err != nil {
				unreadable++
				fmt.Fprintf(out, "  unreadable %s: %v\n", file, err)
				continue
			}

			archivedAt, err := env.Store.LookupFingerprint(ctx, fp)
			if err != nil {
				return err
			}

			if archivedAt != "" {
				known++
				if !scanReconcile {
					fmt.Fprintf(out, "  indexed    %s (at %s)\n", file, archivedAt)
				}
			} else {
				unknown++
				if scanReconcile {
					fmt.Fprintf(out, "  unindexed  %s\n", file)
				}
			}
		}

		fmt.Fprintf(out, "%d files: %d indexed, %d not indexed, %d unreadable\n",
			len(files), known, unknown, unreadable)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanReconcile, "reconcile", false, "list files missing from the index instead")
	rootCmd.AddCommand(scanCmd)
}
