package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/archive"
	"github.com/gedworks/archive-cli/internal/fetcher"
	"github.com/gedworks/archive-cli/internal/model"
	"github.com/gedworks/archive-cli/internal/store"
)

var (
	archiveDest    string
	archiveFromFTP []string
)

var archiveCmd = &cobra.Command{
	Use:   "archive [files or directories...]",
	Short: "Classify and archive documents into the category tree",
	Long: `Hashes, deduplicates, classifies and files each document under
{dest}/{CATEGORY}/{Subcategory}/{YYYYMMDD}_{CATEGORY}_{Subcategory}_{name}.

Directories are walked recursively (hidden files skipped). Remote sources
given with --from-ftp are staged locally first. Without --dest, the last
destination used is reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) == 0 && len(archiveFromFTP) == 0 {
			return eris.New("nothing to archive: pass files, directories or --from-ftp URLs")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		destRoot, err := resolveDest(cmd, env)
		if err != nil {
			return err
		}

		files, err := fetcher.Collect(args)
		if err != nil {
			return err
		}

		if len(archiveFromFTP) > 0 {
			stagingDir := cfg.FTP.StagingDir
			if stagingDir == "" {
				stagingDir = filepath.Join(destRoot, ".staging")
			}
			stager := fetcher.NewFTPStager(time.Duration(cfg.FTP.TimeoutSecs) * time.Second)
			for _, url := range archiveFromFTP {
				local, err := stager.Stage(ctx, url, stagingDir)
				if err != nil {
					return eris.Wrapf(err, "stage %s", url)
				}
				files = append(files, local)
			}
		}

		report, err := env.Coord.Run(ctx, files, destRoot, archive.LogObserver{})
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

// resolveDest picks the destination root: the --dest flag, then the last
// destination persisted in the store, then the configured default. The
// choice is persisted for the next run.
func resolveDest(cmd *cobra.Command, env *runtimeEnv) (string, error) {
	ctx := cmd.Context()

	dest := archiveDest
	if dest == "" {
		last, err := env.Store.Setting(ctx, store.SettingLastDestination)
		if err != nil {
			return "", eris.Wrap(err, "read last destination")
		}
		dest = last
	}
	if dest == "" {
		dest = cfg.Archive.DestRoot
	}
	if dest == "" {
		return "", eris.New("no destination: pass --dest or set archive.dest_root")
	}

	if err := env.Store.SetSetting(ctx, store.SettingLastDestination, dest); err != nil {
		zap.L().Warn("could not persist last destination", zap.Error(err))
	}
	return dest, nil
}

func printReport(cmd *cobra.Command, report *model.BatchReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d archived, %d duplicates, %d errors\n",
		report.RunID, report.Archived(), report.Duplicates(), report.Errors())

	for _, o := range report.Outcomes {
		switch o.Kind {
		case model.OutcomeArchived:
			fmt.Fprintf(out, "  archived   %s -> %s\n", o.SourcePath, o.DestinationPath)
		case model.OutcomeDuplicate:
			fmt.Fprintf(out, "  duplicate  %s (already at %s)\n", o.SourcePath, o.DuplicateOf)
		default:
			fmt.Fprintf(out, "  %-10s %s: %s\n", o.Kind, o.SourcePath, o.Error)
		}
		for _, w := range o.Warnings {
			fmt.Fprintf(out, "             warning: %s\n", w)
		}
	}

	if len(report.NewCategories) > 0 {
		fmt.Fprintf(out, "New categories created:\n")
		for _, o := range report.NewCategories {
			fmt.Fprintf(out, "  %s / %s", o.Category, o.Subcategory)
			if o.Rationale != "" {
				fmt.Fprintf(out, " (%s)", o.Rationale)
			}
			fmt.Fprintln(out)
		}
	}
}

func init() {
	archiveCmd.Flags().StringVar(&archiveDest, "dest", "", "archive destination root (default: last used)")
	archiveCmd.Flags().StringSliceVar(&archiveFromFTP, "from-ftp", nil, "FTP URLs to stage and archive")
	rootCmd.AddCommand(archiveCmd)
}
