package main

import (
	"fmt"

	"peppolsync/internal/core/version"
	"peppolsync/internal/platform/logger"
	"peppolsync/internal/services/housekeeping"
	"peppolsync/internal/services/syncer/service"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	a.opts = defaults()
	root := &cobra.Command{
		Use:           "peppolsync",
		Short:         "Download the PEPPOL business-card export and split it per country",
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.opts.Verbose, "verbose", "V", false, "debug logging")
	pf.StringVarP(&a.opts.TmpDir, "tmp", "T", a.opts.TmpDir, "directory for the downloaded export")
	pf.StringVarP(&a.opts.OutputDir, "out", "O", a.opts.OutputDir, "output root for the split files")
	pf.StringVarP(&a.opts.Max, "max", "M", a.opts.Max, "rotate a country file past this size (2000000, 2MB)")
	pf.BoolVarP(&a.opts.Force, "force", "F", false, "download even when a cached export exists")
	pf.BoolVarP(&a.opts.NoCleanup, "nocleanup", "C", false, "keep previous extracts")
	pf.BoolVarP(&a.opts.KeepTmp, "keep-tmp", "K", false, "keep the downloaded export")

	huge := hugeCmd(a)
	huge.Flags().IntVarP(&a.opts.Count, "count", "n", a.opts.Count, "how many files to list")

	root.AddCommand(syncCmd(a), downloadCmd(a), checkCmd(a), huge)
	return root
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download, split and report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.WithRun(cmd.Context(), a.runID)
			_, err := a.runner.Run(ctx, service.RunOptions{
				Force:   a.opts.Force,
				Cleanup: !a.opts.NoCleanup,
				KeepTmp: a.opts.KeepTmp,
			})
			return err
		},
	}
}

func downloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Only fetch the export into the tmp directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dl, err := a.fetcher.Fetch(logger.WithRun(cmd.Context(), a.runID), a.opts.Force)
			if err != nil {
				return err
			}
			state := "downloaded"
			if dl.CacheHit {
				state = "cached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export %s: %s (%s)\n", state, dl.Path, datasize.ByteSize(dl.Bytes).HR())
			return nil
		},
	}
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := a.syncer.Options()
			fmt.Fprintf(cmd.OutOrStdout(), "Temp directory:   %s\n", o.TmpDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Output directory: %s\n", o.OutputDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Max file size:    %d bytes (%s)\n", o.MaxBytes, datasize.ByteSize(o.MaxBytes).HR())
			fmt.Fprintf(cmd.OutOrStdout(), "Export URL:       %s\n", o.ExportURL)
			if o.HTTPTimeout > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "HTTP timeout:     %s\n", o.HTTPTimeout)
			}
			return nil
		},
	}
}

func hugeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "huge",
		Short: "List the largest split files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := housekeeping.Largest(a.opts.OutputDir, a.opts.Count)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No extracts under %s\n", a.opts.OutputDir)
				return nil
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%10s  %s\n", f.Human(), f.Path)
			}
			return nil
		},
	}
}
