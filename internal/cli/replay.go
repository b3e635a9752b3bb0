package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licdata/licmerge/internal/archive"
	"github.com/licdata/licmerge/internal/config"
	"github.com/licdata/licmerge/internal/schedule"
	"github.com/licdata/licmerge/internal/source"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Output string // overrides the configured output path
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <config> <run-id>",
		Short: "Re-run a harvest from its archive",
		Long: `Replay a previously journaled run entirely from its archive.

No network requests are made: roster pages and per-license responses are
read back from the captured bodies in their original order, and journaled
fetch failures replay as failures. A replayed run therefore produces the
same merged output and the same exit status as the original.

Example:
  licmerge replay ./licmerge.yaml 0190b7e2-4f3a-7cc0-b825-61f9a1c0d5f2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the merged CSV here instead of the configured path")

	return cmd
}

func runReplay(opts *ReplayOptions, configPath, runID string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Archive.Journal == "" {
		return NewExitError(ExitCommandError, "config has no archive journal to replay from")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	arch, err := archive.Open(cfg.Archive.Journal, cfg.Archive.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer closeArchive(arch)

	ok, err := arch.HasRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found in journal", runID))
	}

	roster := source.NewArchiveRoster(arch, runID, cfg.BaseSource())

	fetchers := make([]source.Fetcher, 0, len(cfg.DependentSources()))
	for _, name := range cfg.DependentSources() {
		f, err := source.NewArchiveFetcher(ctx, arch, runID, name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to index archive", err)
		}
		fetchers = append(fetchers, f)
	}

	// Archived fetches resolve synchronously from disk, so replay runs
	// with the immediate scheduler and no dispatch pacing.
	return executeHarvest(ctx, cmd, harness{
		rootOpts:  opts.RootOptions,
		cfg:       cfg,
		outPath:   outputPath(opts.Output, cfg),
		roster:    roster,
		fetchers:  fetchers,
		scheduler: schedule.Immediate{},

		// A replay is itself not journaled; the archive stays read-only.
		archive: nil,
		runID:   runID,
	})
}
