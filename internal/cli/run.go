package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/licdata/licmerge/internal/archive"
	"github.com/licdata/licmerge/internal/config"
	"github.com/licdata/licmerge/internal/engine"
	"github.com/licdata/licmerge/internal/monitor"
	"github.com/licdata/licmerge/internal/run"
	"github.com/licdata/licmerge/internal/schedule"
	"github.com/licdata/licmerge/internal/sink"
	"github.com/licdata/licmerge/internal/source"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Output string // overrides the configured output path

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator archive.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Harvest the live registry",
		Long: `Run one harvest against the live registry service.

The roster source streams every listed license; each discovered license
number triggers rate-limited per-license fetches. When every configured
archive location is set, raw responses are captured and journaled so the
run can later be replayed with "licmerge replay".

Example:
  licmerge run ./licmerge.yaml
  licmerge run ./licmerge.yaml --output ./licenses.csv --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the merged CSV here instead of the configured path")

	return cmd
}

func runHarvest(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Mode != config.ModeLive {
		return NewExitError(ExitCommandError, `config mode is not "live"; use "licmerge replay" for archived runs`)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	// Open the fetch journal when configured. Runs without an archive are
	// legal; they just cannot be replayed.
	var arch *archive.Archive
	var runID string
	if cfg.Archive.Journal != "" {
		arch, err = archive.Open(cfg.Archive.Journal, cfg.Archive.Dir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open archive", err)
		}
		defer closeArchive(arch)

		gen := opts.IDGenerator
		if gen == nil {
			gen = archive.UUIDv7Generator{}
		}
		runID, err = arch.BeginRun(ctx, gen, cfg.Mode, cfg.BaseURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to journal run", err)
		}
		slog.Info("run journaled", "run_id", runID)
	}

	client := source.NewClient(source.ClientOptions{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Delay:   cfg.DispatchDelay(),
		Archive: arch,
		RunID:   runID,
	})

	base := cfg.BaseSource()
	roster := source.NewRoster(client, base, "/api/"+base+"/roster")

	fetchers, err := liveFetchers(client, cfg.DependentSources())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure sources", err)
	}

	// The dispatcher paces fetch starts; the fetches themselves run
	// concurrently and report back through the event queue.
	dispatcher := schedule.NewDispatcher(clock.WallClock, cfg.DispatchDelay())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("dispatcher stopped", "error", err)
		}
	}()
	defer func() {
		dispatcher.Stop()
		<-dispatchDone
	}()

	return executeHarvest(ctx, cmd, harness{
		rootOpts:  opts.RootOptions,
		cfg:       cfg,
		outPath:   outputPath(opts.Output, cfg),
		roster:    roster,
		fetchers:  fetchers,
		scheduler: dispatcher,
		archive:   arch,
		runID:     runID,
	})
}

// harness is everything executeHarvest needs to drive one run, live or
// replayed, to completion.
type harness struct {
	rootOpts  *RootOptions
	cfg       *config.Config
	outPath   string // empty means the command's stdout
	roster    source.Adapter
	fetchers  []source.Fetcher
	scheduler schedule.Scheduler
	archive   *archive.Archive
	runID     string
}

// executeHarvest assembles the engine, monitor, sink and loop around the
// harness origins, runs the harvest and reports the outcome. Shared by the
// run and replay commands; only the origins and the scheduler differ.
func executeHarvest(ctx context.Context, cmd *cobra.Command, h harness) error {
	eng := engine.New(h.cfg.Sources.Primary, h.cfg.Sources.Secondary)
	mon := monitor.New(eng, h.cfg.BaseSource(), clock.WallClock)

	out, closeOut, err := openOutput(h.outPath, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output", err)
	}
	defer closeOut()

	csvSink, err := sink.NewCSV(out, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start output", err)
	}

	loop := run.New(run.Options{
		Engine:    eng,
		Monitor:   mon,
		Scheduler: h.scheduler,
		Sink:      csvSink,
		Base:      h.cfg.BaseSource(),
		Roster:    h.roster,
		Secondary: secondaryAdapters(h.cfg),
		Fetchers:  h.fetchers,
		Archive:   h.archive,
		RunID:     h.runID,
	})
	eng.RegisterObserver(loop)

	stats, err := loop.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run did not complete", err)
	}
	if err := csvSink.Flush(); err != nil {
		return WrapExitError(ExitFailure, "failed to flush output", err)
	}

	formatter := &OutputFormatter{Format: h.rootOpts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(newRunSummary(h.runID, csvSink.Rows(), stats)); err != nil {
		return WrapExitError(ExitCommandError, "failed to write summary", err)
	}

	if stats.HadErrors {
		return NewExitError(ExitFailure, "run completed with source errors")
	}
	return nil
}

// runSummary is the per-run result reported on stdout.
type runSummary struct {
	RunID     string `json:"run_id,omitempty"`
	Rows      int    `json:"rows"`
	Merged    int    `json:"merged"`
	Failed    int    `json:"failed"`
	Leftovers int    `json:"leftovers"`
	Elapsed   string `json:"elapsed"`
}

func newRunSummary(runID string, rows int, stats monitor.Stats) runSummary {
	return runSummary{
		RunID:     runID,
		Rows:      rows,
		Merged:    stats.Merged,
		Failed:    stats.Failed,
		Leftovers: stats.Leftovers,
		Elapsed:   stats.Elapsed.Round(time.Millisecond).String(),
	}
}

func (s runSummary) String() string {
	return fmt.Sprintf("merged %d licenses (%d failed, %d leftovers) in %s: %d rows",
		s.Merged, s.Failed, s.Leftovers, s.Elapsed, s.Rows)
}

// liveFetchers maps the configured dependent source names to their live
// endpoint shapes.
func liveFetchers(client *source.Client, names []string) ([]source.Fetcher, error) {
	fetchers := make([]source.Fetcher, 0, len(names))
	for _, name := range names {
		switch name {
		case "quicksearch":
			fetchers = append(fetchers, source.NewQuicksearch(client, name))
		case "profile":
			fetchers = append(fetchers, source.NewProfile(client, name))
		default:
			return nil, fmt.Errorf("no live endpoint for source %q", name)
		}
	}
	return fetchers, nil
}

// secondaryAdapters builds the configured secondary source streams.
func secondaryAdapters(cfg *config.Config) []source.Adapter {
	var adapters []source.Adapter
	for _, name := range cfg.Sources.Secondary {
		if name == "zones" && cfg.ZonesFile != "" {
			adapters = append(adapters, source.NewZones(cfg.ZonesFile, name))
		}
	}
	return adapters
}

// outputPath resolves the merged CSV destination: the --output flag wins
// over the config; empty means stdout.
func outputPath(override string, cfg *config.Config) string {
	if override != "" {
		return override
	}
	return cfg.Output
}

// openOutput opens the CSV destination. An empty or "-" path selects the
// command's stdout with a no-op closer.
func openOutput(path string, cmd *cobra.Command) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("error closing output", "path", path, "error", err)
		}
	}, nil
}

// signalContext derives a context cancelled by SIGINT/SIGTERM from the
// command's context, so an interrupted harvest stops cleanly instead of
// dying mid-write.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func closeArchive(arch *archive.Archive) {
	if err := arch.Close(); err != nil {
		slog.Error("error closing archive", "error", err)
	}
}
