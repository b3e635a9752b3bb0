package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/licdata/licmerge/internal/archive"
	"github.com/licdata/licmerge/internal/config"
)

// NewRunsCommand creates the runs command, which lists journaled runs.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <config>",
		Short: "List journaled runs",
		Long: `List the runs recorded in the configured fetch journal, newest first.

Any listed run ID can be handed to "licmerge replay".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// runListing is one journaled run as reported on stdout.
type runListing struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"`
	BaseURL   string `json:"base_url,omitempty"`
	StartedAt string `json:"started_at"`
}

// runListings formats as one line per run in text mode.
type runListings []runListing

func (l runListings) String() string {
	if len(l) == 0 {
		return "no runs journaled"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = fmt.Sprintf("%s  %s  %-6s  %s", r.RunID, r.StartedAt, r.Mode, r.BaseURL)
	}
	return strings.Join(lines, "\n")
}

func listRuns(rootOpts *RootOptions, configPath string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Archive.Journal == "" {
		return NewExitError(ExitCommandError, "config has no archive journal")
	}

	arch, err := archive.Open(cfg.Archive.Journal, cfg.Archive.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer closeArchive(arch)

	runs, err := arch.ListRuns(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	listings := make(runListings, len(runs))
	for i, r := range runs {
		listings[i] = runListing{
			RunID:     r.ID,
			Mode:      r.Mode,
			BaseURL:   r.BaseURL,
			StartedAt: r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(listings); err != nil {
		return WrapExitError(ExitCommandError, "failed to write listing", err)
	}
	return nil
}
