package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_UnknownRunID(t *testing.T) {
	srv := newRegistryServer(t, nil)
	cfgPath, _ := writeHarvestConfig(t, srv.URL)

	// Harvest once so the journal exists, then ask for a run it never saw.
	rootOpts := &RootOptions{Format: "text"}
	require.NoError(t, executeCommand(t, NewRunCommand(rootOpts), cfgPath))

	err := executeCommand(t, NewReplayCommand(rootOpts), cfgPath, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestReplay_RequiresJournal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "licmerge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mode: replay
dispatch_delay_ms: 0
`), 0o644))

	err := executeCommand(t, NewReplayCommand(&RootOptions{Format: "text"}), cfgPath, "any")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal")
}

func TestReplay_WrongArgCount(t *testing.T) {
	err := executeCommand(t, NewReplayCommand(&RootOptions{Format: "text"}), "only-config")
	require.Error(t, err)
}
