package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZonesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestZones_ReadsRows(t *testing.T) {
	path := writeZonesFile(t, "license_number,zone\nL1,9\nL2,4\n")

	z := NewZones(path, "zones")
	emit := &captureEmitter{}
	z.Run(context.Background(), emit)

	events := emit.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, "L1", events[0].Key)
	assert.Equal(t, "9", events[0].Record["zone"])
	assert.Equal(t, "L2", events[1].Key)
	assert.Equal(t, KindEOF, events[2].Kind)
}

func TestZones_NoHeader(t *testing.T) {
	path := writeZonesFile(t, "L1,9\n")

	z := NewZones(path, "zones")
	emit := &captureEmitter{}
	z.Run(context.Background(), emit)

	records := emit.records()
	require.Len(t, records, 1)
	assert.Equal(t, "L1", records[0].Key)
}

func TestZones_MissingFile(t *testing.T) {
	z := NewZones(filepath.Join(t.TempDir(), "absent.csv"), "zones")
	emit := &captureEmitter{}
	z.Run(context.Background(), emit)

	events := emit.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, KindError, events[0].Kind)
	assert.True(t, IsFetchError(events[0].Err))
	assert.Equal(t, KindEOF, events[1].Kind)
}
