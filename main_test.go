package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--root", t.TempDir()}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSimulateAndHistory(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("NBACK_STORAGE_DATA_DIR", dataDir)

	out := execute(t, "simulate", "--sessions", "2", "--accuracy", "1", "--seed", "3", "--user", "ivy", "--persist")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "D2B")
	assert.Contains(t, lines[0], "100%")
	assert.Contains(t, lines[0], "advanced")
	assert.Contains(t, lines[1], "D3B")
	assert.FileExists(t, filepath.Join(dataDir, "ivy-stats.txt"))

	out = execute(t, "history", "--user", "ivy")
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "D3B")
	assert.Contains(t, out, "2 sessions today")

	out = execute(t, "users")
	assert.Contains(t, out, "ivy")
}

func TestSimulateRejectsBadAccuracy(t *testing.T) {
	rootCmd.SetArgs([]string{"--root", t.TempDir(), "simulate", "--accuracy", "1.5"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, rootCmd.Execute())
}
