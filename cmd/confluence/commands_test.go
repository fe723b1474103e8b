package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckConfig_Defaults(t *testing.T) {
	out, err := execute(t, "check-config")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK: 2 symbols, 5 timeframes")
	assert.Contains(t, out, "reduce 70% warn 75% block 80% emergency 85%")
}

func TestCheckConfig_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))

	_, err := execute(t, "check-config", "--config", path)
	assert.Error(t, err)
}
