package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_LogsThroughConfiguredLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-live-docs.yml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: json\n"), 0o644))

	var out bytes.Buffer
	cfg, logger, err := setup(path, &out)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Contains(t, out.String(), `"msg":"registering handlers"`)
}

func TestSetup_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-live-docs.yml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	_, _, err := setup(path, &bytes.Buffer{})
	require.Error(t, err)
}
