package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := Setup(Options{Writer: &buf})
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown", "step_id", "s1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "step_id=s1")

	buf.Reset()
	logger, closer = Setup(Options{Writer: &buf, Verbose: true})
	defer closer.Close()
	logger.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestSetup_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "stimline.log")

	logger, closer := Setup(Options{Writer: &buf, File: path})
	logger.Warn("task lookup failed", "task_id", "stroop")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "task lookup failed")
	assert.Contains(t, buf.String(), "task lookup failed")
}
