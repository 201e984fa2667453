package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One worker keeps allocations in order, so join order is stable.
const testJob = `
name: test
parallelism: 1
groups:
  - name: ScatterReduce
    num_tasks: 3
    operators:
      - name: Scatter
        kind: scatter
        codec: int
      - name: Reduce
        kind: reduce
        codec: int
        reduce_function: sum
  - name: Control
    num_tasks: 2
    operators:
      - name: Stop
        kind: broadcast
        codec: bool
        topology: pipeline
publish:
  target: dir
`

func writeJob(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testJob+extra), 0o644))
	return path
}

func TestPlan(t *testing.T) {
	cfgFile = writeJob(t, "  dir: /unused\n")
	logLevel = "error"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, true))

	s := out.String()
	assert.Contains(t, s, "ScatterReduce/MasterTask")
	assert.Contains(t, s, "ScatterReduce/SlaveTask-2")
	assert.Contains(t, s, "Control/SlaveTask-1")
	assert.NotContains(t, s, "Control/SlaveTask-2")
	assert.Contains(t, s, "children=SlaveTask-1,SlaveTask-2")
	assert.Contains(t, s, "reduce=sum")
}

func TestPublishToDir(t *testing.T) {
	dir := t.TempDir()
	cfgFile = writeJob(t, "  dir: "+dir+"\n")
	logLevel = "error"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, false))
	assert.Empty(t, out.String())

	for _, f := range []string{
		"ScatterReduce/MasterTask.conf",
		"ScatterReduce/SlaveTask-1.conf",
		"ScatterReduce/SlaveTask-2.conf",
		"Control/MasterTask.conf",
		"Control/SlaveTask-1.conf",
	} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestLogLevelRejected(t *testing.T) {
	cfgFile = writeJob(t, "  dir: /unused\n")
	logLevel = "loud"
	defer func() { logLevel = "info" }()
	require.Error(t, run(context.Background(), &bytes.Buffer{}, true))
}
