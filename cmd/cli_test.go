// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spectrallog.yaml")
	content := fmt.Sprintf(`
log_level: warn
acquisition:
  source: sim
analysis:
  strategy: single
storage:
  backend: file
  path: %s
cycle:
  interval: 0s
`, filepath.Join(dir, "flash.bin"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRunThenDump(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "no record stored")

	_, err = execute(t, "--config", cfg, "run", "--cycles", "2")
	require.NoError(t, err)

	out, err = execute(t, "--config", cfg, "dump")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6, "header plus bins 3 to 7")
	assert.Contains(t, lines[2], "31250.0")
	assert.Contains(t, lines[2], "8000.000")

	_, err = execute(t, "--config", cfg, "run", "--cycles", "1", "--resume")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfg, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "8000.000")
}

func TestSamplePrintsOneWindowPerLine(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "sample")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 32, "31 full windows and the 4-sample tail")
	assert.Equal(t, []string{"2048", "3048", "2048", "1048"}, strings.Fields(lines[0])[:4])
	assert.Len(t, strings.Fields(lines[0]), 16)
	assert.Len(t, strings.Fields(lines[31]), 4)
}

func TestSampleRejectsChannelOutOfRange(t *testing.T) {
	for _, ch := range []string{"256", "-1"} {
		t.Run(ch, func(t *testing.T) {
			_, err := execute(t, "--config", writeConfig(t), "sample", "--channel="+ch)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "acquisition.channel")
		})
	}
}

func TestRunRejectsInvalidOverride(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "run", "--strategy", "mean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.strategy")
}

func TestBadConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "dump")
	assert.Error(t, err)
}

func TestClosersRunInReverse(t *testing.T) {
	var order []int
	var c closers
	for i := 0; i < 3; i++ {
		c.add(func() error { order = append(order, i); return nil })
	}
	c.add(func() error { return fmt.Errorf("boom") })

	assert.EqualError(t, c.Close(), "boom")
	assert.Equal(t, []int{2, 1, 0}, order)
}
