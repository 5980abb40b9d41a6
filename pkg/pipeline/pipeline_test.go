package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-sketching-service/pkg/wlsketch"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T, dir string) *wlsketch.Config {
	t.Helper()
	cfg := wlsketch.NewConfig()
	cfg.Set("sketch.size", 4)
	cfg.Set("sketch.k_hops", 1)
	cfg.Set("sketch.lambda", 0.0)
	cfg.Set("sketch.window", 1)
	cfg.Set("sketch.decay", 10)
	cfg.Set("performance.num_workers", 1)
	cfg.Set("logging.level", "disabled")
	cfg.Set("input.base", writeInput(t, dir, "base.txt", "1 2 1:2:7:0\n"))
	cfg.Set("input.stream", writeInput(t, dir, "stream.txt", "3 2 3:2:9:1\n"))
	cfg.Set("output.sketch", filepath.Join(dir, "sketch.txt"))
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimRight(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	require.NoError(t, Run(cfg))

	// One sketch line per quiescent pass: one after the base graph, one
	// after the streamed batch.
	lines := readLines(t, cfg.SketchFile())
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 4)
	}
}

func TestRunIsByteDeterministic(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	require.NoError(t, Run(cfg))
	first, err := os.ReadFile(cfg.SketchFile())
	require.NoError(t, err)

	cfg.Set("output.sketch", filepath.Join(dir, "sketch2.txt"))
	require.NoError(t, Run(cfg))
	second, err := os.ReadFile(cfg.SketchFile())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunWithoutStream(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Set("input.stream", "")
	require.NoError(t, Run(cfg))

	lines := readLines(t, cfg.SketchFile())
	require.Len(t, lines, 1)
}

func TestRunPregenMode(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Set("sketch.memory", true)
	cfg.Set("sketch.pregen", 64)
	require.NoError(t, Run(cfg))

	lines := readLines(t, cfg.SketchFile())
	require.Len(t, lines, 2)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Set("sketch.size", 0)
	assert.Error(t, Run(cfg))
}

func TestRunMissingBaseFile(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Set("input.base", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, Run(cfg))
}
