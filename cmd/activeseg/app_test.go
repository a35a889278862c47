package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/config"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/dataset"
	"github.com/rushteam/activeseg/selection"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(config.LogConfig{Level: "loud"}, io.Discard)
	assert.Error(t, err)
	_, err = newLogger(config.LogConfig{Level: "info", Format: "xml"}, io.Discard)
	assert.Error(t, err)
}

func testApp(t *testing.T, keys ...core.ImageKey) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	cfg.Data.Width, cfg.Data.Height = 2, 2
	a := &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, a.openStore(context.Background()))
	t.Cleanup(a.close)
	for _, k := range keys {
		require.NoError(t, a.samples.Put(context.Background(), k, core.NewImage(2, 2), core.NewLabelMap(2, 2)))
	}
	return a
}

func TestBuildPoolFromSeedSet(t *testing.T) {
	a := testApp(t, "a", "b", "c")
	seed := filepath.Join(t.TempDir(), "seed.txt")
	require.NoError(t, os.WriteFile(seed, []byte("b\n\n"), 0o644))
	a.cfg.Data.SeedSet = seed

	pool, err := a.buildPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"b"}, pool.Labeled())
	assert.Equal(t, []core.ImageKey{"a", "c"}, pool.Remaining())
	assert.Same(t, a.store, config.BoundStore())
}

func TestBuildPoolResume(t *testing.T) {
	a := testApp(t, "a", "b", "c")
	a.cfg.Loop.Resume = true

	// 没有快照时退回种子集
	pool, err := a.buildPool(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pool.Labeled())

	require.NoError(t, pool.ExpandTrainingSet([]core.ImageKey{"c"}))
	require.NoError(t, dataset.SaveState(context.Background(), a.store, a.cfg.Data.StateKey, pool))

	restored, err := a.buildPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"c"}, restored.Labeled())
}

func TestBuildPoolEmptyStore(t *testing.T) {
	a := testApp(t)
	_, err := a.buildPool(context.Background())
	assert.True(t, core.IsStoreLookupFailure(err))
}

func TestSelectorAndRegions(t *testing.T) {
	a := testApp(t, "a")
	a.cfg.Selection.Method = string(selection.MethodRandom)
	sel, err := a.selector(a.runner())
	require.NoError(t, err)
	assert.Equal(t, "random", sel.Name())
	assert.Nil(t, a.regions(a.runner()))

	a.cfg.Region.Enabled = true
	mx := a.regions(a.runner())
	require.NotNil(t, mx)
	assert.Equal(t, a.cfg.Region.Size, mx.RegionSize)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, "", map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, buf.String())

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(io.Discard, path, []string{"x"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(data))
}

func TestRunnerUsesSharedCache(t *testing.T) {
	a := testApp(t, "a")
	assert.Same(t, a.samples, a.runner().Samples)

	a.cfg.Data.CacheSize = 4
	r1, r2 := a.runner(), a.runner()
	require.NotNil(t, a.cache)
	assert.Same(t, a.cache, r1.Samples)
	assert.Same(t, r1.Samples, r2.Samples)
}

func TestLoopOptions(t *testing.T) {
	a := testApp(t, "a")
	runner := a.runner()

	opts := a.loopOptions(runner)
	assert.Equal(t, a.cfg.Selection.Count, opts.SelectionCount)
	assert.False(t, opts.AllowPartialFinalBatch)
	assert.Nil(t, opts.Samples)
	assert.Same(t, a.store, opts.StateStore)

	a.cfg.Loop.AllowPartialFinalBatch = true
	a.cfg.Loop.VerifyEntries = true
	opts = a.loopOptions(runner)
	assert.True(t, opts.AllowPartialFinalBatch)
	assert.Same(t, a.samples, opts.Samples)
	assert.Equal(t, a.cfg.Selection.BatchSize, opts.VerifyBatchSize)
}

func TestVerifyPool(t *testing.T) {
	a := testApp(t, "a", "b", "c")
	pool, err := dataset.NewPool([]core.ImageKey{"a", "b", "c"}, []core.ImageKey{"a", "c"})
	require.NoError(t, err)

	entries, pixels, err := verifyPool(context.Background(), pool, a.samples, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, entries)
	assert.Equal(t, 8, pixels)

	missing, err := dataset.NewPool([]core.ImageKey{"a", "x"}, []core.ImageKey{"x"})
	require.NoError(t, err)
	_, _, err = verifyPool(context.Background(), missing, a.samples, 1)
	assert.True(t, core.IsStoreLookupFailure(err))
}
