package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/config"
	"mihac/internal/services/engine"
)

func TestNew_MinimalConfig(t *testing.T) {
	a, err := New(context.Background(), &config.Config{StoreDriver: config.StoreNone})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Metrics)
	assert.Nil(t, a.Store)
	assert.Nil(t, a.Reports)
	assert.Nil(t, a.Notifier)
}

func TestNew_SQLiteAndAudit(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		StoreDriver:  config.StoreSQLite,
		SQLitePath:   filepath.Join(dir, "mihac.db"),
		AuditLogPath: filepath.Join(dir, "audit.jsonl"),
	}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Audit)

	result := a.Engine.Evaluate(engine.SampleProfiles()[0].Raw)
	require.NoError(t, a.Recorder.Record(context.Background(), "", result))

	got, err := a.Store.Get(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Decision, got.Decision)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(cfg.AuditLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), result.ID)
}

func TestNew_BadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: x\nweights: {solvency: 2}\n"), 0o644))

	_, err := New(context.Background(), &config.Config{RulesPath: path})
	assert.Error(t, err)
}
