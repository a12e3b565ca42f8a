package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "modred.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, DefaultDtTol, cfg.ERA.DtTol)
	assert.True(t, *cfg.ERA.Verbose)
	assert.Equal(t, DefaultIndexFrom, *cfg.BPOD.IndexFrom)
	assert.Equal(t, DefaultMaxVectorsPerNode, cfg.BPOD.MaxVectorsPerNode)
	assert.Equal(t, matio.TextStore{}, cfg.Store())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workers: 4
log:
  level: debug
  format: json
era:
  num_states: 10
  mo: 8
  mc: 6
  verbose: false
bpod:
  index_from: 0
  max_vectors_per_node: 16
storage:
  format: binary
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10, cfg.ERA.NumStates)
	assert.Equal(t, 8, cfg.ERA.Mo)
	assert.Equal(t, 6, cfg.ERA.Mc)
	assert.False(t, *cfg.ERA.Verbose)
	assert.Equal(t, 0, *cfg.BPOD.IndexFrom)
	assert.Equal(t, 16, cfg.BPOD.MaxVectorsPerNode)
	assert.Equal(t, matio.BinaryStore{}, cfg.Store())

	logger := cfg.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "negative workers", content: "workers: -2"},
		{name: "unknown level", content: "log:\n  level: loud"},
		{name: "unknown format", content: "log:\n  format: xml"},
		{name: "negative states", content: "era:\n  num_states: -1"},
		{name: "negative block count", content: "era:\n  mo: -3"},
		{name: "small chunk", content: "bpod:\n  max_vectors_per_node: 1"},
		{name: "unknown storage", content: "storage:\n  format: hdf5"},
		{name: "malformed", content: "workers: [1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.content))
			assert.True(t, errors.Is(err, modred.ErrConfiguration), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODRED_WORKERS", "3")
	t.Setenv("MODRED_LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, logrus.WarnLevel, cfg.Logger().GetLevel())

	t.Setenv("MODRED_WORKERS", "many")
	_, err = Load("")
	assert.True(t, errors.Is(err, modred.ErrConfiguration))
}
