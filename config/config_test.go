package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 64, s.ErrorBufferSize)
	assert.Equal(t, "flowmesh", s.MetricsNamespace)
	assert.Equal(t, 30.0, s.DefaultWorkflow.TimeoutSeconds)
	assert.True(t, s.DefaultWorkflow.LoggingEnabled)
	assert.Nil(t, s.Redis)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	doc := []byte(`
error_buffer_size: 128
redis:
  addr: localhost:6379
  key_prefix: "test:"
default_workflow:
  timeout_seconds: 5
  parallel: true
`)
	s, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, 128, s.ErrorBufferSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, "flowmesh", s.MetricsNamespace)
	require.NotNil(t, s.Redis)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.Equal(t, 5.0, s.DefaultWorkflow.TimeoutSeconds)
	assert.True(t, s.DefaultWorkflow.Parallel)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("error_buffer_size: [not a number"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics_namespace: custom\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", s.MetricsNamespace)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
