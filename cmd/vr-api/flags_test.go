package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFlags(t *testing.T) {
	valid := &CLIConfig{ShutdownTimeout: 10 * time.Second}
	assert.NoError(t, validateFlags(valid))

	missing := &CLIConfig{ConfigPath: "/no/such/file.json", ShutdownTimeout: time.Second}
	assert.Error(t, validateFlags(missing))

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	present := &CLIConfig{ConfigPath: path, ShutdownTimeout: time.Second}
	assert.NoError(t, validateFlags(present))

	badLevel := &CLIConfig{LogLevel: "verbose", ShutdownTimeout: time.Second}
	assert.Error(t, validateFlags(badLevel))

	badFormat := &CLIConfig{LogFormat: "xml", ShutdownTimeout: time.Second}
	assert.Error(t, validateFlags(badFormat))

	badTimeout := &CLIConfig{ShutdownTimeout: 0}
	assert.Error(t, validateFlags(badTimeout))

	// Version and help skip all other checks.
	versionOnly := &CLIConfig{ShowVersion: true, ConfigPath: "/no/such/file.json"}
	assert.NoError(t, validateFlags(versionOnly))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("VRAPI_TEST_STR", "value")
	assert.Equal(t, "value", getEnv("VRAPI_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("VRAPI_TEST_UNSET", "fallback"))

	t.Setenv("VRAPI_TEST_DUR", "30s")
	assert.Equal(t, 30*time.Second, getEnvDuration("VRAPI_TEST_DUR", time.Second))
	t.Setenv("VRAPI_TEST_DUR", "bogus")
	assert.Equal(t, time.Second, getEnvDuration("VRAPI_TEST_DUR", time.Second))
}

func TestFixedResolver(t *testing.T) {
	candidate, err := fixedResolver{device: "/dev/ttyACM0"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", candidate.Device)
}
