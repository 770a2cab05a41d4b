package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oidbs.toml")
	content := `broker = "user:pass@broker.local:1883"
ib_pg = "user:pass@broker.local:5433"
models = "/srv/oidbs/models"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pass@broker.local:1883", cfg.Broker)
	assert.Equal(t, "user:pass@broker.local:5433", cfg.IBPG)
	assert.Empty(t, cfg.PG)
	assert.Equal(t, "/srv/oidbs/models", cfg.Models)
}

func TestApplyConfigFlagsWin(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	broker := fs.String("broker", "abc:abc@127.0.0.1:1883", "")
	pg := fs.String("pg", "postgres:postgres@127.0.0.1:5432", "")

	require.NoError(t, fs.Parse([]string{"--broker", "explicit:x@10.0.0.1:1883"}))

	cfg := fileConfig{
		Broker: "file:x@broker.local:1883",
		PG:     "file:x@pg.local:5432",
	}
	applyConfig(fs, cfg, map[string]*string{"broker": broker, "pg": pg})

	// Explicit flag kept, unset flag filled from the file.
	assert.Equal(t, "explicit:x@10.0.0.1:1883", *broker)
	assert.Equal(t, "file:x@pg.local:5432", *pg)
}

func TestResolveModelsRoot(t *testing.T) {
	assert.Equal(t, "/explicit", resolveModelsRoot("/explicit"))

	t.Setenv(modelsEnv, "/from-env")
	assert.Equal(t, "/from-env", resolveModelsRoot(""))

	t.Setenv(modelsEnv, "")
	assert.Equal(t, "models", resolveModelsRoot(""))
}

func TestParseModelParameters(t *testing.T) {
	params, err := parseModelParameters(`{"num_stations": 10}`)
	require.NoError(t, err)
	assert.Equal(t, float64(10), params["num_stations"])

	_, err = parseModelParameters("not json")
	assert.Error(t, err)
}

func TestRunUnknownSubcommand(t *testing.T) {
	err := run([]string{"frobnicate"})
	assert.Error(t, err)
}
