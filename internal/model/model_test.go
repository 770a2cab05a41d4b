package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelDir(t *testing.T, root, name string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, name, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "pstations", map[string]string{
		"model.yaml": "completed: true\nparameters:\n  num_stations: 10\n",
		"schemas/joinbase.sql": "create table benchmark.puppet\n(\n station_id UInt32\n);",
		"schemas/timescale.sql": "CREATE TABLE benchmark.puppet (station_id integer);",
		"queries/joinbase.sql": "count all: select count(*) from benchmark.puppet\n",
	})

	models, err := Load(root)
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "pstations", m.Name)
	assert.True(t, m.Completed)
	assert.Equal(t, 10, m.Parameters["num_stations"])

	joinbase, ok := m.Targets[TargetJoinBase]
	require.True(t, ok)
	assert.Equal(t, "benchmark", joinbase.Database)
	assert.Equal(t, "puppet", joinbase.Table)
	assert.Contains(t, joinbase.Query, "count all")

	timescale, ok := m.Targets[TargetTimescale]
	require.True(t, ok)
	assert.Equal(t, "benchmark", timescale.Database)
	assert.Empty(t, timescale.Query)

	topic, err := m.Topic(TargetJoinBase)
	require.NoError(t, err)
	assert.Equal(t, "/benchmark/puppet", topic)
}

func TestLoadWithoutManifest(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "pstations", map[string]string{
		"schemas/joinbase.sql": "create table benchmark.puppet (x integer);",
	})
	writeModelDir(t, root, "nyct", map[string]string{
		"schemas/joinbase.sql": "create table benchmark.nyct_lite (x integer);",
	})

	models, err := Load(root)
	require.NoError(t, err)
	require.Len(t, models, 2)

	nyct, err := Find(models, "nyct")
	require.NoError(t, err)
	assert.False(t, nyct.Completed)

	pstations, err := Find(models, "pstations")
	require.NoError(t, err)
	assert.True(t, pstations.Completed)
}

func TestFindMissing(t *testing.T) {
	_, err := Find(nil, "nope")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestExtractDBTable(t *testing.T) {
	cases := []struct {
		schema   string
		database string
		table    string
	}{
		{"create table a123.b456\n", "a123", "b456"},
		{"CREATE TABLE benchmark.puppet (x integer);", "benchmark", "puppet"},
		{"drop table if exists b.p;\ncreate table b.p\n(\n x integer\n);", "b", "p"},
		{"create table unqualified (x integer);", "", ""},
		{"select 1;", "", ""},
	}

	for _, tc := range cases {
		database, table := extractDBTable(tc.schema)
		assert.Equal(t, tc.database, database, tc.schema)
		assert.Equal(t, tc.table, table, tc.schema)
	}
}

func TestParseTargetKind(t *testing.T) {
	kind, err := ParseTargetKind("timescale")
	require.NoError(t, err)
	assert.Equal(t, TargetTimescale, kind)

	_, err = ParseTargetKind("oracle")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestDataFilePath(t *testing.T) {
	m := Model{Name: "pstations"}
	path := m.DataFilePath("/data", 3, ".csv")
	assert.Equal(t, filepath.Join("/data", "pstations", "000003.csv"), path)
}

func TestTopicMissingTarget(t *testing.T) {
	m := Model{Name: "pstations", Targets: map[TargetKind]TargetInfo{}}
	_, err := m.Topic(TargetJoinBase)
	assert.ErrorIs(t, err, ErrTargetNotServed)
}
