// Package model loads the benchmark data-model registry. A models root
// holds one directory per model, each with a manifest, per-target schema
// files and optional per-target query files:
//
//	models/
//	  pstations/
//	    model.yaml
//	    schemas/joinbase.sql
//	    schemas/timescale.sql
//	    queries/joinbase.sql
//	    queries/timescale.sql
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors returned by the registry.
var (
	ErrModelNotFound   = errors.New("model not found")
	ErrInvalidTarget   = errors.New("invalid target kind")
	ErrNoSchemasDir    = errors.New("model has no schemas directory")
	ErrTargetNotServed = errors.New("model does not serve target")
)

// TargetKind names a database the suite can import into or benchmark.
type TargetKind string

const (
	TargetJoinBase  TargetKind = "joinbase"
	TargetTimescale TargetKind = "timescale"
	TargetAll       TargetKind = "all"
)

// ParseTargetKind parses a target kind from its flag value.
func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(s) {
	case TargetJoinBase, TargetTimescale, TargetAll:
		return TargetKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
}

// TargetInfo holds everything a model knows about one target database.
type TargetInfo struct {
	// Schema is the DDL used to bootstrap the target. Empty when the
	// model only carries queries for the target.
	Schema string

	// Database and Table locate the ingestion table, parsed from the
	// schema's CREATE TABLE when the manifest does not set them.
	Database string
	Table    string

	// Query is the benchmark query file contents, one "desc: sql" line
	// per query. Empty when the model carries no queries for the target.
	Query string
}

// Model is one benchmark data model.
type Model struct {
	// Name is the model directory name, e.g. "pstations".
	Name string

	// Completed marks models whose generator is implemented; others are
	// registered but skipped by gen.
	Completed bool

	// Parameters are the manifest's default generation parameters,
	// overridable from the command line.
	Parameters map[string]any

	// Targets maps target kind to its schema/query info.
	Targets map[TargetKind]TargetInfo
}

// manifest is the optional model.yaml file.
type manifest struct {
	Completed  bool           `yaml:"completed"`
	Database   string         `yaml:"database"`
	Table      string         `yaml:"table"`
	Parameters map[string]any `yaml:"parameters"`
}

// Topic returns the ingestion topic for a target, "/<database>/<table>".
func (m *Model) Topic(target TargetKind) (string, error) {
	info, ok := m.Targets[target]
	if !ok || info.Database == "" || info.Table == "" {
		return "", fmt.Errorf("%w: %s for model %s", ErrTargetNotServed, target, m.Name)
	}
	return "/" + info.Database + "/" + info.Table, nil
}

// DataFilePath returns the dataset file path one generation worker writes,
// "<output>/<model>/<seq 06d><ext>".
func (m *Model) DataFilePath(output string, seq uint32, ext string) string {
	return filepath.Join(output, m.Name, fmt.Sprintf("%06d%s", seq, ext))
}

// EnsureDataDirClean recreates the model's dataset directory under output.
func (m *Model) EnsureDataDirClean(output string) error {
	dir := filepath.Join(output, m.Name)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads every model directory under root.
func Load(root string) ([]Model, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read models root: %w", err)
	}

	var models []Model
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := loadModel(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", entry.Name(), err)
		}
		models = append(models, m)
	}
	return models, nil
}

// Find returns the named model from a loaded set.
func Find(models []Model, name string) (Model, error) {
	for _, m := range models {
		if m.Name == name {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrModelNotFound, name)
}

func loadModel(dir string) (Model, error) {
	m := Model{
		Name:    filepath.Base(dir),
		Targets: make(map[TargetKind]TargetInfo),
	}

	var mf manifest
	data, err := os.ReadFile(filepath.Join(dir, "model.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return Model{}, fmt.Errorf("parse manifest: %w", err)
		}
		m.Completed = mf.Completed
		m.Parameters = mf.Parameters
	case os.IsNotExist(err):
		// Older model layouts carry no manifest; only the reference
		// model has a generator.
		m.Completed = m.Name == "pstations"
	default:
		return Model{}, err
	}

	schemas, err := readTargetFiles(filepath.Join(dir, "schemas"))
	if err != nil {
		if os.IsNotExist(err) {
			return Model{}, ErrNoSchemasDir
		}
		return Model{}, err
	}

	queries, err := readTargetFiles(filepath.Join(dir, "queries"))
	if err != nil && !os.IsNotExist(err) {
		return Model{}, err
	}

	for target := range schemas {
		info := TargetInfo{Schema: schemas[target], Query: queries[target]}
		info.Database, info.Table = mf.Database, mf.Table
		if info.Database == "" || info.Table == "" {
			info.Database, info.Table = extractDBTable(info.Schema)
		}
		m.Targets[target] = info
	}
	for target := range queries {
		if _, ok := m.Targets[target]; !ok {
			m.Targets[target] = TargetInfo{Query: queries[target]}
		}
	}

	return m, nil
}

// readTargetFiles reads every file in dir keyed by target kind, the file
// name with its .sql extension stripped.
func readTargetFiles(dir string) (map[TargetKind]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[TargetKind]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		target := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		files[TargetKind(target)] = string(data)
	}
	return files, nil
}

// extractDBTable pulls "db", "tab" out of the first "create table db.tab"
// statement. Returns empty strings when the schema does not qualify the
// table name.
func extractDBTable(schema string) (string, string) {
	lower := strings.ToLower(schema)
	idx := strings.Index(lower, "create table")
	if idx < 0 {
		return "", ""
	}

	rest := schema[idx+len("create table"):]
	if end := strings.IndexAny(rest, "(\n"); end >= 0 {
		rest = rest[:end]
	}

	parts := strings.Split(strings.TrimSpace(rest), ".")
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
