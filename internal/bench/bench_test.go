package bench

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidbs/oidbs/internal/model"
)

func benchModel() model.Model {
	return model.Model{
		Name: "pstations",
		Targets: map[model.TargetKind]model.TargetInfo{
			model.TargetJoinBase: {
				Query: "count all: select count(*) from benchmark.puppet\n" +
					"max value: select max(sensor_value) from benchmark.puppet\n",
			},
		},
	}
}

// fakeDB records executed queries and answers instantly.
type fakeDB struct {
	mu      sync.Mutex
	queries []string
	failSQL string
}

func (db *fakeDB) connect(_ context.Context, _ string) (execFunc, closeFunc, error) {
	exec := func(_ context.Context, sql string) error {
		db.mu.Lock()
		db.queries = append(db.queries, sql)
		db.mu.Unlock()
		if db.failSQL != "" && sql == db.failSQL {
			return errors.New("boom")
		}
		return nil
	}
	return exec, func() {}, nil
}

func (db *fakeDB) count(sql string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, q := range db.queries {
		if q == sql {
			n++
		}
	}
	return n
}

func newTestRunner(t *testing.T, opts Options, db *fakeDB) (*Runner, *bytes.Buffer) {
	t.Helper()
	runner, err := New(opts, benchModel(), zerolog.Nop())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	runner.connect = db.connect
	runner.out = out
	runner.resultsDir = t.TempDir()
	runner.pause = 0
	return runner, out
}

func TestParseQueries(t *testing.T) {
	entries, err := ParseQueries("q1: select 1\n\nq2: select count(*) from t where x > 1\n")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "q1", entries[0].Desc)
	assert.Equal(t, "select 1", entries[0].SQL)
	assert.Equal(t, "q2", entries[1].Desc)
	assert.Equal(t, "select count(*) from t where x > 1", entries[1].SQL)
}

func TestParseQueriesMalformed(t *testing.T) {
	_, err := ParseQueries("no separator here\n")
	assert.ErrorIs(t, err, ErrMalformedSQL)

	_, err = ParseQueries("\n\n")
	assert.ErrorIs(t, err, ErrNoQueries)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("concurrency")
	require.NoError(t, err)
	assert.Equal(t, ModeConcurrency, mode)

	_, err = ParseMode("throughput")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestLatencyMode(t *testing.T) {
	db := &fakeDB{}
	runner, out := newTestRunner(t, Options{
		IBPG:   "abc:abc@127.0.0.1:5433",
		Target: model.TargetJoinBase,
		Mode:   ModeLatency,
		Runs:   3,
	}, db)

	require.NoError(t, runner.Run(context.Background()))

	// Each query ran exactly Runs times.
	assert.Equal(t, 3, db.count("select count(*) from benchmark.puppet"))
	assert.Equal(t, 3, db.count("select max(sensor_value) from benchmark.puppet"))

	report := out.String()
	assert.Contains(t, report, "count all")
	assert.Contains(t, report, "max value")
	assert.Contains(t, report, "sum of best latencies")
}

func TestLatencyModeCSV(t *testing.T) {
	db := &fakeDB{}
	runner, _ := newTestRunner(t, Options{
		IBPG:       "abc:abc@127.0.0.1:5433",
		Target:     model.TargetJoinBase,
		Mode:       ModeLatency,
		Runs:       1,
		ResultsCSV: true,
	}, db)

	require.NoError(t, runner.Run(context.Background()))
	// Second run appends without a second header.
	require.NoError(t, runner.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(runner.resultsDir, "latency_results.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "db,Q1,Q2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "JoinBase,"))
	assert.True(t, strings.HasPrefix(lines[2], "JoinBase,"))
}

func TestConcurrencyMode(t *testing.T) {
	db := &fakeDB{}
	runner, out := newTestRunner(t, Options{
		IBPG:        "abc:abc@127.0.0.1:5433",
		Target:      model.TargetJoinBase,
		Mode:        ModeConcurrency,
		Runs:        5,
		Warmup:      2,
		Concurrency: 4,
	}, db)

	require.NoError(t, runner.Run(context.Background()))

	// Warmup (4*2) plus measured (4*5) rounds of the first query.
	assert.Equal(t, 28, db.count("select count(*) from benchmark.puppet"))

	report := out.String()
	assert.Contains(t, report, "[warmup|target=joinbase]")
	assert.Contains(t, report, "[run|target=joinbase]")
	assert.Contains(t, report, "QPS")
}

func TestConcurrencyModeCSV(t *testing.T) {
	db := &fakeDB{}
	runner, _ := newTestRunner(t, Options{
		IBPG:        "abc:abc@127.0.0.1:5433",
		Target:      model.TargetJoinBase,
		Mode:        ModeConcurrency,
		Runs:        2,
		Warmup:      0,
		Concurrency: 2,
		ResultsCSV:  true,
	}, db)

	require.NoError(t, runner.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(runner.resultsDir, "concurrency_results.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "JoinBase,"))
}

func TestLatencyQueryFailureDoesNotAbort(t *testing.T) {
	db := &fakeDB{failSQL: "select count(*) from benchmark.puppet"}
	runner, out := newTestRunner(t, Options{
		IBPG:   "abc:abc@127.0.0.1:5433",
		Target: model.TargetJoinBase,
		Mode:   ModeLatency,
		Runs:   2,
	}, db)

	require.NoError(t, runner.Run(context.Background()))
	// The second query still ran its rounds.
	assert.Equal(t, 2, db.count("select max(sensor_value) from benchmark.puppet"))
	assert.Contains(t, out.String(), "max value")
}

func TestRunMissingQueries(t *testing.T) {
	m := model.Model{Name: "pstations", Targets: map[model.TargetKind]model.TargetInfo{}}
	runner, err := New(Options{
		IBPG:   "abc:abc@127.0.0.1:5433",
		Target: model.TargetJoinBase,
		Mode:   ModeLatency,
	}, m, zerolog.Nop())
	require.NoError(t, err)

	err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoQueries)
}

func TestBestLatencyTracksMinimum(t *testing.T) {
	entries, err := ParseQueries("q: select 1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(1<<63-1), entries[0].Best)
}
