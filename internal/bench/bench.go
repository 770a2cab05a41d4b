// Package bench measures query performance against a target database over
// the Postgres wire protocol, either as single-query latency or as
// aggregate throughput under concurrency.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/oidbs/oidbs/internal/importer"
	"github.com/oidbs/oidbs/internal/model"
)

// Bench errors.
var (
	ErrInvalidMode  = errors.New("invalid measurement mode")
	ErrNoQueries    = errors.New("model has no queries for target")
	ErrMalformedSQL = errors.New("malformed query line, want \"desc: sql\"")
)

// Mode selects what the run measures.
type Mode string

const (
	// ModeLatency measures single-query latency, best of N rounds.
	ModeLatency Mode = "latency"

	// ModeConcurrency measures aggregate queries per second.
	ModeConcurrency Mode = "concurrency"
)

// ParseMode parses a mode from its flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLatency, ModeConcurrency:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Options configures a benchmark run.
type Options struct {
	// IBPG is the broker-side Postgres-wire endpoint part.
	IBPG string

	// PG is the Postgres/TimescaleDB endpoint part.
	PG string

	// Target selects which database to query.
	Target model.TargetKind

	// Mode selects latency or concurrency measurement.
	Mode Mode

	// Runs is the number of measured rounds.
	Runs int

	// Warmup is the number of unmeasured rounds before a concurrency
	// measurement.
	Warmup int

	// Concurrency is the number of querying goroutines in concurrency
	// mode.
	Concurrency int

	// ResultsCSV appends the run's numbers to a results CSV file.
	ResultsCSV bool
}

// QueryEntry is one benchmark query with its best observed latency.
type QueryEntry struct {
	Desc string
	SQL  string
	Best time.Duration
}

// ParseQueries splits a model query file into entries, one "desc: sql"
// line per query.
func ParseQueries(text string) ([]QueryEntry, error) {
	var entries []QueryEntry
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		desc, sql, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(sql) == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSQL, line)
		}
		entries = append(entries, QueryEntry{
			Desc: strings.TrimSpace(desc),
			SQL:  strings.TrimSpace(sql),
			Best: time.Duration(1<<63 - 1),
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoQueries
	}
	return entries, nil
}

// execFunc runs one query; closeFunc releases the connection behind it.
type (
	execFunc  func(ctx context.Context, sql string) error
	closeFunc func()
)

// connectFunc opens a connection to the target. Swapped out in tests.
type connectFunc func(ctx context.Context, uri string) (execFunc, closeFunc, error)

func pgxConnect(ctx context.Context, uri string) (execFunc, closeFunc, error) {
	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	exec := func(ctx context.Context, sql string) error {
		_, err := conn.Exec(ctx, sql)
		return err
	}
	return exec, func() { conn.Close(context.Background()) }, nil
}

// Runner drives one benchmark run for one model against one target.
type Runner struct {
	opts   Options
	model  model.Model
	logger zerolog.Logger

	connect    connectFunc
	out        io.Writer
	resultsDir string
	pause      time.Duration
}

// New validates the options and builds a runner.
func New(opts Options, m model.Model, logger zerolog.Logger) (*Runner, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Runs < 1 {
		opts.Runs = 3
	}
	if opts.Warmup < 0 {
		opts.Warmup = 0
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Runner{
		opts:       opts,
		model:      m,
		logger:     logger,
		connect:    pgxConnect,
		out:        os.Stdout,
		resultsDir: ".",
		pause:      time.Second,
	}, nil
}

// Run executes the configured measurement.
func (r *Runner) Run(ctx context.Context) error {
	uri, err := r.targetURI()
	if err != nil {
		return err
	}

	info, ok := r.model.Targets[r.opts.Target]
	if !ok || info.Query == "" {
		return fmt.Errorf("%w: %s for model %s", ErrNoQueries, r.opts.Target, r.model.Name)
	}
	entries, err := ParseQueries(info.Query)
	if err != nil {
		return err
	}

	switch r.opts.Mode {
	case ModeLatency:
		if err := r.runLatency(ctx, uri, entries); err != nil {
			return err
		}
		return r.reportLatency(entries)
	case ModeConcurrency:
		return r.runConcurrency(ctx, uri, entries[0])
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.opts.Mode)
	}
}

func (r *Runner) targetURI() (string, error) {
	var part string
	switch r.opts.Target {
	case model.TargetJoinBase:
		part = r.opts.IBPG
	case model.TargetTimescale:
		part = r.opts.PG
	default:
		return "", fmt.Errorf("%w: %q", model.ErrInvalidTarget, r.opts.Target)
	}

	endpoint, err := importer.ParseEndpoint(part)
	if err != nil {
		return "", err
	}
	return endpoint.PostgresURI("benchmark"), nil
}

// runLatency measures each query's best latency over the configured rounds
// on a single connection.
func (r *Runner) runLatency(ctx context.Context, uri string, entries []QueryEntry) error {
	exec, closeConn, err := r.connect(ctx, uri)
	if err != nil {
		return err
	}
	defer closeConn()

	for i := range entries {
		entry := &entries[i]
		for round := 0; round < r.opts.Runs; round++ {
			start := time.Now()
			if err := exec(ctx, entry.SQL); err != nil {
				r.logger.Error().Err(err).Str("query", entry.Desc).Msg("query failed")
				continue
			}
			elapsed := time.Since(start)
			r.logger.Info().Str("query", entry.Desc).Dur("elapsed", elapsed).Msg("round done")
			if elapsed < entry.Best {
				entry.Best = elapsed
			}
		}

		// Let the server settle between distinct queries.
		if r.pause > 0 && i < len(entries)-1 {
			time.Sleep(r.pause)
		}
	}
	return nil
}

// runConcurrency runs a warmup phase and a measured phase of the query
// under concurrent load. Per-worker query counts are tallied locally and
// merged after all workers join.
func (r *Runner) runConcurrency(ctx context.Context, uri string, entry QueryEntry) error {
	if r.opts.Warmup > 0 {
		if _, err := r.concurrentPhase(ctx, uri, entry, "warmup", r.opts.Warmup); err != nil {
			return err
		}
	}

	qps, err := r.concurrentPhase(ctx, uri, entry, "run", r.opts.Runs)
	if err != nil {
		return err
	}

	if r.opts.ResultsCSV {
		return r.appendCSV("concurrency_results.csv", "", fmt.Sprintf("%s,%g", displayTarget(r.opts.Target), qps))
	}
	return nil
}

// workerTally is one concurrency worker's private count.
type workerTally struct {
	queries int
	err     error
}

func (r *Runner) concurrentPhase(ctx context.Context, uri string, entry QueryEntry, phase string, rounds int) (float64, error) {
	tallies := make([]workerTally, r.opts.Concurrency)
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			exec, closeConn, err := r.connect(ctx, uri)
			if err != nil {
				tallies[worker].err = err
				return
			}
			defer closeConn()

			for round := 0; round < rounds; round++ {
				if err := exec(ctx, entry.SQL); err != nil {
					r.logger.Error().Err(err).Int("worker", worker).Msg("query failed")
					continue
				}
				tallies[worker].queries++
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := 0
	var errs []error
	for _, tally := range tallies {
		total += tally.queries
		if tally.err != nil {
			errs = append(errs, tally.err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return 0, err
	}

	qps := float64(total) / elapsed.Seconds()
	fmt.Fprintf(r.out, "[%s|target=%s] %d concurrent queries in %v, QPS: %g\n",
		phase, r.opts.Target, total, elapsed.Round(time.Millisecond), qps)
	return qps, nil
}

// reportLatency prints the latency table and optionally appends the CSV
// results row.
func (r *Runner) reportLatency(entries []QueryEntry) error {
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "No\tQuery Description\tBest Query Latency")

	var sum time.Duration
	for i, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%v\n", i+1, entry.Desc, entry.Best)
		sum += entry.Best
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "sum of best latencies: %v\n", sum)

	if !r.opts.ResultsCSV {
		return nil
	}

	values := make([]string, len(entries))
	header := make([]string, len(entries))
	for i, entry := range entries {
		values[i] = fmt.Sprintf("%d", entry.Best.Microseconds())
		header[i] = fmt.Sprintf("Q%d", i+1)
	}
	return r.appendCSV(
		"latency_results.csv",
		"db,"+strings.Join(header, ","),
		displayTarget(r.opts.Target)+","+strings.Join(values, ","),
	)
}

// appendCSV appends a row to a results file, writing the header first when
// the file does not exist yet.
func (r *Runner) appendCSV(name, header, row string) error {
	path := filepath.Join(r.resultsDir, name)
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if isNew && header != "" {
		if _, err := fmt.Fprintln(file, header); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(file, row)
	return err
}

// displayTarget renders a target kind for reports.
func displayTarget(target model.TargetKind) string {
	if target == model.TargetJoinBase {
		return "JoinBase"
	}
	s := string(target)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
