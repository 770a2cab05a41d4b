// Package importer pushes generated datasets into target databases. The
// broker path publishes record batches over MQTT, one producer worker and
// one client per dataset file; the timescale path shells out to
// timescaledb-parallel-copy.
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/oidbs/oidbs/internal/logging"
	"github.com/oidbs/oidbs/internal/model"
	"github.com/oidbs/oidbs/mqtt"
)

// Import errors.
var (
	ErrNoDataFiles = errors.New("no dataset files to import")
)

// Options configures an import run.
type Options struct {
	// InputDir holds the generated datasets, one subdirectory per model.
	InputDir string

	// Broker is the MQTT endpoint part, "user:pass@host:port".
	Broker string

	// IBPG is the broker-side Postgres-wire endpoint part used for schema
	// bootstrap on the joinbase target.
	IBPG string

	// PG is the Postgres/TimescaleDB endpoint part.
	PG string

	// Target selects where to import.
	Target model.TargetKind

	// DataOnly skips schema bootstrap.
	DataOnly bool

	// BatchSize is the number of records joined into one PUBLISH payload.
	BatchSize int

	// TimescaleWorkers is passed to timescaledb-parallel-copy.
	TimescaleWorkers int

	// RatePerSecond caps each worker's publish rate. Zero means no cap.
	RatePerSecond float64
}

// Result is one producer worker's tally, reported after all workers join.
// Err is set when the worker could not run at all (connect or handshake
// failure, unreadable file); Failed counts batches skipped on publish
// errors while the worker kept going.
type Result struct {
	File    string
	Batches int
	Records int
	Failed  int
	Err     error
}

// Importer runs one import for one model against one target.
type Importer struct {
	opts   Options
	model  model.Model
	logger zerolog.Logger
}

// New validates the options and builds an importer.
func New(opts Options, m model.Model, logger zerolog.Logger) (*Importer, error) {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.TimescaleWorkers < 1 {
		opts.TimescaleWorkers = 1
	}
	return &Importer{opts: opts, model: m, logger: logger}, nil
}

// Run imports the model's dataset into the selected target and returns the
// per-file worker results for the broker path.
func (im *Importer) Run(ctx context.Context) ([]Result, error) {
	switch im.opts.Target {
	case model.TargetJoinBase:
		if !im.opts.DataOnly {
			endpoint, err := ParseEndpoint(im.opts.IBPG)
			if err != nil {
				return nil, err
			}
			if err := im.setupSchema(ctx, endpoint, model.TargetJoinBase); err != nil {
				return nil, err
			}
		}
		return im.importBroker(ctx)

	case model.TargetTimescale:
		if !im.opts.DataOnly {
			endpoint, err := ParseEndpoint(im.opts.PG)
			if err != nil {
				return nil, err
			}
			if err := im.setupSchema(ctx, endpoint, model.TargetTimescale); err != nil {
				return nil, err
			}
		}
		return nil, im.importTimescale(ctx)

	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidTarget, im.opts.Target)
	}
}

// dataFiles lists the model's dataset files under the input directory.
func (im *Importer) dataFiles() ([]string, error) {
	dir := filepath.Join(im.opts.InputDir, im.model.Name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataFiles, dir)
	}
	return files, nil
}

// importBroker starts one producer worker per dataset file and collects
// their results after all of them join. A worker that cannot connect
// reports its partition as unpublished without affecting its siblings.
func (im *Importer) importBroker(ctx context.Context) ([]Result, error) {
	endpoint, err := ParseEndpoint(im.opts.Broker)
	if err != nil {
		return nil, err
	}

	// The joinbase schema names the ingestion table for every
	// Postgres-wire compatible target.
	topic, err := im.model.Topic(model.TargetJoinBase)
	if err != nil {
		return nil, err
	}

	files, err := im.dataFiles()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(files))
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			results[i] = im.produce(ctx, endpoint, topic, file, i)
		}(i, file)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.File, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// produce publishes one file's records in batches over a dedicated client.
// Publish failures are logged and skipped; the worker keeps going.
func (im *Importer) produce(ctx context.Context, endpoint Endpoint, topic, file string, worker int) Result {
	result := Result{File: file}
	logger := im.logger.With().Str("file", file).Logger()

	client, err := mqtt.Dial(ctx,
		mqtt.WithClientID(fmt.Sprintf("oidbs-%06d", worker)),
		mqtt.WithServer(endpoint.Host, endpoint.Port),
		mqtt.WithCredentials(endpoint.Username, endpoint.Password),
		mqtt.WithLogger(logging.NewMQTTAdapter(logger)),
	)
	if err != nil {
		result.Err = err
		return result
	}
	defer client.Close()

	f, err := os.Open(file)
	if err != nil {
		result.Err = err
		return result
	}
	defer f.Close()

	var limiter *rate.Limiter
	if im.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(im.opts.RatePerSecond), 1)
	}

	publish := func(batch []string) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.Err = err
				return
			}
		}

		payload := strings.Join(batch, "\n")
		if err := client.Publish(topic, mqtt.QoSAtMostOnce, []byte(payload)); err != nil {
			logger.Error().Err(err).Msg("publish failed")
			result.Failed++
			return
		}
		result.Batches++
		result.Records += len(batch)
	}

	batch := make([]string, 0, im.opts.BatchSize)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		batch = append(batch, scanner.Text())
		if len(batch) == im.opts.BatchSize {
			publish(batch)
			batch = batch[:0]
		}
		if result.Err != nil {
			return result
		}
	}
	if len(batch) > 0 {
		publish(batch)
	}

	if err := scanner.Err(); err != nil && result.Err == nil {
		result.Err = err
	}
	return result
}

// Elapsed wraps a run with wall-clock timing for the CLI report.
func Elapsed(run func() error) (time.Duration, error) {
	start := time.Now()
	err := run()
	return time.Since(start), err
}
