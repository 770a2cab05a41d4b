// Package gen produces synthetic benchmark datasets. Each worker writes its
// own file per model, so datasets partition naturally across import workers
// later.
package gen

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oidbs/oidbs/internal/model"
)

// Generation errors.
var (
	ErrInvalidFormat     = errors.New("invalid output format")
	ErrInvalidParameters = errors.New("invalid model parameters")
	ErrNoWorkers         = errors.New("at least one worker required")
	ErrUnsupportedModel  = errors.New("model has no generator")
)

// Format selects the dataset file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format from its flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// DefaultSeed keeps generated datasets reproducible across runs.
const DefaultSeed int64 = 666666

// oooWindowBatches is how many record batches accumulate before the
// out-of-order shuffle flushes them to disk.
const oooWindowBatches = 5

// Options configures a generation run.
type Options struct {
	// OutputDir receives one subdirectory per model.
	OutputDir string

	// Workers is the number of generation workers. Worker i writes
	// <model>/<i 06d>.<format>.
	Workers int

	// Start is the first timestamp of the dataset.
	Start time.Time

	// IntervalPerWorker is the span of seconds each worker covers.
	// Worker i starts at Start + i*IntervalPerWorker.
	IntervalPerWorker int

	// Step is the seconds between consecutive record batches.
	Step int

	// Format is the output file format.
	Format Format

	// OutOfOrder shuffles small windows of records so the dataset is not
	// strictly time-ordered, mimicking late-arriving IoT data.
	OutOfOrder bool

	// Parameters override the model manifest's default parameters.
	Parameters map[string]any

	// Seed for the per-worker random source. Zero means DefaultSeed.
	Seed int64
}

// Generator runs generation workers over the completed models.
type Generator struct {
	opts   Options
	models []model.Model
	logger zerolog.Logger
}

// New validates the options and builds a generator.
func New(opts Options, models []model.Model, logger zerolog.Logger) (*Generator, error) {
	if opts.Workers < 1 {
		return nil, ErrNoWorkers
	}
	if opts.Step < 1 {
		opts.Step = 1
	}
	if opts.IntervalPerWorker < 1 {
		opts.IntervalPerWorker = 1
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}

	return &Generator{opts: opts, models: models, logger: logger}, nil
}

// workerResult is one worker's private tally, merged after the join.
type workerResult struct {
	lines map[string]uint64
	err   error
}

// Run generates data for every completed model and returns per-model line
// counts. Worker counts are accumulated locally and merged once after all
// workers finish; a failed worker contributes its error without stopping
// the others.
func (g *Generator) Run() (map[string]uint64, error) {
	for _, m := range g.models {
		if !m.Completed {
			continue
		}
		if err := m.EnsureDataDirClean(g.opts.OutputDir); err != nil {
			return nil, err
		}
	}

	results := make([]workerResult, g.opts.Workers)
	var wg sync.WaitGroup

	for i := 0; i < g.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			results[worker] = g.generate(uint32(worker))
		}(i)
	}
	wg.Wait()

	totals := make(map[string]uint64)
	var errs []error
	for _, r := range results {
		for name, n := range r.lines {
			totals[name] += n
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}

	return totals, errors.Join(errs...)
}

// generate is one worker's pass over all completed models.
func (g *Generator) generate(worker uint32) workerResult {
	logger := g.logger.With().Uint32("worker", worker).Logger()
	logger.Debug().Msg("generation worker started")

	rng := rand.New(rand.NewSource(g.opts.Seed))
	lines := make(map[string]uint64)

	for _, m := range g.models {
		if !m.Completed {
			continue
		}

		n, err := g.generateModel(m, worker, rng)
		lines[m.Name] += n
		if err != nil {
			logger.Error().Err(err).Str("model", m.Name).Msg("generation failed")
			return workerResult{lines: lines, err: fmt.Errorf("worker %d, model %s: %w", worker, m.Name, err)}
		}
	}

	logger.Debug().Msg("generation worker finished")
	return workerResult{lines: lines}
}

func (g *Generator) generateModel(m model.Model, worker uint32, rng *rand.Rand) (uint64, error) {
	if m.Name != "pstations" {
		return 0, ErrUnsupportedModel
	}

	params := m.Parameters
	if len(g.opts.Parameters) > 0 {
		params = g.opts.Parameters
	}

	path := m.DataFilePath(g.opts.OutputDir, worker, "."+string(g.opts.Format))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, 1024*1024)
	start := g.opts.Start.Add(time.Duration(worker) * time.Duration(g.opts.IntervalPerWorker) * time.Second)

	var total uint64
	window := make([]string, 0, 1024)
	batchesInWindow := 0

	flush := func() error {
		if g.opts.OutOfOrder {
			rng.Shuffle(len(window), func(i, j int) {
				window[i], window[j] = window[j], window[i]
			})
		}
		for _, line := range window {
			if _, err := w.WriteString(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		window = window[:0]
		batchesInWindow = 0
		return nil
	}

	for offset := 0; offset < g.opts.IntervalPerWorker; offset += g.opts.Step {
		ts := start.Add(time.Duration(offset) * time.Second)
		batch, err := pstationsLines(g.opts.Format, ts, rng, params)
		if err != nil {
			return total, err
		}

		window = append(window, batch...)
		total += uint64(len(batch))
		batchesInWindow++

		if batchesInWindow == oooWindowBatches {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if len(window) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}

	return total, w.Flush()
}
