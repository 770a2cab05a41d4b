// Command oidbs is the Open IoT Database Benchmark Suite tool: it generates
// synthetic IoT datasets, imports them into target databases over MQTT or
// bulk copy, and benchmarks query performance.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/oidbs/oidbs/internal/bench"
	"github.com/oidbs/oidbs/internal/gen"
	"github.com/oidbs/oidbs/internal/importer"
	"github.com/oidbs/oidbs/internal/logging"
	"github.com/oidbs/oidbs/internal/model"
)

const timestampFlagLayout = "2006-01-02 15:04:05"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("a subcommand is required")
	}

	switch args[0] {
	case "gen":
		return runGen(args[1:])
	case "import":
		return runImport(args[1:])
	case "bench":
		return runBench(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `oidbs - Open IoT Database Benchmark Suite tools

Subcommands:
  gen     generate benchmark datasets from data models
  import  import datasets into JoinBase or TimescaleDB/PostgreSQL
  bench   benchmark query latency or throughput`)
}

func runGen(args []string) error {
	fs := pflag.NewFlagSet("gen", pflag.ContinueOnError)
	workers := fs.IntP("workers", "w", 1, "number of generation workers, each writes its own files")
	start := fs.StringP("timestamp-start", "t", "2021-01-01 00:00:01", "start timestamp of the dataset")
	interval := fs.IntP("interval-per-worker-sec", "i", 1, "seconds of data each worker generates")
	step := fs.IntP("step-sec", "s", 1, "seconds between record batches")
	format := fs.StringP("format", "f", "csv", "output format: csv or json")
	outOfOrder := fs.BoolP("out-of-order", "o", false, "shuffle record windows out of time order")
	params := fs.StringP("model-parameters", "p", "{}", "model parameters as a JSON object")
	modelsFlag := fs.String("models", "", "models root directory (default $OIDBS_MODELS or ./models)")
	configPath := fs.String("config", "", "TOML config file with endpoint defaults")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("gen requires exactly one argument: the output directory")
	}

	logger := logging.Init("oidbs", *verbose)

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		applyConfig(fs, cfg, map[string]*string{"models": modelsFlag})
	}

	startTS, err := time.Parse(timestampFlagLayout, *start)
	if err != nil {
		return fmt.Errorf("invalid --timestamp-start: %w", err)
	}

	genFormat, err := gen.ParseFormat(*format)
	if err != nil {
		return err
	}

	parameters, err := parseModelParameters(*params)
	if err != nil {
		return err
	}

	models, err := model.Load(resolveModelsRoot(*modelsFlag))
	if err != nil {
		return err
	}

	g, err := gen.New(gen.Options{
		OutputDir:         fs.Arg(0),
		Workers:           *workers,
		Start:             startTS,
		IntervalPerWorker: *interval,
		Step:              *step,
		Format:            genFormat,
		OutOfOrder:        *outOfOrder,
		Parameters:        parameters,
	}, models, logger)
	if err != nil {
		return err
	}

	totals, err := g.Run()
	if err != nil {
		return err
	}
	for name, lines := range totals {
		fmt.Printf("model %s gen, total lines: %d\n", name, lines)
	}
	return nil
}

func runImport(args []string) error {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	broker := fs.StringP("broker", "m", "abc:abc@127.0.0.1:1883", "JoinBase MQTT endpoint part")
	ibPG := fs.StringP("ib-pg", "i", "abc:abc@127.0.0.1:5433", "JoinBase Postgres-wire endpoint part")
	pg := fs.StringP("pg", "g", "postgres:postgres@127.0.0.1:5432", "TimescaleDB/PostgreSQL endpoint part")
	target := fs.StringP("target", "t", "joinbase", "import target: joinbase or timescale")
	modelName := fs.StringP("model", "n", "pstations", "data model to import")
	dataOnly := fs.BoolP("data-only", "d", false, "skip schema bootstrap")
	batchSize := fs.IntP("batch-size", "b", 1, "records per PUBLISH payload")
	tsWorkers := fs.IntP("timescale-workers", "w", 1, "workers for timescaledb-parallel-copy")
	ratePerSec := fs.Float64P("rate", "r", 0, "per-worker publish rate cap, batches per second (0 = unlimited)")
	modelsFlag := fs.String("models", "", "models root directory (default $OIDBS_MODELS or ./models)")
	configPath := fs.String("config", "", "TOML config file with endpoint defaults")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import requires exactly one argument: the dataset input directory")
	}

	logger := logging.Init("oidbs", *verbose)

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		applyConfig(fs, cfg, map[string]*string{
			"broker": broker,
			"ib-pg":  ibPG,
			"pg":     pg,
			"models": modelsFlag,
		})
	}

	targetKind, err := model.ParseTargetKind(*target)
	if err != nil {
		return err
	}

	models, err := model.Load(resolveModelsRoot(*modelsFlag))
	if err != nil {
		return err
	}
	m, err := model.Find(models, *modelName)
	if err != nil {
		return err
	}

	im, err := importer.New(importer.Options{
		InputDir:         fs.Arg(0),
		Broker:           *broker,
		IBPG:             *ibPG,
		PG:               *pg,
		Target:           targetKind,
		DataOnly:         *dataOnly,
		BatchSize:        *batchSize,
		TimescaleWorkers: *tsWorkers,
		RatePerSecond:    *ratePerSec,
	}, m, logger)
	if err != nil {
		return err
	}

	var results []importer.Result
	elapsed, err := importer.Elapsed(func() error {
		var runErr error
		results, runErr = im.Run(context.Background())
		return runErr
	})

	for _, r := range results {
		logger.Info().
			Str("file", r.File).
			Int("batches", r.Batches).
			Int("records", r.Records).
			Int("failed", r.Failed).
			Msg("worker done")
	}
	if err != nil {
		return err
	}

	fmt.Printf("importing done in %v\n", elapsed.Round(time.Millisecond))
	return nil
}

func runBench(args []string) error {
	fs := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	ibPG := fs.StringP("ib-pg", "i", "abc:abc@127.0.0.1:5433", "JoinBase Postgres-wire endpoint part")
	pg := fs.StringP("pg", "g", "postgres:postgres@127.0.0.1:5432", "TimescaleDB/PostgreSQL endpoint part")
	target := fs.StringP("target", "t", "joinbase", "bench target: joinbase or timescale")
	modelName := fs.StringP("model", "n", "pstations", "data model whose queries to run")
	mode := fs.StringP("mode", "c", "latency", "measurement mode: latency or concurrency")
	runs := fs.IntP("runs", "r", 3, "measured rounds")
	warmup := fs.IntP("warmup", "w", 10, "warmup rounds before a concurrency measurement")
	concurrency := fs.IntP("concurrency", "m", 24, "querying goroutines in concurrency mode")
	resultsCSV := fs.Bool("results-csv", false, "append results to a CSV file")
	modelsFlag := fs.String("models", "", "models root directory (default $OIDBS_MODELS or ./models)")
	configPath := fs.String("config", "", "TOML config file with endpoint defaults")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.Init("oidbs", *verbose)

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		applyConfig(fs, cfg, map[string]*string{
			"ib-pg":  ibPG,
			"pg":     pg,
			"models": modelsFlag,
		})
	}

	targetKind, err := model.ParseTargetKind(*target)
	if err != nil {
		return err
	}
	benchMode, err := bench.ParseMode(*mode)
	if err != nil {
		return err
	}

	models, err := model.Load(resolveModelsRoot(*modelsFlag))
	if err != nil {
		return err
	}
	m, err := model.Find(models, *modelName)
	if err != nil {
		return err
	}

	runner, err := bench.New(bench.Options{
		IBPG:        *ibPG,
		PG:          *pg,
		Target:      targetKind,
		Mode:        benchMode,
		Runs:        *runs,
		Warmup:      *warmup,
		Concurrency: *concurrency,
		ResultsCSV:  *resultsCSV,
	}, m, logger)
	if err != nil {
		return err
	}

	return runner.Run(context.Background())
}

// parseModelParameters parses the --model-parameters JSON object.
func parseModelParameters(text string) (map[string]any, error) {
	var params map[string]any
	if err := json.Unmarshal([]byte(text), &params); err != nil {
		return nil, fmt.Errorf("invalid --model-parameters: %w", err)
	}
	return params, nil
}
