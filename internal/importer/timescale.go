package importer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/oidbs/oidbs/internal/model"
)

// parallelCopyBinary must be on PATH for the timescale target; plain
// row-by-row inserts cannot load a meaningful dataset in meaningful time.
const parallelCopyBinary = "timescaledb-parallel-copy"

// importTimescale loads every dataset file with timescaledb-parallel-copy.
func (im *Importer) importTimescale(ctx context.Context) error {
	endpoint, err := ParseEndpoint(im.opts.PG)
	if err != nil {
		return err
	}

	info, ok := im.model.Targets[model.TargetJoinBase]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrTargetNotServed, model.TargetJoinBase)
	}

	files, err := im.dataFiles()
	if err != nil {
		return err
	}

	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		endpoint.Host, endpoint.Port, endpoint.Username, endpoint.Password, benchmarkDatabase,
	)

	for _, file := range files {
		im.logger.Info().Str("file", file).Msg("copying into timescale")

		cmd := exec.CommandContext(ctx, parallelCopyBinary,
			"--connection", connString,
			"--db-name", info.Database,
			"--table", info.Table,
			"--file", file,
			"--workers", strconv.Itoa(im.opts.TimescaleWorkers),
			"--reporting-period", "10s",
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s on %s: %w", parallelCopyBinary, file, err)
		}
	}
	return nil
}
