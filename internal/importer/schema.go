package importer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oidbs/oidbs/internal/model"
)

// benchmarkDatabase is the database every target serves the suite from.
const benchmarkDatabase = "benchmark"

// setupSchema runs the model's DDL for the target over the Postgres wire
// protocol.
func (im *Importer) setupSchema(ctx context.Context, endpoint Endpoint, target model.TargetKind) error {
	info, ok := im.model.Targets[target]
	if !ok || info.Schema == "" {
		im.logger.Debug().
			Str("model", im.model.Name).
			Str("target", string(target)).
			Msg("no schema for target, skipping bootstrap")
		return nil
	}

	uri := endpoint.PostgresURI(benchmarkDatabase)
	im.logger.Info().Str("target", string(target)).Msg("bootstrapping schema")

	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, info.Schema); err != nil {
		return fmt.Errorf("apply schema for %s: %w", target, err)
	}
	return nil
}
