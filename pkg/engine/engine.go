// Package engine wraps the embedded DuckDB connection a worker uses to
// evaluate one Task's subquery and write its result set to the blob
// store: connection lifecycle, one entry point per unit of work,
// structured errors on failure.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" sql.DB driver

	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/log"
)

// Engine owns one DuckDB connection with the httpfs extension loaded,
// which subqueries against an s3:// source need. No S3 credentials are
// configured on the connection here.
type Engine struct {
	db *sql.DB
}

// Open creates a DuckDB connection per cfg and installs the httpfs
// extension so READ_PARQUET/READ_JSON_AUTO/READ_CSV_AUTO can address
// s3:// sources directly.
func Open(ctx context.Context, cfg config.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := cfg.Database
	if cfg.ReadOnly {
		dsn += "?access_mode=READ_ONLY"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindInternal, "opening duckdb database %s", cfg.Database)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, lakeerr.Wrap(err, lakeerr.KindInternal, "connecting to duckdb")
	}

	for _, stmt := range []string{
		"INSTALL httpfs",
		"LOAD httpfs",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, lakeerr.Wrapf(err, lakeerr.KindInternal, "running %q", stmt)
		}
	}

	return &Engine{db: db}, nil
}

// Close releases the underlying connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Execute runs subquery and writes its result set to outputKey via
// DuckDB's COPY ... TO statement — this is the worker's entire
// task-execution step, mirroring Task.Subquery/OutputKey one-to-one.
// The write format is inferred from outputKey's extension (the
// invocation payload carries no separate format field; the key itself
// is the declared format, per spec.md §6).
func (e *Engine) Execute(ctx context.Context, subquery, outputKey string) error {
	stmt := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT %s)", subquery, outputKey, copyFormat(outputKey))

	log.WithComponent("engine").Debug().
		Str("output_key", outputKey).
		Msg("executing task subquery")

	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return lakeerr.NewTaskFailed(outputKey, err.Error())
	}
	return nil
}

// copyFormat maps an output key's extension to the DuckDB COPY format
// keyword, defaulting to PARQUET for an unrecognized or missing
// extension.
func copyFormat(outputKey string) string {
	switch {
	case strings.HasSuffix(outputKey, ".json"):
		return "JSON"
	case strings.HasSuffix(outputKey, ".csv"):
		return "CSV"
	default:
		return "PARQUET"
	}
}
