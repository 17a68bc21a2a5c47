// Command extract runs one extraction pass: it pulls new rows from the
// operational database into JSON snapshots in the ingest bucket and writes a
// run report naming the updated tables.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for the source database

	"github.com/datasquid/etl/internal/config"
	"github.com/datasquid/etl/internal/extract"
	"github.com/datasquid/etl/internal/manifest"
	"github.com/datasquid/etl/internal/objectstore"
	"github.com/datasquid/etl/internal/secrets"
	"github.com/datasquid/etl/pkg/logger"
)

func main() {
	resp := run(context.Background())
	emit(resp)
	os.Exit(resp.ExitCode())
}

func run(ctx context.Context) *manifest.Response {
	cfg := config.LoadExtract()

	store, err := objectstore.New(objectstore.ParseConfig(config.ObjectStoreParams()))
	if err != nil {
		logger.Error("unable to create object store client", "error", err)
		return failure("Error creating object store client")
	}
	bucket, err := store.FindBucket(ctx, cfg.IngestBucketPrefix)
	if err != nil {
		logger.Error("ingest bucket not found", "prefix", cfg.IngestBucketPrefix, "error", err)
		return failure("Ingest bucket not found")
	}

	creds, err := secrets.EnvProvider{}.Credentials(ctx, cfg.SourceSecret)
	if err != nil {
		logger.Error("unable to resolve source credentials", "error", err)
		return failure("Error retrieving database credentials")
	}
	db, err := sql.Open("pgx", creds.DSN(cfg.SourceSSLMode))
	if err != nil {
		logger.Error("unable to open source database", "error", err)
		return failure("Error connecting to the source database")
	}
	defer func() {
		_ = db.Close()
		logger.Info("database connection closed")
	}()

	resp, err := extract.NewEngine(db, store, bucket).Run(ctx)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return failure("Unexpected error during extraction")
	}
	return resp
}

func failure(msg string) *manifest.Response {
	return &manifest.Response{Result: manifest.ResultFailure, Message: msg}
}

func emit(resp *manifest.Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(body))
}
