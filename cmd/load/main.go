// Command load runs one warehouse-load pass. It is invoked with the
// object-storage notification for a newly written transform report (a path
// argument or stdin) and upserts each named star-schema table into the
// warehouse.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver for the warehouse

	"github.com/datasquid/etl/internal/config"
	"github.com/datasquid/etl/internal/load"
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
	payload, err := readTriggerPayload()
	if err != nil {
		logger.Error("unable to read trigger payload", "error", err)
		return &manifest.Response{Result: manifest.ResultValidationFailure, Message: "Invalid event format"}
	}
	trigger, err := manifest.ParseTrigger(payload)
	if err != nil {
		logger.Error("malformed trigger payload", "error", err)
		return &manifest.Response{Result: manifest.ResultValidationFailure, Message: "Invalid event format"}
	}

	cfg := config.LoadLoadStage()
	store, err := objectstore.New(objectstore.ParseConfig(config.ObjectStoreParams()))
	if err != nil {
		logger.Error("unable to create object store client", "error", err)
		return failure("Error creating object store client")
	}

	creds, err := secrets.EnvProvider{}.Credentials(ctx, cfg.WarehouseSecret)
	if err != nil {
		logger.Error("unable to resolve warehouse credentials", "error", err)
		return failure("Error retrieving warehouse credentials")
	}
	db, err := sql.Open("postgres", creds.DSN(cfg.WarehouseSSLMode))
	if err != nil {
		logger.Error("unable to open warehouse database", "error", err)
		return failure("Error connecting to the data warehouse")
	}
	defer func() {
		_ = db.Close()
		logger.Info("warehouse connection closed")
	}()

	resp, err := load.NewEngine(db, store, trigger.Bucket).Run(ctx, trigger)
	if err != nil {
		logger.Error("load failed", "error", err)
		return failure("Unexpected error during load")
	}
	return resp
}

func readTriggerPayload() ([]byte, error) {
	if len(os.Args) > 1 {
		return os.ReadFile(os.Args[1])
	}
	return io.ReadAll(os.Stdin)
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
