// Command transform runs one transform pass. It is invoked with the
// object-storage notification for a newly written extraction report (a path
// argument or stdin), converts the updated tables into star-schema Parquet
// outputs and writes its own report to the transform bucket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/datasquid/etl/internal/config"
	"github.com/datasquid/etl/internal/manifest"
	"github.com/datasquid/etl/internal/objectstore"
	"github.com/datasquid/etl/internal/transform"
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

	cfg := config.LoadTransform()
	store, err := objectstore.New(objectstore.ParseConfig(config.ObjectStoreParams()))
	if err != nil {
		logger.Error("unable to create object store client", "error", err)
		return failure("Error creating object store client")
	}
	transformBucket, err := store.FindBucket(ctx, cfg.TransformBucketPrefix)
	if err != nil {
		logger.Error("transform bucket not found", "prefix", cfg.TransformBucketPrefix, "error", err)
		return failure("Transform bucket not found")
	}

	driver, err := transform.NewDriver(store, trigger.Bucket, transformBucket)
	if err != nil {
		logger.Error("invalid transform registry", "error", err)
		return failure("Invalid transform configuration")
	}
	resp, err := driver.Run(ctx, trigger)
	if err != nil {
		logger.Error("transformation failed", "error", err)
		return failure("Unexpected error during transformation")
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
