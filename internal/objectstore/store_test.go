package objectstore

import (
	"context"
	"fmt"
	"testing"
)

func TestLocalStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	if err := store.EnsureBucket(ctx, "ingest"); err != nil {
		t.Fatalf("EnsureBucket error: %v", err)
	}

	if err := store.PutObject(ctx, "ingest", "address/2024/03/15/10:30.json", []byte("[]")); err != nil {
		t.Fatalf("PutObject error: %v", err)
	}
	data, err := store.GetObject(ctx, "ingest", "address/2024/03/15/10:30.json")
	if err != nil {
		t.Fatalf("GetObject error: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Unexpected object body: %s", data)
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	if err := store.PutObject(ctx, "ingest", "address/last_extracted.txt", []byte("2024/03/15/10:30")); err != nil {
		t.Fatalf("PutObject error: %v", err)
	}
	if err := store.PutObject(ctx, "ingest", "address/last_extracted.txt", []byte("2024/03/15/11:00")); err != nil {
		t.Fatalf("overwrite PutObject error: %v", err)
	}
	data, err := store.GetObject(ctx, "ingest", "address/last_extracted.txt")
	if err != nil {
		t.Fatalf("GetObject error: %v", err)
	}
	if string(data) != "2024/03/15/11:00" {
		t.Errorf("Expected last write to win, got %s", data)
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	if err := store.EnsureBucket(ctx, "ingest"); err != nil {
		t.Fatalf("EnsureBucket error: %v", err)
	}

	_, err := store.GetObject(ctx, "ingest", "address/absent.json")
	if err == nil {
		t.Fatal("Expected error for missing object")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not-found classification, got %v", err)
	}
	oe, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if oe.CodeValue() != CodeObjectNotFound {
		t.Errorf("Expected %s, got %s", CodeObjectNotFound, oe.CodeValue())
	}
	if oe.RetryableStatus() {
		t.Error("Not-found must not be retryable")
	}
}

func TestLocalStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	if err := store.EnsureBucket(ctx, "ingest"); err != nil {
		t.Fatalf("EnsureBucket error: %v", err)
	}

	keys, err := store.ListPrefix(ctx, "ingest", "")
	if err != nil {
		t.Fatalf("ListPrefix error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected empty bucket, got %v", keys)
	}

	objects := []string{
		"address/2024/03/15/10:30.json",
		"address/last_extracted.txt",
		"reports/2024-03-15T10:30:00_success.json",
	}
	for _, key := range objects {
		if err := store.PutObject(ctx, "ingest", key, []byte("x")); err != nil {
			t.Fatalf("PutObject(%s) error: %v", key, err)
		}
	}

	keys, err = store.ListPrefix(ctx, "ingest", "address/")
	if err != nil {
		t.Fatalf("ListPrefix error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys under address/, got %v", keys)
	}
	// Keys come back sorted.
	if keys[0] != "address/2024/03/15/10:30.json" || keys[1] != "address/last_extracted.txt" {
		t.Errorf("Unexpected listing order: %v", keys)
	}

	keys, err = store.ListPrefix(ctx, "ingest", "")
	if err != nil {
		t.Fatalf("ListPrefix error: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("Expected 3 keys in total, got %v", keys)
	}
}

func TestLocalStoreFindBucket(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	for _, bucket := range []string{"data-squid-ingest-bucket-20240315", "data-squid-transform-bucket-20240315", "unrelated"} {
		if err := store.EnsureBucket(ctx, bucket); err != nil {
			t.Fatalf("EnsureBucket error: %v", err)
		}
	}

	got, err := store.FindBucket(ctx, "data-squid-ingest-bucket-")
	if err != nil {
		t.Fatalf("FindBucket error: %v", err)
	}
	if got != "data-squid-ingest-bucket-20240315" {
		t.Errorf("Unexpected bucket: %s", got)
	}

	_, err = store.FindBucket(ctx, "no-such-prefix-")
	if err == nil {
		t.Fatal("Expected error for unmatched prefix")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not-found classification, got %v", err)
	}
}

func TestLocalStoreBucketExists(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	exists, err := store.BucketExists(ctx, "ingest")
	if err != nil {
		t.Fatalf("BucketExists error: %v", err)
	}
	if exists {
		t.Error("Expected bucket to be absent")
	}
	if err := store.EnsureBucket(ctx, "ingest"); err != nil {
		t.Fatalf("EnsureBucket error: %v", err)
	}
	exists, err = store.BucketExists(ctx, "ingest")
	if err != nil {
		t.Fatalf("BucketExists error: %v", err)
	}
	if !exists {
		t.Error("Expected bucket to exist")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := wrapError(CodeWriteFailed, true, fmt.Errorf("disk full"))
	if err.Error() != "E_WRITE_FAILED: disk full" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	bare := wrapError(CodeTimeout, true, nil)
	if bare.Error() != "E_TIMEOUT" {
		t.Errorf("Unexpected message: %s", bare.Error())
	}
	if IsNotFound(err) {
		t.Error("Write failure must not classify as not-found")
	}
	if IsNotFound(nil) {
		t.Error("nil must not classify as not-found")
	}
}
