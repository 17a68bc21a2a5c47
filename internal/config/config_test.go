package config

import "testing"

func TestLoadExtractDefaults(t *testing.T) {
	t.Setenv("ETL_INGEST_BUCKET_PREFIX", "")
	t.Setenv("ETL_SOURCE_SECRET", "")
	t.Setenv("ETL_SOURCE_SSLMODE", "")

	cfg := LoadExtract()
	if cfg.IngestBucketPrefix != "data-squid-ingest-bucket-" {
		t.Errorf("Unexpected bucket prefix: %s", cfg.IngestBucketPrefix)
	}
	if cfg.SourceSecret != "totesys_database" {
		t.Errorf("Unexpected source secret: %s", cfg.SourceSecret)
	}
	if cfg.SourceSSLMode != "disable" {
		t.Errorf("Unexpected ssl mode: %s", cfg.SourceSSLMode)
	}
}

func TestLoadExtractOverrides(t *testing.T) {
	t.Setenv("ETL_INGEST_BUCKET_PREFIX", "custom-ingest-")
	t.Setenv("ETL_SOURCE_SECRET", "staging_database")

	cfg := LoadExtract()
	if cfg.IngestBucketPrefix != "custom-ingest-" {
		t.Errorf("Override ignored: %s", cfg.IngestBucketPrefix)
	}
	if cfg.SourceSecret != "staging_database" {
		t.Errorf("Override ignored: %s", cfg.SourceSecret)
	}
}

func TestLoadTransformDefaults(t *testing.T) {
	t.Setenv("ETL_TRANSFORM_BUCKET_PREFIX", "")
	cfg := LoadTransform()
	if cfg.TransformBucketPrefix != "data-squid-transform-bucket-" {
		t.Errorf("Unexpected bucket prefix: %s", cfg.TransformBucketPrefix)
	}
}

func TestLoadLoadStageDefaults(t *testing.T) {
	t.Setenv("ETL_WAREHOUSE_SECRET", "")
	t.Setenv("ETL_WAREHOUSE_SSLMODE", "")
	cfg := LoadLoadStage()
	if cfg.WarehouseSecret != "database_warehouse" {
		t.Errorf("Unexpected warehouse secret: %s", cfg.WarehouseSecret)
	}
	if cfg.WarehouseSSLMode != "disable" {
		t.Errorf("Unexpected ssl mode: %s", cfg.WarehouseSSLMode)
	}
}

func TestObjectStoreParams(t *testing.T) {
	t.Setenv("ETL_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("ETL_S3_ACCESS_KEY_ID", "minio")

	params := ObjectStoreParams()
	if params["endpointUrl"] != "http://localhost:9000" {
		t.Errorf("Unexpected endpoint param: %v", params["endpointUrl"])
	}
	if params["accessKeyId"] != "minio" {
		t.Errorf("Unexpected access key param: %v", params["accessKeyId"])
	}
}
