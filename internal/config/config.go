// Package config provides environment-driven configuration for the pipeline
// stage binaries.
package config

import (
	"os"
)

// ExtractConfig holds extraction stage configuration.
type ExtractConfig struct {
	IngestBucketPrefix string
	SourceSecret       string
	SourceSSLMode      string
}

// TransformConfig holds transform stage configuration. The ingest bucket is
// named by the trigger event, so only the transform bucket needs discovery.
type TransformConfig struct {
	TransformBucketPrefix string
}

// LoadStageConfig holds load stage configuration.
type LoadStageConfig struct {
	WarehouseSecret  string
	WarehouseSSLMode string
}

// LoadExtract loads extraction configuration from environment.
func LoadExtract() *ExtractConfig {
	return &ExtractConfig{
		IngestBucketPrefix: getEnv("ETL_INGEST_BUCKET_PREFIX", "data-squid-ingest-bucket-"),
		SourceSecret:       getEnv("ETL_SOURCE_SECRET", "totesys_database"),
		SourceSSLMode:      getEnv("ETL_SOURCE_SSLMODE", "disable"),
	}
}

// LoadTransform loads transform configuration from environment.
func LoadTransform() *TransformConfig {
	return &TransformConfig{
		TransformBucketPrefix: getEnv("ETL_TRANSFORM_BUCKET_PREFIX", "data-squid-transform-bucket-"),
	}
}

// LoadLoadStage loads warehouse-load configuration from environment.
func LoadLoadStage() *LoadStageConfig {
	return &LoadStageConfig{
		WarehouseSecret:  getEnv("ETL_WAREHOUSE_SECRET", "database_warehouse"),
		WarehouseSSLMode: getEnv("ETL_WAREHOUSE_SSLMODE", "disable"),
	}
}

// ObjectStoreParams collects object-store connection parameters from
// environment in the loose form internal/objectstore.ParseConfig accepts.
func ObjectStoreParams() map[string]any {
	return map[string]any{
		"endpointUrl":     os.Getenv("ETL_S3_ENDPOINT"),
		"region":          os.Getenv("ETL_S3_REGION"),
		"useSSL":          os.Getenv("ETL_S3_USE_SSL"),
		"accessKeyId":     os.Getenv("ETL_S3_ACCESS_KEY_ID"),
		"secretAccessKey": os.Getenv("ETL_S3_SECRET_ACCESS_KEY"),
		"rootPath":        os.Getenv("ETL_S3_LOCAL_ROOT"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
