package objectstore

import (
	"testing"
)

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig(map[string]any{
		"endpointUrl":     " http://localhost:9000 ",
		"region":          "eu-west-2",
		"useSSL":          "true",
		"accessKeyId":     "minio",
		"secretAccessKey": "minio123",
	})
	if cfg.EndpointURL != "http://localhost:9000" {
		t.Errorf("Unexpected endpoint: %q", cfg.EndpointURL)
	}
	if cfg.Region != "eu-west-2" || !cfg.UseSSL {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.AccessKeyID != "minio" || cfg.SecretAccessKey != "minio123" {
		t.Errorf("Credentials not parsed: %+v", cfg)
	}
}

func TestParseConfigAlternateKeys(t *testing.T) {
	cfg := ParseConfig(map[string]any{
		"endpoint_url":      "https://s3.amazonaws.com",
		"access_key_id":     "AKIA",
		"secret_access_key": "shh",
		"use_ssl":           true,
	})
	if cfg.EndpointURL != "https://s3.amazonaws.com" || cfg.AccessKeyID != "AKIA" || !cfg.UseSSL {
		t.Errorf("Snake-case keys not recognized: %+v", cfg)
	}

	empty := ParseConfig(map[string]any{})
	if empty.EndpointURL != "" || empty.UseSSL {
		t.Errorf("Expected zero config, got %+v", empty)
	}
}

func TestNewFallsBackToLocal(t *testing.T) {
	root := t.TempDir()
	store, err := New(&Config{RootPathOverride: root})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("Expected LocalStore without endpoint, got %T", store)
	}

	store, err = New(&Config{EndpointURL: "file:///tmp/etl-test-store"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("Expected LocalStore for file endpoint, got %T", store)
	}
}
