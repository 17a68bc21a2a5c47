// Package secrets supplies database credentials to the pipeline stages
// through an opaque provider interface.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Credentials holds a database connection secret. The field names mirror the
// stored secret payload: {username, password, dbname, host, port}.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"dbname"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// DSN renders a keyword/value connection string for database/sql drivers.
func (c *Credentials) DSN(sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.Username, c.Password, c.Database, sslMode,
	)
}

// Provider resolves a named secret to credentials.
type Provider interface {
	Credentials(ctx context.Context, name string) (*Credentials, error)
}

// Parse decodes a raw secret payload.
func Parse(data []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Username == "" || creds.Host == "" || creds.Database == "" {
		return nil, fmt.Errorf("credentials missing username, host or dbname")
	}
	return &creds, nil
}

// EnvProvider reads each secret from an environment variable holding the JSON
// payload. The variable name is the secret name upper-cased with non
// alphanumerics mapped to underscores, e.g. "totesys_database" ->
// TOTESYS_DATABASE.
type EnvProvider struct{}

func (EnvProvider) Credentials(_ context.Context, name string) (*Credentials, error) {
	envKey := envName(name)
	raw := os.Getenv(envKey)
	if raw == "" {
		return nil, fmt.Errorf("secret %s: environment variable %s not set", name, envKey)
	}
	creds, err := Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", name, err)
	}
	return creds, nil
}

func envName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped
}

// StaticProvider serves fixed credentials, primarily for tests.
type StaticProvider map[string]*Credentials

func (p StaticProvider) Credentials(_ context.Context, name string) (*Credentials, error) {
	creds, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("secret %s: not found", name)
	}
	return creds, nil
}
