package objectstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the object-store endpoint configuration.
type Config struct {
	EndpointURL      string
	Region           string
	UseSSL           bool
	AccessKeyID      string
	SecretAccessKey  string
	RootPathOverride string
}

// ParseConfig builds a Config from loose parameters.
func ParseConfig(params map[string]any) *Config {
	return &Config{
		EndpointURL:     firstString(params, "endpointUrl", "endpoint_url", "url"),
		Region:          firstString(params, "region"),
		UseSSL:          firstBool(params, false, "useSSL", "use_ssl"),
		AccessKeyID:     firstString(params, "accessKeyId", "access_key_id", "accessKeyID"),
		SecretAccessKey: firstString(params, "secretAccessKey", "secret_access_key", "secretKey"),
		RootPathOverride: firstString(params,
			"rootPath", "root_path", "devRoot", "dev_root"),
	}
}

// New creates a Store from config: a real S3 client for http/https endpoints,
// LocalStore for file:// URLs or when no endpoint is configured.
// A credential failure against an http/https endpoint is fatal; the extraction
// run must abort before any table is touched rather than silently go local.
func New(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if strings.HasPrefix(cfg.EndpointURL, "http://") || strings.HasPrefix(cfg.EndpointURL, "https://") {
		return NewS3Client(cfg)
	}
	return NewLocalStore(cfg.objectRoot()), nil
}

func (c *Config) objectRoot() string {
	if c.RootPathOverride != "" {
		return c.RootPathOverride
	}
	if strings.HasPrefix(c.EndpointURL, "file://") {
		if u, err := url.Parse(c.EndpointURL); err == nil {
			if u.Path != "" {
				return u.Path
			}
		}
	}
	host := c.EndpointURL
	if u, err := url.Parse(c.EndpointURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return filepath.Join(os.TempDir(), "etl-store-"+sanitizePath(host))
}

func firstString(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case string:
				return strings.TrimSpace(t)
			case fmt.Stringer:
				return strings.TrimSpace(t.String())
			}
		}
	}
	return ""
}

func firstBool(params map[string]any, defaultVal bool, keys ...string) bool {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case bool:
				return t
			case string:
				lowered := strings.ToLower(strings.TrimSpace(t))
				if lowered == "true" {
					return true
				}
				if lowered == "false" {
					return false
				}
			}
		}
	}
	return defaultVal
}
