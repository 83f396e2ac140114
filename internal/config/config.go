package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bunny-dns-sync/internal/archive"
)

const (
	// DefaultFile is read when no --config is given and it exists.
	DefaultFile = "/etc/bunny-dns-sync.conf"
	// EnvPrefix namespaces environment overrides, e.g. BUNNY_DNS_SYNC_API_KEY.
	EnvPrefix = "BUNNY_DNS_SYNC"
)

// Config is the immutable run configuration.
type Config struct {
	Provider            string
	APIKey              string
	APIURL              string
	CloudflareAccountID string

	LocalNameserver string
	ZoneDir         string
	ZoneExt         string
	Source          string

	HashFile       string
	LockFile       string
	LockStaleAfter time.Duration

	HTTPTimeout     time.Duration
	TransferTimeout time.Duration
	DryRun          bool

	Archive archive.Config

	LogFormat    string
	LogLevel     string
	OtelExporter string
	OtelEndpoint string

	ListenAddr string
	Interval   time.Duration
}

// ArchiveEnabled reports whether snapshots should be uploaded.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Backend != "" && c.Archive.Backend != "none"
}

// SetDefaults registers every key with its default so environment
// overrides are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", "bunny")
	v.SetDefault("api_key", "")
	v.SetDefault("api_url", "https://api.bunny.net")
	v.SetDefault("cloudflare_account_id", "")
	v.SetDefault("local_nameserver", "127.0.0.1")
	v.SetDefault("zone_dir", "")
	v.SetDefault("zone_ext", ".db")
	v.SetDefault("source", "axfr")
	v.SetDefault("hash_file", "/tmp/dns_zone_hashes.txt")
	v.SetDefault("lock_file", "/tmp/zone-change-detector.lock")
	v.SetDefault("lock_stale_after", "6h")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("transfer_timeout", "60s")
	v.SetDefault("dry_run", false)

	v.SetDefault("archive", "none")
	v.SetDefault("archive_endpoint", "")
	v.SetDefault("archive_access_key", "")
	v.SetDefault("archive_secret_key", "")
	v.SetDefault("archive_bucket", "")
	v.SetDefault("archive_prefix", "")
	v.SetDefault("archive_region", "us-east-1")
	v.SetDefault("archive_use_ssl", true)
	v.SetDefault("archive_auto_create", false)
	v.SetDefault("archive_format", "json")
	v.SetDefault("archive_timeout", "60s")

	v.SetDefault("log_format", "human")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_exporter", "none")
	v.SetDefault("otel_endpoint", "localhost:4317")

	v.SetDefault("listen", ":8080")
	v.SetDefault("interval", "0s")
}

// BindEnv wires BUNNY_DNS_SYNC_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// ReadFile loads path into v. Files ending in .conf use the shell style
// "key = 'value'" format; other extensions are left to viper. A missing
// file is only an error when explicit is true.
func ReadFile(v *viper.Viper, path string, explicit bool) error {
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".conf") {
		v.SetConfigType("env")
		data = filterLegacy(data)
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// filterLegacy drops blank lines, comments and the "Config ..." banner that
// shell style config files start with.
func filterLegacy(data []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(line, "Config") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out.WriteString(trimmed)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// LoadDotEnv loads .env style files into the process environment. With no
// paths it tries ./.env and ignores its absence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// FromViper builds a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Provider:            strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		APIKey:              strings.TrimSpace(v.GetString("api_key")),
		APIURL:              strings.TrimSpace(v.GetString("api_url")),
		CloudflareAccountID: v.GetString("cloudflare_account_id"),
		LocalNameserver:     strings.TrimSpace(v.GetString("local_nameserver")),
		ZoneDir:             v.GetString("zone_dir"),
		ZoneExt:             v.GetString("zone_ext"),
		Source:              strings.ToLower(v.GetString("source")),
		HashFile:            v.GetString("hash_file"),
		LockFile:            v.GetString("lock_file"),
		DryRun:              v.GetBool("dry_run"),
		LogFormat:           v.GetString("log_format"),
		LogLevel:            v.GetString("log_level"),
		OtelExporter:        v.GetString("otel_exporter"),
		OtelEndpoint:        v.GetString("otel_endpoint"),
		ListenAddr:          v.GetString("listen"),
		Archive: archive.Config{
			Backend:          strings.ToLower(v.GetString("archive")),
			Endpoint:         v.GetString("archive_endpoint"),
			AccessKey:        v.GetString("archive_access_key"),
			SecretKey:        v.GetString("archive_secret_key"),
			Bucket:           v.GetString("archive_bucket"),
			Prefix:           v.GetString("archive_prefix"),
			Region:           v.GetString("archive_region"),
			UseSSL:           v.GetBool("archive_use_ssl"),
			AutoCreateBucket: v.GetBool("archive_auto_create"),
			Format:           v.GetString("archive_format"),
		},
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"lock_stale_after", &cfg.LockStaleAfter},
		{"http_timeout", &cfg.HTTPTimeout},
		{"transfer_timeout", &cfg.TransferTimeout},
		{"archive_timeout", &cfg.Archive.HTTPTimeout},
		{"interval", &cfg.Interval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	switch c.Source {
	case "axfr", "file":
	default:
		errs = append(errs, fmt.Errorf("source must be axfr or file, got %q", c.Source))
	}
	switch c.LogFormat {
	case "", "human", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be human, text or json, got %q", c.LogFormat))
	}
	switch c.Archive.Backend {
	case "", "none":
	case "minio", "s3":
		if c.Archive.Bucket == "" {
			errs = append(errs, errors.New("archive_bucket is required when archive is enabled"))
		}
		if c.Archive.Backend == "minio" && c.Archive.Endpoint == "" {
			errs = append(errs, errors.New("archive_endpoint is required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive must be none, minio or s3, got %q", c.Archive.Backend))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// RequireSource checks the settings needed to read local zones.
func (c *Config) RequireSource() error {
	if c.Source == "file" && c.ZoneDir == "" {
		return errors.New("zone_dir is required when source is file")
	}
	if c.Source == "axfr" && c.LocalNameserver == "" {
		return errors.New("local_nameserver is required when source is axfr")
	}
	return nil
}

// RequireZoneDir checks the settings needed for change detection.
func (c *Config) RequireZoneDir() error {
	if c.ZoneDir == "" {
		return errors.New("zone_dir is required for change detection")
	}
	return c.RequireSource()
}
