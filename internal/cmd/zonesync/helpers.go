package zonesync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bunny-dns-sync/internal/archive"
	"bunny-dns-sync/internal/axfr"
	"bunny-dns-sync/internal/config"
	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/provider"
	_ "bunny-dns-sync/internal/provider/providers"
	"bunny-dns-sync/internal/telemetry"
	"bunny-dns-sync/internal/zonesync"
)

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"provider":         "provider",
	"api-key":          "api_key",
	"api-url":          "api_url",
	"nameserver":       "local_nameserver",
	"zone-dir":         "zone_dir",
	"zone-ext":         "zone_ext",
	"source":           "source",
	"hash-file":        "hash_file",
	"lock-file":        "lock_file",
	"timeout":          "http_timeout",
	"transfer-timeout": "transfer_timeout",
	"dry-run":          "dry_run",
	"log-format":       "log_format",
	"log-level":        "log_level",
	"otel-exporter":    "otel_exporter",
	"archive":          "archive",
	"listen":           "listen",
	"interval":         "interval",
}

// mustGetStringFlag retrieves a string flag value.
// Errors are ignored because cobra guarantees flags exist if they're defined.
func mustGetStringFlag(cmd *cobra.Command, name string) string {
	val, _ := cmd.Flags().GetString(name)
	return val
}

// mustGetBoolFlag retrieves a bool flag value.
// Errors are ignored because cobra guarantees flags exist if they're defined.
func mustGetBoolFlag(cmd *cobra.Command, name string) bool {
	val, _ := cmd.Flags().GetBool(name)
	return val
}

// mustGetIntFlag retrieves an int flag value.
// Errors are ignored because cobra guarantees flags exist if they're defined.
func mustGetIntFlag(cmd *cobra.Command, name string) int {
	val, _ := cmd.Flags().GetInt(name)
	return val
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path := mustGetStringFlag(cmd, "env"); path != "" {
		if err := config.LoadDotEnv(path); err != nil {
			return nil, err
		}
	} else if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	path := mustGetStringFlag(cmd, "config")
	if err := config.ReadFile(v, path, path != ""); err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	if mustGetBoolFlag(cmd, "verbose") {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runtime bundles everything a command needs to talk to the provider.
type runtime struct {
	cfg      *config.Config
	log      logging.Logger
	syncer   *zonesync.Syncer
	archiver *archive.Archiver
	shutdown func(context.Context) error
}

func (r *runtime) close(ctx context.Context) {
	if r.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.shutdown(ctx); err != nil {
		r.log.Warn(ctx, "tracer shutdown failed", "error", err)
	}
}

// newRuntime loads configuration and builds the syncer. needSource makes
// the local zone source settings mandatory.
func newRuntime(cmd *cobra.Command, needSource bool) (*runtime, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if needSource {
		if err := cfg.RequireSource(); err != nil {
			return nil, err
		}
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithWriter(cfg.LogFormat, level, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter: cfg.OtelExporter,
		Endpoint: cfg.OtelEndpoint,
		Console:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, shutdown: shutdown}

	p, err := provider.New(cfg.Provider, log, provider.Settings{
		APIKey:    cfg.APIKey,
		APIURL:    cfg.APIURL,
		AccountID: cfg.CloudflareAccountID,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	var src zonesync.ZoneSource
	switch cfg.Source {
	case "file":
		src = axfr.NewFileSource(afero.NewOsFs(), cfg.ZoneDir, cfg.ZoneExt)
	default:
		src = axfr.NewClient(cfg.LocalNameserver, cfg.TransferTimeout)
	}

	opts := []zonesync.Option{
		zonesync.WithLogger(log),
		zonesync.WithDryRun(cfg.DryRun),
		zonesync.WithTracer(tracer),
	}
	if cfg.ArchiveEnabled() {
		a, err := archive.New(ctx, cfg.Archive, log)
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rt.archiver = a
		opts = append(opts, zonesync.WithArchiver(a))
	}
	rt.syncer = zonesync.New(p, src, opts...)
	return rt, nil
}

// writeDocument prints v to stdout or saves it to output.
func writeDocument(cmd *cobra.Command, v any, output, format string, pretty bool) error {
	if format == "" {
		format = zonesync.DetectFormat(output)
	}
	if output != "" {
		if err := zonesync.SaveDocument(v, output, format, pretty); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", output)
		return nil
	}
	payload, err := zonesync.Encode(v, format, pretty)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(payload); err != nil {
		return err
	}
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func describeResult(res zonesync.RecordResult) string {
	status := "ok"
	if !res.OK {
		status = "failed"
		if res.Status != 0 {
			status = fmt.Sprintf("failed (%d)", res.Status)
		}
		if res.Message != "" {
			status += ": " + res.Message
		}
	}
	return fmt.Sprintf("%s %s %s", res.Op, res.Record.String(), status)
}
