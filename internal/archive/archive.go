package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/zonesync"
)

// KeyPrefix is the folder every snapshot is written under.
const KeyPrefix = "dns-snapshots/"

const timestampLayout = "20060102-150405"

// Config selects and configures the snapshot backend.
type Config struct {
	Backend          string // minio or s3
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	Prefix           string // optional path prefix within bucket
	Region           string
	UseSSL           bool
	AutoCreateBucket bool
	Format           string // json or yaml
	HTTPTimeout      time.Duration
}

// Info describes a stored snapshot.
type Info struct {
	Key          string    `json:"key" yaml:"key"`
	Zone         string    `json:"zone" yaml:"zone"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

// store is an object storage backend.
type store interface {
	put(ctx context.Context, key string, content []byte, contentType string) error
	list(ctx context.Context, prefix string) ([]Info, error)
}

// Archiver uploads zone snapshots to object storage.
type Archiver struct {
	store  store
	prefix string
	format string
	log    logging.Logger
}

// New builds an Archiver for cfg.Backend.
func New(ctx context.Context, cfg Config, log logging.Logger) (*Archiver, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	var (
		st  store
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "minio":
		st, err = newMinioStore(ctx, cfg)
	case "s3":
		st, err = newS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return newArchiver(st, cfg, log), nil
}

func newArchiver(st store, cfg Config, log logging.Logger) *Archiver {
	if log == nil {
		log = logging.Discard()
	}
	format := strings.ToLower(cfg.Format)
	if format == "yml" {
		format = "yaml"
	}
	if format != "yaml" {
		format = "json"
	}
	return &Archiver{store: st, prefix: cfg.Prefix, format: format, log: log}
}

// Upload implements zonesync.Archiver.
func (a *Archiver) Upload(ctx context.Context, snapshot *zonesync.Snapshot) (string, error) {
	if snapshot == nil || strings.TrimSpace(snapshot.Zone) == "" {
		return "", errors.New("snapshot zone name is required")
	}
	if snapshot.Taken.IsZero() {
		snapshot.Taken = time.Now().UTC()
	}
	content, err := zonesync.Encode(snapshot, a.format, true)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := a.objectKey(snapshot)
	if err := a.store.put(ctx, key, content, "application/"+a.format); err != nil {
		return "", err
	}
	a.log.Info(ctx, "uploaded zone snapshot", "key", key, "bytes", len(content))
	return key, nil
}

// List returns stored snapshots, most recent first. An empty zone lists all.
func (a *Archiver) List(ctx context.Context, zone string, limit int) ([]Info, error) {
	prefix := KeyPrefix + zone
	if a.prefix != "" {
		prefix = path.Join(a.prefix, prefix)
		if zone == "" {
			prefix += "/"
		}
	}
	infos, err := a.store.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Zone = ZoneFromKey(infos[i].Key)
	}
	if zone != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if info.Zone == zone {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

func (a *Archiver) objectKey(s *zonesync.Snapshot) string {
	ext := ".json"
	if a.format == "yaml" {
		ext = ".yaml"
	}
	key := fmt.Sprintf("%s%s-%s%s", KeyPrefix, s.Zone, s.Taken.UTC().Format(timestampLayout), ext)
	if a.prefix != "" {
		key = path.Join(a.prefix, key)
	}
	return key
}

// ZoneFromKey recovers the zone name from a key of the form
// [prefix/]dns-snapshots/<zone>-YYYYMMDD-HHMMSS.<ext>.
func ZoneFromKey(key string) string {
	name := path.Base(key)
	name = strings.TrimSuffix(name, path.Ext(name))

	// -YYYYMMDD-HHMMSS is exactly 16 characters
	const stampLen = 16
	if len(name) > stampLen {
		stamp := name[len(name)-stampLen:]
		if stamp[0] == '-' && stamp[9] == '-' && isDigits(stamp[1:9]) && isDigits(stamp[10:]) {
			return name[:len(name)-stampLen]
		}
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
