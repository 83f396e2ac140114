package zonesync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Op is the kind of record mutation applied to a remote zone.
type Op string

const (
	OpAdd    Op = "add"
	OpDelete Op = "delete"
)

// RecordResult is the outcome of one record mutation.
type RecordResult struct {
	Op      Op     `json:"op" yaml:"op"`
	Record  Record `json:"record" yaml:"record"`
	OK      bool   `json:"ok" yaml:"ok"`
	Status  int    `json:"status,omitempty" yaml:"status,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// SyncReport aggregates everything a zone sync did.
type SyncReport struct {
	Zone     string         `json:"zone" yaml:"zone"`
	ZoneID   string         `json:"zone_id,omitempty" yaml:"zone_id,omitempty"`
	Created  bool           `json:"created" yaml:"created"`
	DryRun   bool           `json:"dry_run" yaml:"dry_run"`
	Local    int            `json:"local_records" yaml:"local_records"`
	Remote   int            `json:"remote_records" yaml:"remote_records"`
	Deleted  []RecordResult `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Added    []RecordResult `json:"added,omitempty" yaml:"added,omitempty"`
	Snapshot string         `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Started  time.Time      `json:"started_at" yaml:"started_at"`
	Finished time.Time      `json:"finished_at" yaml:"finished_at"`
}

// Failed counts record mutations that did not succeed.
func (r *SyncReport) Failed() int {
	failed := 0
	for _, res := range r.Deleted {
		if !res.OK {
			failed++
		}
	}
	for _, res := range r.Added {
		if !res.OK {
			failed++
		}
	}
	return failed
}

// Err returns a *PartialApplyError when any record mutation failed.
func (r *SyncReport) Err() error {
	if r == nil {
		return nil
	}
	if failed := r.Failed(); failed > 0 {
		return &PartialApplyError{Zone: r.Zone, Failed: failed, Total: len(r.Deleted) + len(r.Added)}
	}
	return nil
}

// Summary renders a one line description for logs and CLI output.
func (r *SyncReport) Summary() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d deleted, %d added", r.Zone, countOK(r.Deleted), countOK(r.Added))
	if failed := r.Failed(); failed > 0 {
		fmt.Fprintf(&b, ", %d failed", failed)
	}
	if r.Created {
		b.WriteString(" (zone created)")
	}
	if r.DryRun {
		b.WriteString(" [dry-run]")
	}
	return b.String()
}

func countOK(results []RecordResult) int {
	n := 0
	for _, res := range results {
		if res.OK {
			n++
		}
	}
	return n
}

// Plan is a dry-run view of a zone sync.
type Plan struct {
	Zone      string    `json:"zone" yaml:"zone"`
	ZoneID    string    `json:"zone_id,omitempty" yaml:"zone_id,omitempty"`
	Exists    bool      `json:"exists" yaml:"exists"`
	Generated time.Time `json:"generated_at" yaml:"generated_at"`
	Local     int       `json:"local_records" yaml:"local_records"`
	Remote    int       `json:"remote_records" yaml:"remote_records"`
	Diff      Diff      `json:"diff" yaml:"diff"`
}

// Snapshot captures the remote records of a zone at a point in time.
type Snapshot struct {
	Zone    string    `json:"zone" yaml:"zone"`
	ZoneID  string    `json:"zone_id" yaml:"zone_id"`
	Taken   time.Time `json:"taken_at" yaml:"taken_at"`
	Records []Record  `json:"records" yaml:"records"`
}

// Encode serializes a plan, report or snapshot to JSON or YAML.
func Encode(v any, format string, pretty bool) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(v)
	case "", "json":
		if pretty {
			return json.MarshalIndent(v, "", "  ")
		}
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// SaveDocument writes v to path. Format is inferred from the extension when empty.
func SaveDocument(v any, path, format string, pretty bool) error {
	if format == "" {
		format = DetectFormat(path)
	}
	content, err := Encode(v, format, pretty)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o600)
}

// DetectFormat maps a file extension to "yaml" or "json".
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
