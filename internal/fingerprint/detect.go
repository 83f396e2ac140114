package fingerprint

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"bunny-dns-sync/internal/logging"
	"bunny-dns-sync/internal/zonesync"
)

// DefaultExt is the zone file extension scanned in the zone directory.
const DefaultExt = ".db"

// Changes classifies zones by comparing current and stored hashes. Each
// list is sorted.
type Changes struct {
	Added     []string `json:"added,omitempty" yaml:"added,omitempty"`
	Changed   []string `json:"changed,omitempty" yaml:"changed,omitempty"`
	Removed   []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Unchanged []string `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
}

// Classify compares the hashes of the zone directory with the stored ones.
func Classify(current, stored Hashes) Changes {
	var c Changes
	for zone, hash := range current {
		prev, ok := stored[zone]
		switch {
		case !ok:
			c.Added = append(c.Added, zone)
		case prev != hash:
			c.Changed = append(c.Changed, zone)
		default:
			c.Unchanged = append(c.Unchanged, zone)
		}
	}
	for zone := range stored {
		if _, ok := current[zone]; !ok {
			c.Removed = append(c.Removed, zone)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Changed)
	sort.Strings(c.Removed)
	sort.Strings(c.Unchanged)
	return c
}

// HashZoneDir returns the MD5 of every regular file named <zone><ext> in dir.
// Symlinks are followed. A dangling one is an error rather than a removed
// zone.
func HashZoneDir(fs afero.Fs, dir, ext string) (Hashes, error) {
	if ext == "" {
		ext = DefaultExt
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read zone directory: %w", err)
	}
	hashes := Hashes{}
	for _, entry := range entries {
		name := entry.Name()
		zone := strings.TrimSuffix(name, ext)
		if zone == "" || zone == name {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := fs.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat zone file: %w", err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		sum, err := hashFile(fs, path)
		if err != nil {
			return nil, err
		}
		hashes[zone] = sum
	}
	return hashes, nil
}

func hashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open zone file: %w", err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash zone file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ZoneSyncer is the orchestrator the detector drives.
type ZoneSyncer interface {
	AddZone(ctx context.Context, name string) (*zonesync.SyncReport, error)
	SyncZone(ctx context.Context, name string) (*zonesync.SyncReport, error)
	DeleteZone(ctx context.Context, name string) error
}

// Action is what the detector did for a zone.
type Action string

const (
	ActionAdd    Action = "add"
	ActionSync   Action = "sync"
	ActionDelete Action = "delete"
)

// ZoneOutcome is the result of one zone in a detection pass.
type ZoneOutcome struct {
	Zone   string               `json:"zone" yaml:"zone"`
	Action Action               `json:"action" yaml:"action"`
	Report *zonesync.SyncReport `json:"report,omitempty" yaml:"report,omitempty"`
	Error  string               `json:"error,omitempty" yaml:"error,omitempty"`
	err    error
}

// OK reports whether the zone converged.
func (o ZoneOutcome) OK() bool { return o.err == nil }

// RunReport summarizes a detection pass.
type RunReport struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Started  time.Time     `json:"started_at" yaml:"started_at"`
	Finished time.Time     `json:"finished_at" yaml:"finished_at"`
	Changes  Changes       `json:"changes" yaml:"changes"`
	Zones    []ZoneOutcome `json:"zones,omitempty" yaml:"zones,omitempty"`
	Aborted  bool          `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// Failed counts zones that did not converge.
func (r *RunReport) Failed() int {
	n := 0
	for _, z := range r.Zones {
		if !z.OK() {
			n++
		}
	}
	return n
}

// Err summarizes failed zones, or returns nil.
func (r *RunReport) Err() error {
	if r == nil {
		return nil
	}
	var failed []string
	for _, z := range r.Zones {
		if !z.OK() {
			failed = append(failed, z.Zone)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d zone(s) failed: %s", len(failed), strings.Join(failed, ", "))
}

// DetectorOptions configure a Detector.
type DetectorOptions struct {
	Fs      afero.Fs
	ZoneDir string
	Ext     string
	// DryRun leaves the hash file untouched.
	DryRun bool
	Log    logging.Logger
}

// Detector finds zones whose files changed since the last pass and hands
// them to the orchestrator.
type Detector struct {
	store  *Store
	syncer ZoneSyncer
	opts   DetectorOptions
	now    func() time.Time
}

func NewDetector(store *Store, syncer ZoneSyncer, opts DetectorOptions) *Detector {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Detector{store: store, syncer: syncer, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Run performs one detection pass. Added zones are processed first, then
// changed, then removed. A zone's stored hash only moves forward when its
// sync fully succeeded so that failures are retried next time. An
// authentication failure stops the pass after saving what was done so far.
func (d *Detector) Run(ctx context.Context) (*RunReport, error) {
	ctx, span := otel.Tracer("bunny-dns-sync").Start(ctx, "fingerprint.Run")
	defer span.End()

	report := &RunReport{RunID: uuid.NewString(), Started: d.now()}
	defer func() { report.Finished = d.now() }()
	log := d.opts.Log.With("run_id", report.RunID)
	span.SetAttributes(attribute.String("run_id", report.RunID))

	stored, err := d.store.Load()
	if err != nil {
		return report, err
	}
	current, err := HashZoneDir(d.opts.Fs, d.opts.ZoneDir, d.opts.Ext)
	if err != nil {
		return report, err
	}
	report.Changes = Classify(current, stored)
	log.Info(ctx, "zone changes detected",
		"added", len(report.Changes.Added),
		"changed", len(report.Changes.Changed),
		"removed", len(report.Changes.Removed),
		"unchanged", len(report.Changes.Unchanged))

	next := stored.Clone()
	var fatal error

	type step struct {
		action Action
		zones  []string
	}
	steps := []step{
		{ActionAdd, report.Changes.Added},
		{ActionSync, report.Changes.Changed},
		{ActionDelete, report.Changes.Removed},
	}
loop:
	for _, st := range steps {
		for _, zone := range st.zones {
			if err := ctx.Err(); err != nil {
				fatal = err
				break loop
			}
			outcome := d.process(ctx, st.action, zone)
			report.Zones = append(report.Zones, outcome)
			if outcome.OK() {
				if st.action == ActionDelete {
					delete(next, zone)
				} else {
					next[zone] = current[zone]
				}
				continue
			}
			log.Error(ctx, "zone sync failed", "zone", zone, "action", st.action, "error", outcome.err)
			if zonesync.IsAuth(outcome.err) {
				fatal = outcome.err
				break loop
			}
		}
	}
	if fatal != nil {
		report.Aborted = true
		span.RecordError(fatal)
	}

	if !d.opts.DryRun && !sameHashes(stored, next) {
		if err := d.store.Save(next); err != nil {
			if fatal == nil {
				fatal = err
			}
			log.Error(ctx, "saving zone hashes failed", "error", err)
		}
	}
	if fatal != nil {
		return report, fatal
	}
	return report, nil
}

func (d *Detector) process(ctx context.Context, action Action, zone string) ZoneOutcome {
	outcome := ZoneOutcome{Zone: zone, Action: action}
	var err error
	switch action {
	case ActionAdd:
		outcome.Report, err = d.syncer.AddZone(ctx, zone)
	case ActionSync:
		outcome.Report, err = d.syncer.SyncZone(ctx, zone)
	case ActionDelete:
		err = d.syncer.DeleteZone(ctx, zone)
	}
	if err == nil && outcome.Report != nil {
		err = outcome.Report.Err()
	}
	if err != nil {
		outcome.err = err
		outcome.Error = err.Error()
	}
	return outcome
}

func sameHashes(a, b Hashes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
