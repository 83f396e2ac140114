package zonesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bunny-dns-sync/internal/logging"
)

const tracerName = "bunny-dns-sync"

// Provider is the remote DNS hosting API.
type Provider interface {
	CreateZone(ctx context.Context, domain string) (string, error)
	FindZone(ctx context.Context, domain string) (string, error)
	DeleteZone(ctx context.Context, zoneID string) error
	ListRecords(ctx context.Context, zoneID string) ([]RemoteRecord, error)
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
	AddRecord(ctx context.Context, zoneID string, rec Record) error
}

// ZoneSource yields the raw zone transfer lines of a local zone.
type ZoneSource interface {
	Lines(ctx context.Context, zone string) ([]string, error)
}

// Archiver stores a snapshot of a remote zone and returns where it was put.
type Archiver interface {
	Upload(ctx context.Context, snapshot *Snapshot) (string, error)
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithLogger(l logging.Logger) Option { return func(s *Syncer) { s.log = l } }
func WithDryRun(dryRun bool) Option { return func(s *Syncer) { s.dryRun = dryRun } }
func WithTracer(t trace.Tracer) Option { return func(s *Syncer) { s.tracer = t } }

// WithArchiver uploads a snapshot of the remote zone before any record of it
// is mutated.
func WithArchiver(a Archiver) Option { return func(s *Syncer) { s.archiver = a } }

// Syncer reconciles remote zones with the local nameserver.
type Syncer struct {
	provider Provider
	source   ZoneSource
	archiver Archiver
	log      logging.Logger
	tracer   trace.Tracer
	dryRun   bool
	now      func() time.Time
}

// New builds a Syncer. A nil logger falls back to a discarding one.
func New(p Provider, src ZoneSource, opts ...Option) *Syncer {
	s := &Syncer{
		provider: p,
		source:   src,
		log:      logging.Discard(),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// DryRun reports whether mutations are suppressed.
func (s *Syncer) DryRun() bool { return s.dryRun }

// ResolveZone returns the provider id of the zone whose domain is exactly name.
func (s *Syncer) ResolveZone(ctx context.Context, name string) (string, error) {
	id, err := s.provider.FindZone(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve zone %s: %w", name, err)
	}
	return id, nil
}

// EnsureZone resolves the zone and creates it when missing. A conflict on
// create means another writer won the race, so the zone is resolved again.
func (s *Syncer) EnsureZone(ctx context.Context, name string) (string, bool, error) {
	id, err := s.provider.FindZone(ctx, name)
	if err == nil {
		return id, false, nil
	}
	if !IsNotFound(err) {
		return "", false, fmt.Errorf("resolve zone %s: %w", name, err)
	}
	if s.dryRun {
		return "", true, nil
	}

	s.log.Info(ctx, "creating remote zone", "zone", name)
	id, err = s.provider.CreateZone(ctx, name)
	switch {
	case err == nil && id != "":
		return id, true, nil
	case err == nil, IsConflict(err):
		id, err = s.provider.FindZone(ctx, name)
		if err != nil {
			return "", false, fmt.Errorf("resolve zone %s after create: %w", name, err)
		}
		return id, true, nil
	default:
		return "", false, fmt.Errorf("create zone %s: %w", name, err)
	}
}

// Plan computes the diff for a zone without creating or mutating anything.
func (s *Syncer) Plan(ctx context.Context, name string) (*Plan, error) {
	ctx, span := s.tracer.Start(ctx, "zonesync.Plan", trace.WithAttributes(attribute.String("zone", name)))
	defer span.End()

	plan := &Plan{Zone: name, Generated: s.now()}
	id, err := s.provider.FindZone(ctx, name)
	switch {
	case err == nil:
		plan.ZoneID, plan.Exists = id, true
	case IsNotFound(err):
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("resolve zone %s: %w", name, err)
	}

	local, remote, err := s.fetch(ctx, name, plan.ZoneID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	plan.Local, plan.Remote = len(local), len(remote)
	plan.Diff = ComputeDiff(local, remote)
	return plan, nil
}

// SyncZone makes the remote zone match the local one. The returned error is
// reserved for zone level failures; record level failures are kept in the
// report and surfaced by report.Err(). An authentication failure while
// applying records stops the batch and is returned.
func (s *Syncer) SyncZone(ctx context.Context, name string) (*SyncReport, error) {
	ctx, span := s.tracer.Start(ctx, "zonesync.SyncZone", trace.WithAttributes(
		attribute.String("zone", name),
		attribute.Bool("dry_run", s.dryRun),
	))
	defer span.End()

	report, err := s.syncZone(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetAttributes(
		attribute.Int("records.deleted", len(report.Deleted)),
		attribute.Int("records.added", len(report.Added)),
		attribute.Int("records.failed", report.Failed()),
	)
	return report, nil
}

// AddZone is SyncZone for a zone that is new locally.
func (s *Syncer) AddZone(ctx context.Context, name string) (*SyncReport, error) {
	return s.SyncZone(ctx, name)
}

func (s *Syncer) syncZone(ctx context.Context, name string) (*SyncReport, error) {
	report := &SyncReport{Zone: name, DryRun: s.dryRun, Started: s.now()}
	defer func() { report.Finished = s.now() }()
	log := s.log.With("zone", name)

	id, created, err := s.EnsureZone(ctx, name)
	if err != nil {
		return report, err
	}
	report.ZoneID, report.Created = id, created

	local, remote, err := s.fetch(ctx, name, id)
	if err != nil {
		return report, err
	}
	report.Local, report.Remote = len(local), len(remote)

	diff := ComputeDiff(local, remote)
	if diff.Empty() {
		log.Debug(ctx, "zone already in sync", "records", len(local))
		return report, nil
	}

	if s.archiver != nil && !s.dryRun && len(remote) > 0 {
		key, err := s.archiver.Upload(ctx, &Snapshot{Zone: name, ZoneID: id, Taken: s.now(), Records: remote})
		if err != nil {
			return report, fmt.Errorf("archive zone %s: %w", name, err)
		}
		report.Snapshot = key
		log.Debug(ctx, "archived remote zone", "key", key)
	}

	for _, rec := range diff.ToDelete {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := RecordResult{Op: OpDelete, Record: rec, OK: true}
		if !s.dryRun {
			err := s.provider.DeleteRecord(ctx, id, rec.ID)
			if err != nil && !IsNotFound(err) {
				res.OK = false
				res.Status, res.Message = StatusOf(err)
				log.Warn(ctx, "delete record failed", "record", rec.String(), "status", res.Status, "error", err)
			}
			if IsAuth(err) {
				report.Deleted = append(report.Deleted, res)
				return report, fmt.Errorf("delete record in %s: %w", name, err)
			}
		}
		report.Deleted = append(report.Deleted, res)
	}

	for _, rec := range diff.ToAdd {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := RecordResult{Op: OpAdd, Record: rec, OK: true}
		if !s.dryRun {
			if err := s.provider.AddRecord(ctx, id, rec); err != nil {
				res.OK = false
				res.Status, res.Message = StatusOf(err)
				log.Warn(ctx, "add record failed", "record", rec.String(), "status", res.Status, "error", err)
				if IsAuth(err) {
					report.Added = append(report.Added, res)
					return report, fmt.Errorf("add record in %s: %w", name, err)
				}
			}
		}
		report.Added = append(report.Added, res)
	}

	log.Info(ctx, report.Summary())
	return report, nil
}

// fetch returns the normalized local and remote records. An empty zoneID
// stands for a zone that does not exist remotely yet.
func (s *Syncer) fetch(ctx context.Context, name, zoneID string) ([]Record, []Record, error) {
	lines, err := s.source.Lines(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch local zone %s: %w", name, err)
	}
	local := NormalizeLocal(lines, name)

	if zoneID == "" {
		return local, nil, nil
	}
	raw, err := s.provider.ListRecords(ctx, zoneID)
	if err != nil {
		return nil, nil, fmt.Errorf("list records of %s: %w", name, err)
	}
	return local, NormalizeRemote(raw), nil
}

// Export returns a snapshot of the remote records of a zone.
func (s *Syncer) Export(ctx context.Context, name string) (*Snapshot, error) {
	id, err := s.ResolveZone(ctx, name)
	if err != nil {
		return nil, err
	}
	raw, err := s.provider.ListRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list records of %s: %w", name, err)
	}
	return &Snapshot{Zone: name, ZoneID: id, Taken: s.now(), Records: NormalizeRemote(raw)}, nil
}

// DeleteZone removes the remote zone. A zone that is already gone is not an
// error.
func (s *Syncer) DeleteZone(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "zonesync.DeleteZone", trace.WithAttributes(attribute.String("zone", name)))
	defer span.End()

	id, err := s.provider.FindZone(ctx, name)
	if IsNotFound(err) {
		s.log.Info(ctx, "remote zone already absent", "zone", name)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("resolve zone %s: %w", name, err)
	}
	if s.dryRun {
		s.log.Info(ctx, "would delete remote zone", "zone", name, "zone_id", id)
		return nil
	}
	if err := s.provider.DeleteZone(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return fmt.Errorf("delete zone %s: %w", name, err)
	}
	s.log.Info(ctx, "deleted remote zone", "zone", name, "zone_id", id)
	return nil
}
