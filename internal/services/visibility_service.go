// Package services orchestrates ingestion, reporting, comparison and goal
// tracking on top of the engine packages. Handlers talk to this layer only.
package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fedemoisello/Visibility-Netsuite/internal/cache"
	"github.com/fedemoisello/Visibility-Netsuite/internal/compare"
	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
	"github.com/fedemoisello/Visibility-Netsuite/internal/ingest"
	"github.com/fedemoisello/Visibility-Netsuite/internal/log"
	"github.com/fedemoisello/Visibility-Netsuite/internal/report"
	"github.com/fedemoisello/Visibility-Netsuite/internal/store"
)

// NormalizedUpload is the cache entry for one normalization run. The warnings
// belong to the run that produced the table, so they travel with it.
type NormalizedUpload struct {
	Table    *core.Table
	Warnings ingest.Warnings
}

// Goal describes the configured annual target.
type Goal struct {
	Owner            string
	Target           float64
	FallbackProgress float64
}

// GoalStatus is the progress of the configured goal against one snapshot.
type GoalStatus struct {
	Owner    string  `json:"owner"`
	Target   float64 `json:"target"`
	Progress float64 `json:"progress"`
	Percent  float64 `json:"percent"`
	Fallback bool    `json:"fallback"`
}

// IngestResult is what one upload produced.
type IngestResult struct {
	Snapshot store.Snapshot
	Warnings ingest.Warnings
	CacheHit bool
}

// ReportFilters narrows a snapshot before pivoting. Empty slices and zero
// values select everything.
type ReportFilters struct {
	Clients  []string
	Year     int
	Quarter  string
	Partners []string
	PMs      []string
}

// VisibilityService orchestrates uploads, reports and comparisons.
type VisibilityService struct {
	cache  cache.Cache[NormalizedUpload]
	store  *store.Store
	goal   Goal
	logger *log.Logger
}

func NewVisibilityService(c cache.Cache[NormalizedUpload], st *store.Store, goal Goal, logger *log.Logger) *VisibilityService {
	return &VisibilityService{
		cache:  c,
		store:  st,
		goal:   goal,
		logger: logger.WithComponent(log.ComponentIngest),
	}
}

// Ingest normalizes an upload and registers it as a snapshot. Identical bytes
// with identical options reuse the cached table instead of re-parsing.
func (s *VisibilityService) Ingest(ctx context.Context, name string, raw []byte, opts ingest.Options) (IngestResult, error) {
	key := uploadKey(raw, opts)

	if cached, ok := s.cache.Get(key); ok {
		snap, err := s.store.Save(ctx, name, cached.Table)
		if err != nil {
			return IngestResult{}, fmt.Errorf("store snapshot: %w", err)
		}
		s.logIngested(ctx, snap, cached.Warnings, true)
		return IngestResult{Snapshot: snap, Warnings: cached.Warnings, CacheHit: true}, nil
	}

	table, warnings, err := ingest.Normalize(raw, opts)
	if err != nil {
		return IngestResult{}, err
	}
	s.cache.Set(key, NormalizedUpload{Table: table, Warnings: warnings})

	snap, err := s.store.Save(ctx, name, table)
	if err != nil {
		return IngestResult{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.logIngested(ctx, snap, warnings, false)
	return IngestResult{Snapshot: snap, Warnings: warnings, CacheHit: false}, nil
}

func (s *VisibilityService) logIngested(ctx context.Context, snap store.Snapshot, w ingest.Warnings, hit bool) {
	s.logger.InfoContext(ctx, "snapshot ingested",
		log.FieldSnapshotID, snap.ID,
		log.FieldSnapshot, snap.Name,
		log.FieldRecords, snap.Records,
		log.FieldClients, snap.Clients,
		log.FieldBadDates, w.BadDates,
		log.FieldBadAmounts, w.BadAmounts,
		log.FieldCacheHit, hit,
	)
}

// uploadKey extends the content key with the column overrides, which also
// change the normalization outcome.
func uploadKey(raw []byte, opts ingest.Options) string {
	key := cache.Key(raw, opts.Delimiter, opts.Encoding)
	if opts.Overrides.PartnerColumn != "" || opts.Overrides.PMColumn != "" {
		key += ":" + opts.Overrides.PartnerColumn + ":" + opts.Overrides.PMColumn
	}
	return key
}

// Snapshots lists stored snapshots, newest first.
func (s *VisibilityService) Snapshots(ctx context.Context) []store.Snapshot {
	return s.store.List(ctx)
}

// Snapshot returns one stored snapshot.
func (s *VisibilityService) Snapshot(ctx context.Context, id string) (store.Snapshot, error) {
	return s.store.Get(ctx, id)
}

// DeleteSnapshot removes a snapshot; unknown ids are a no-op.
func (s *VisibilityService) DeleteSnapshot(ctx context.Context, id string) {
	s.store.Delete(ctx, id)
}

// PivotReport builds the client-by-period pivot for a snapshot, after
// applying the given filters.
func (s *VisibilityService) PivotReport(ctx context.Context, id string, f ReportFilters) (*report.Pivot, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Build(s.filter(snap.Table, f)), nil
}

// FilteredTable returns the snapshot's table after filtering. Exports use it
// to stream rows without pivoting twice.
func (s *VisibilityService) FilteredTable(ctx context.Context, id string, f ReportFilters) (*core.Table, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.filter(snap.Table, f), nil
}

func (s *VisibilityService) filter(t *core.Table, f ReportFilters) *core.Table {
	var filters []core.Filter
	if len(f.Clients) > 0 {
		filters = append(filters, core.ByClients(f.Clients))
	}
	if f.Year != 0 {
		filters = append(filters, core.ByYear(f.Year))
	}
	if f.Quarter != "" {
		filters = append(filters, core.ByQuarter(f.Quarter))
	}
	if len(f.Partners) > 0 {
		filters = append(filters, core.ByPartners(f.Partners))
	}
	if len(f.PMs) > 0 {
		filters = append(filters, core.ByPMs(f.PMs))
	}
	return core.Apply(t, filters...)
}

// Compare diffs two stored snapshots along the given dimension.
func (s *VisibilityService) Compare(ctx context.Context, currentID, previousID string, by compare.GroupBy) (*compare.Summary, error) {
	current, err := s.store.Get(ctx, currentID)
	if err != nil {
		return nil, fmt.Errorf("current snapshot: %w", err)
	}
	previous, err := s.store.Get(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}
	summary := compare.Diff(current.Table, previous.Table, by)
	s.logger.InfoContext(ctx, "snapshots compared",
		log.FieldComponent, log.ComponentCompare,
		log.FieldGroupBy, by.Name,
		"groups", len(summary.Groups),
	)
	return summary, nil
}

// CompareUploads normalizes two raw uploads and diffs them without storing
// either. The two normalizations are independent, so they run concurrently.
func (s *VisibilityService) CompareUploads(ctx context.Context, currentRaw, previousRaw []byte, opts ingest.Options, by compare.GroupBy) (*compare.Summary, ingest.Warnings, ingest.Warnings, error) {
	var current, previous NormalizedUpload

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.normalizeCached(currentRaw, opts)
		if err != nil {
			return fmt.Errorf("current upload: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		previous, err = s.normalizeCached(previousRaw, opts)
		if err != nil {
			return fmt.Errorf("previous upload: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, ingest.Warnings{}, ingest.Warnings{}, err
	}

	summary := compare.Diff(current.Table, previous.Table, by)
	s.logger.InfoContext(ctx, "uploads compared",
		log.FieldComponent, log.ComponentCompare,
		log.FieldGroupBy, by.Name,
		"groups", len(summary.Groups),
	)
	return summary, current.Warnings, previous.Warnings, nil
}

func (s *VisibilityService) normalizeCached(raw []byte, opts ingest.Options) (NormalizedUpload, error) {
	key := uploadKey(raw, opts)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	table, warnings, err := ingest.Normalize(raw, opts)
	if err != nil {
		return NormalizedUpload{}, err
	}
	up := NormalizedUpload{Table: table, Warnings: warnings}
	s.cache.Set(key, up)
	return up, nil
}

// GoalConfigured reports whether a goal was configured at startup.
func (s *VisibilityService) GoalConfigured() bool {
	return s.goal.Owner != "" && s.goal.Target > 0
}

// GoalProgress measures the configured owner's revenue in a snapshot against
// the annual target. When the snapshot holds no records for the owner, the
// configured fallback progress is reported and flagged as such.
func (s *VisibilityService) GoalProgress(ctx context.Context, snapshotID string) (GoalStatus, error) {
	if !s.GoalConfigured() {
		return GoalStatus{}, fmt.Errorf("no goal configured")
	}

	snap, err := s.store.Get(ctx, snapshotID)
	if err != nil {
		return GoalStatus{}, err
	}

	owner := core.NormalizeOwner(s.goal.Owner)
	var progress float64
	matched := false
	for _, rec := range snap.Table.Records {
		if rec.PartnerNormalized != owner {
			continue
		}
		matched = true
		if !core.IsMissing(rec.Amount) {
			progress += rec.Amount
		}
	}

	status := GoalStatus{
		Owner:    s.goal.Owner,
		Target:   s.goal.Target,
		Progress: progress,
		Fallback: false,
	}
	if !matched {
		status.Progress = s.goal.FallbackProgress
		status.Fallback = true
	}
	status.Percent = status.Progress / s.goal.Target * 100
	s.logger.InfoContext(ctx, "goal progress measured",
		log.FieldComponent, log.ComponentGoal,
		log.FieldOwner, s.goal.Owner,
		log.FieldSnapshotID, snapshotID,
		"fallback", status.Fallback,
	)
	return status, nil
}
