// Package job drives the periodic change-feed synchronization runs. A Job
// owns the page loop for one source; the source knows how to build page URLs,
// fetch and apply pages.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"profil/internal/audit"
	"profil/internal/sync/engine"
	syncmetrics "profil/internal/sync/metrics"
	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
)

//go:generate mockgen -source=job.go -destination=mocks/mocks.go -package=mocks

// Source is one synchronizable change feed.
type Source interface {
	SourceType() models.SourceType

	// StartURL builds the first page URL from the last checkpoint. cp is nil
	// on cold start, which must produce a from-the-beginning URL.
	StartURL(cp *models.Checkpoint) (string, error)

	Fetch(ctx context.Context, pageURL string) (*models.ChangeFeedPage, error)

	// Apply maps and reconciles one page and reports how many rows changed.
	Apply(ctx context.Context, page *models.ChangeFeedPage) (engine.Changes, error)
}

// CheckpointReader reads the stored sync position for a source.
type CheckpointReader interface {
	GetLatest(ctx context.Context, source models.SourceType) (*models.Checkpoint, error)
}

// AuditPublisher records per-run summary events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Locker serializes runs of the same source across processes.
type Locker interface {
	// Acquire takes the named lock. ok is false when another holder has it;
	// release must be called when ok is true.
	Acquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

// Job runs one source to completion, page by page.
type Job struct {
	source      Source
	checkpoints CheckpointReader
	locker      Locker
	audit       AuditPublisher
	log         *slog.Logger
	metrics     *syncmetrics.Metrics
	clock       func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithLocker sets the cross-process run lock. Defaults to NoopLocker.
func WithLocker(l Locker) Option {
	return func(j *Job) { j.locker = l }
}

// WithLogger sets the logger used by the run loop.
func WithLogger(log *slog.Logger) Option {
	return func(j *Job) { j.log = log }
}

// WithMetrics enables sync run instrumentation.
func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// WithAudit emits a summary audit event per completed run.
func WithAudit(pub AuditPublisher) Option {
	return func(j *Job) { j.audit = pub }
}

// WithClock overrides the run duration clock in tests.
func WithClock(clock func() time.Time) Option {
	return func(j *Job) { j.clock = clock }
}

// New builds a Job for one source.
func New(source Source, checkpoints CheckpointReader, opts ...Option) (*Job, error) {
	if source == nil {
		return nil, errors.New("job: source is required")
	}
	if checkpoints == nil {
		return nil, errors.New("job: checkpoint reader is required")
	}
	j := &Job{
		source:      source,
		checkpoints: checkpoints,
		locker:      NoopLocker{},
		log:         slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run pulls the feed from the stored checkpoint until it is drained. A run
// that cannot take the lock is skipped, not failed; the next tick retries.
func (j *Job) Run(ctx context.Context) error {
	name := string(j.source.SourceType())

	release, ok, err := j.locker.Acquire(ctx, name)
	if err != nil {
		return fmt.Errorf("acquire sync lock for %s: %w", name, err)
	}
	if !ok {
		j.log.Warn("sync run already in progress, skipping", "source", name)
		return nil
	}
	defer release()

	start := j.clock()
	pages, rows, err := j.drain(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	j.metrics.ObserveRun(name, status, j.clock().Sub(start))
	if err != nil {
		return err
	}

	j.log.Info("sync run complete", "source", name, "pages", pages, "rows", rows)
	if j.audit != nil {
		if err := j.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionSyncRun,
			Subject: name,
			Outcome: status,
			Detail: map[string]string{
				"pages": strconv.Itoa(pages),
				"rows":  strconv.Itoa(rows),
			},
		}); err != nil {
			j.log.Error("emit sync audit event", "source", name, "error", err)
		}
	}
	return nil
}

func (j *Job) drain(ctx context.Context) (pages, rows int, err error) {
	name := string(j.source.SourceType())

	cp, err := j.checkpoints.GetLatest(ctx, j.source.SourceType())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		cp = nil
	case err != nil:
		return 0, 0, fmt.Errorf("read checkpoint for %s: %w", name, err)
	}

	pageURL, err := j.source.StartURL(cp)
	if err != nil {
		return 0, 0, err
	}

	for {
		select {
		case <-ctx.Done():
			return pages, rows, ctx.Err()
		default:
		}

		page, err := j.source.Fetch(ctx, pageURL)
		if err != nil {
			j.metrics.IncFeedFailures(name)
			return pages, rows, err
		}
		if len(page.Entries) == 0 {
			return pages, rows, nil
		}

		counts, err := j.source.Apply(ctx, page)
		if err != nil {
			return pages, rows, err
		}
		pages++
		rows += counts.Total()
		j.metrics.IncPages(name)

		// A fully unchanged page means we re-fetched already applied data;
		// the feed has no more new work for this run.
		if counts.Total() == 0 {
			return pages, rows, nil
		}
		if page.NextPage == "" {
			return pages, rows, nil
		}
		pageURL = page.NextPage
	}
}
