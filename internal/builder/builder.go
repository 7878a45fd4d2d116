// Package builder populates the city cache from a group table, one rate
// limited lookup at a time, saving after every group so an interrupted
// build resumes where it stopped.
package builder

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/cachefile"
	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/monitoring"
	"github.com/sells-group/citycache/internal/pacer"
	"github.com/sells-group/citycache/internal/resilience"
)

// Summary counts what a run did.
type Summary struct {
	GroupsTotal     int
	GroupsProcessed int
	GroupsSkipped   int
	Lookups         int
	Resolved        int
	NotFound        int
	Failed          int
	Records         int
	Distributed     []string
	Duration        time.Duration
}

// Builder runs cache builds.
type Builder struct {
	settings
	store  *cachefile.Store
	lookup Lookup
	pacer  *pacer.Pacer
}

// New returns a builder that reads and writes store, resolves names with
// lookup and spaces calls with p.
func New(store *cachefile.Store, lookup Lookup, p *pacer.Pacer, opts ...Option) *Builder {
	b := &Builder{
		settings: defaultSettings(),
		store:    store,
		lookup:   lookup,
		pacer:    p,
	}
	for _, o := range opts {
		o(&b.settings)
	}
	return b
}

// Run resolves every name in table that the cache does not hold yet.
//
// Groups are visited in table order. After a group's pending names have been
// tried the whole cache is saved, so a rerun skips what is already done. A
// name that cannot be resolved is logged and recorded and the run moves on.
// Only a malformed cache file, a failed save, a failed distribution or
// cancellation end the run early; on cancellation the current group's
// progress is saved first and ctx.Err() is returned.
func (b *Builder) Run(ctx context.Context, table groups.Table) (Summary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "builder"), zap.String("run_id", b.runID))
	sum := Summary{GroupsTotal: len(table)}

	cache, err := b.store.Load()
	if err != nil {
		return sum, err
	}

	for i, g := range table {
		pending := b.pending(cache, g)
		if len(pending) == 0 {
			sum.GroupsSkipped++
			b.metrics.GroupsSkipped.Inc()
			log.Info("group already cached, skipping",
				zap.String("group", g.Key),
				zap.Int("records", cache.Count(g.Key)),
			)
			continue
		}

		sum.GroupsProcessed++
		b.metrics.GroupsProcessed.Inc()
		b.pacer.NextGroup()
		log.Info("processing group",
			zap.Int("index", i+1),
			zap.Int("of", len(table)),
			zap.String("group", g.Key),
			zap.Int("pending", len(pending)),
			zap.Int("cached", cache.Count(g.Key)),
		)

		runErr := b.processGroup(ctx, log, cache, g, pending, &sum)

		if err := b.save(cache); err != nil {
			return b.finish(log, sum, cache, start), err
		}
		if runErr != nil {
			log.Warn("build interrupted, progress saved",
				zap.String("group", g.Key),
				zap.Error(runErr),
			)
			return b.finish(log, sum, cache, start), runErr
		}
	}

	if len(b.sinks) > 0 {
		written, err := b.distribute(ctx)
		sum.Distributed = written
		if err != nil {
			return b.finish(log, sum, cache, start), err
		}
	}

	b.metrics.LastSuccess.SetToCurrentTime()
	return b.finish(log, sum, cache, start), nil
}

// pending lists the names of g that still need a lookup, in table order,
// without repeats.
func (b *Builder) pending(cache *model.Cache, g groups.Group) []string {
	seen := make(map[string]struct{}, len(g.Names))
	var out []string
	for _, n := range g.Names {
		k := model.NormalizeName(n)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if !cache.Contains(g.Key, n) {
			out = append(out, n)
		}
	}
	if b.skipMode == SkipCount && cache.Count(g.Key) >= len(g.Names) {
		return nil
	}
	return out
}

// processGroup looks up each pending name. It returns a non-nil error only
// when ctx ends.
func (b *Builder) processGroup(ctx context.Context, log *zap.Logger, cache *model.Cache, g groups.Group, pending []string, sum *Summary) error {
	for _, name := range pending {
		b.resolve(ctx, log, cache, g, name, sum)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// pace blocks until the pacer allows the next external call. Every attempt
// goes through it, retries included.
func (b *Builder) pace(ctx context.Context) error {
	before := b.pacer.Waited()
	if err := b.pacer.Wait(ctx); err != nil {
		return err
	}
	b.metrics.PacerWait.Add((b.pacer.Waited() - before).Seconds())
	return nil
}

func (b *Builder) resolve(ctx context.Context, log *zap.Logger, cache *model.Cache, g groups.Group, name string, sum *Summary) {
	sum.Lookups++
	nlog := log.With(zap.String("group", g.Key), zap.String("name", name))

	retry := b.retry
	onRetry := resilience.RetryLogger("lookup", name)
	retry.OnRetry = func(attempt int, err error) {
		b.metrics.Retries.Inc()
		onRetry(attempt, err)
	}

	t0 := time.Now()
	rec, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.EntityRecord, error) {
		if err := b.pace(ctx); err != nil {
			return model.EntityRecord{}, err
		}
		return b.lookup.Lookup(ctx, name, g)
	})
	b.metrics.LookupDuration.Observe(time.Since(t0).Seconds())

	if err == nil {
		rec.Name = name
		if !rec.Valid() {
			err = eris.Errorf("builder: lookup %q returned invalid coordinates %f,%f", name, rec.Lat, rec.Lon)
		}
	}

	switch {
	case err == nil:
		if !cache.Add(g.Key, rec) {
			b.metrics.Lookups.WithLabelValues(monitoring.OutcomeDuplicate).Inc()
			nlog.Warn("resolved name already cached")
			return
		}
		sum.Resolved++
		b.metrics.Lookups.WithLabelValues(monitoring.OutcomeResolved).Inc()
		nlog.Info("✓ resolved",
			zap.Float64("lat", rec.Lat),
			zap.Float64("lon", rec.Lon),
			zap.String("state", rec.State),
			zap.String("country", rec.Country),
		)
		if b.ledger != nil {
			if lerr := b.ledger.Resolve(ctx, g.Key, name); lerr != nil {
				nlog.Warn("ledger resolve failed", zap.Error(lerr))
			}
		}

	case ctx.Err() != nil:
		// Interrupted mid-call: not a failure of this name.
		sum.Lookups--

	case eris.Is(err, ErrNotFound):
		sum.NotFound++
		b.metrics.Lookups.WithLabelValues(monitoring.OutcomeNotFound).Inc()
		nlog.Info("✗ not found")
		b.record(ctx, nlog, g.Key, name, resilience.KindNotFound, err)

	default:
		sum.Failed++
		b.metrics.Lookups.WithLabelValues(monitoring.OutcomeFailed).Inc()
		kind := resilience.Classify(err)
		nlog.Error("✗ lookup failed", zap.String("kind", string(kind)), zap.Error(err))
		b.record(ctx, nlog, g.Key, name, kind, err)
	}
}

func (b *Builder) record(ctx context.Context, log *zap.Logger, groupKey, name string, kind resilience.Kind, cause error) {
	if b.ledger == nil {
		return
	}
	if err := b.ledger.Record(ctx, b.runID, groupKey, name, kind, cause); err != nil {
		log.Warn("ledger record failed", zap.Error(err))
	}
}

func (b *Builder) save(cache *model.Cache) error {
	if err := b.store.Save(cache); err != nil {
		return eris.Wrap(err, "builder: save cache")
	}
	b.metrics.CacheSaves.Inc()
	b.metrics.CacheRecords.Set(float64(cache.TotalRecords()))
	return nil
}

func (b *Builder) distribute(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(b.store.Path()); errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("no cache file to distribute", zap.String("path", b.store.Path()))
		return nil, nil
	}
	written, err := cachefile.Distribute(ctx, b.store.Path(), b.sinks)
	if err != nil {
		return written, eris.Wrap(err, "builder: distribute")
	}
	return written, nil
}

func (b *Builder) finish(log *zap.Logger, sum Summary, cache *model.Cache, start time.Time) Summary {
	sum.Records = cache.TotalRecords()
	sum.Duration = time.Since(start)
	log.Info("build complete",
		zap.Int("groups_total", sum.GroupsTotal),
		zap.Int("groups_processed", sum.GroupsProcessed),
		zap.Int("groups_skipped", sum.GroupsSkipped),
		zap.Int("lookups", sum.Lookups),
		zap.Int("resolved", sum.Resolved),
		zap.Int("not_found", sum.NotFound),
		zap.Int("failed", sum.Failed),
		zap.Int("records", sum.Records),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}
