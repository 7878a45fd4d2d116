package builder

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/cachefile"
	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/pacer"
	"github.com/sells-group/citycache/internal/resilience"
	"github.com/sells-group/citycache/pkg/overpass"
)

// PlaceSearcher lists the populated places inside an administrative area.
type PlaceSearcher interface {
	Places(ctx context.Context, area string) ([]overpass.Place, error)
}

// ExpandSummary counts what an expansion did.
type ExpandSummary struct {
	GroupsTotal    int
	GroupsExpanded int
	GroupsSkipped  int
	GroupsFailed   int
	Added          int
	Records        int
	Duration       time.Duration
}

// Expander tops groups up to a target size with the most important places
// found by place search, keeping existing records.
type Expander struct {
	settings
	store  *cachefile.Store
	search PlaceSearcher
	pacer  *pacer.Pacer
}

// NewExpander returns an expander. Its retry policy defaults to
// resilience.OverpassRetryConfig.
func NewExpander(store *cachefile.Store, search PlaceSearcher, p *pacer.Pacer, opts ...Option) *Expander {
	s := defaultSettings()
	s.retry = resilience.OverpassRetryConfig()
	for _, o := range opts {
		o(&s)
	}
	return &Expander{settings: s, store: store, search: search, pacer: p}
}

// Run expands every group of table holding fewer than target records. The
// area searched is the group qualifier. A group whose search fails or finds
// nothing keeps its records and the run continues.
func (e *Expander) Run(ctx context.Context, table groups.Table, target int) (ExpandSummary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "builder.expand"), zap.String("run_id", e.runID))
	sum := ExpandSummary{GroupsTotal: len(table)}

	cache, err := e.store.Load()
	if err != nil {
		return sum, err
	}

	done := func() ExpandSummary {
		sum.Records = cache.TotalRecords()
		sum.Duration = time.Since(start)
		log.Info("expansion complete",
			zap.Int("groups_total", sum.GroupsTotal),
			zap.Int("groups_expanded", sum.GroupsExpanded),
			zap.Int("groups_skipped", sum.GroupsSkipped),
			zap.Int("groups_failed", sum.GroupsFailed),
			zap.Int("added", sum.Added),
			zap.Int("records", sum.Records),
			zap.Duration("duration", sum.Duration),
		)
		return sum
	}

	for i, g := range table {
		have := cache.Count(g.Key)
		if have >= target {
			sum.GroupsSkipped++
			log.Info("group at target, skipping", zap.String("group", g.Key), zap.Int("records", have))
			continue
		}

		e.pacer.NextGroup()

		glog := log.With(zap.String("group", g.Key), zap.String("area", g.Qualifier))
		glog.Info("querying places", zap.Int("index", i+1), zap.Int("of", len(table)), zap.Int("records", have))

		retry := e.retry
		retry.OnRetry = resilience.RetryLogger("overpass", g.Qualifier)
		places, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]overpass.Place, error) {
			before := e.pacer.Waited()
			if err := e.pacer.Wait(ctx); err != nil {
				return nil, err
			}
			e.metrics.PacerWait.Add((e.pacer.Waited() - before).Seconds())
			return e.search.Places(ctx, g.Qualifier)
		})
		if ctx.Err() != nil {
			return done(), ctx.Err()
		}
		if err != nil {
			sum.GroupsFailed++
			glog.Error("place search failed, keeping existing records", zap.Error(err))
			continue
		}
		if len(places) == 0 {
			glog.Warn("no places found, keeping existing records")
			continue
		}

		added := 0
		for _, p := range overpass.Rank(places) {
			if cache.Count(g.Key) >= target {
				break
			}
			rec := model.EntityRecord{
				Name:    p.Name,
				State:   g.Key,
				Country: g.Country,
				Lat:     round7(p.Lat),
				Lon:     round7(p.Lon),
			}
			if !rec.Valid() {
				continue
			}
			if cache.Add(g.Key, rec) {
				added++
			}
		}
		if added == 0 {
			glog.Info("no new places")
			continue
		}

		sum.GroupsExpanded++
		sum.Added += added
		e.metrics.ExpandedPlaces.Add(float64(added))
		if err := e.store.Save(cache); err != nil {
			return done(), err
		}
		e.metrics.CacheSaves.Inc()
		e.metrics.CacheRecords.Set(float64(cache.TotalRecords()))
		glog.Info("✓ expanded", zap.Int("added", added), zap.Int("records", cache.Count(g.Key)))
	}

	e.metrics.LastSuccess.SetToCurrentTime()
	return done(), nil
}

func round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
