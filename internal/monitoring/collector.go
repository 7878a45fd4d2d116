package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/resilience"
)

// GroupStatus is the cache state of one group.
type GroupStatus struct {
	Key     string `json:"key"`
	Records int    `json:"records"`
	// Pending is the number of table names not yet cached. It is -1 when no
	// table was supplied.
	Pending int `json:"pending"`
}

// Snapshot is a point-in-time view of a cache build.
type Snapshot struct {
	Groups       []GroupStatus           `json:"groups"`
	GroupCount   int                     `json:"group_count"`
	RecordCount  int                     `json:"record_count"`
	PendingCount int                     `json:"pending_count"`
	Failures     map[resilience.Kind]int `json:"failures,omitempty"`
	CollectedAt  time.Time               `json:"collected_at"`
}

// FailureCounter abstracts the ledger query the collector needs.
type FailureCounter interface {
	Counts(ctx context.Context) (map[resilience.Kind]int, error)
}

// Collector summarizes a cache against its group table and failure ledger.
type Collector struct {
	failures FailureCounter
}

// NewCollector returns a collector. failures may be nil.
func NewCollector(failures FailureCounter) *Collector {
	return &Collector{failures: failures}
}

// Collect builds a snapshot. Groups appear in cache order, followed by table
// groups that have no cache entry yet. A nil table skips pending counts.
func (c *Collector) Collect(ctx context.Context, cache *model.Cache, table groups.Table) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: time.Now().UTC()}

	pending := make(map[string]int, len(table))
	for _, g := range table {
		seen := make(map[string]struct{}, len(g.Names))
		for _, n := range g.Names {
			k := model.NormalizeName(n)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if !cache.Contains(g.Key, n) {
				pending[g.Key]++
			}
		}
		if _, ok := pending[g.Key]; !ok {
			pending[g.Key] = 0
		}
	}

	add := func(key string) {
		st := GroupStatus{Key: key, Records: cache.Count(key), Pending: -1}
		if table != nil {
			st.Pending = pending[key]
			snap.PendingCount += st.Pending
		}
		snap.Groups = append(snap.Groups, st)
		snap.RecordCount += st.Records
	}
	for _, key := range cache.Keys() {
		add(key)
	}
	for _, g := range table {
		if !cache.Has(g.Key) {
			add(g.Key)
		}
	}
	snap.GroupCount = len(snap.Groups)

	if c.failures != nil {
		counts, err := c.failures.Counts(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: count failures")
		}
		snap.Failures = counts
	}
	return snap, nil
}
