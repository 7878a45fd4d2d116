package builder

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/citycache/internal/monitoring"
	"github.com/sells-group/citycache/internal/resilience"
)

// SkipMode decides when a group counts as already done.
type SkipMode string

const (
	// SkipPrecise skips a group only when every listed name is cached.
	SkipPrecise SkipMode = "precise"
	// SkipCount skips a group once it holds at least as many records as it
	// has listed names, repeats included, whatever those records are. Names
	// that differ from the list are then never looked up.
	SkipCount SkipMode = "count"
)

// ParseSkipMode validates a skip mode string. Empty means SkipPrecise.
func ParseSkipMode(s string) (SkipMode, error) {
	switch SkipMode(s) {
	case "", SkipPrecise:
		return SkipPrecise, nil
	case SkipCount:
		return SkipCount, nil
	}
	return "", eris.Errorf("builder: unknown skip mode %q", s)
}

// FailureRecorder stores lookups that did not resolve.
type FailureRecorder interface {
	Record(ctx context.Context, runID, groupKey, name string, kind resilience.Kind, cause error) error
	Resolve(ctx context.Context, groupKey, name string) error
}

type settings struct {
	retry    resilience.RetryConfig
	skipMode SkipMode
	ledger   FailureRecorder
	metrics  *monitoring.Metrics
	sinks    []string
	runID    string
}

func defaultSettings() settings {
	return settings{
		retry:    resilience.DefaultRetryConfig(),
		skipMode: SkipPrecise,
		metrics:  monitoring.NewUnregistered(),
		runID:    uuid.New().String(),
	}
}

// Option configures a Builder or Expander.
type Option func(*settings)

// WithRetry sets the retry policy around each external call.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *settings) { s.retry = cfg }
}

// WithSkipMode sets how completed groups are detected.
func WithSkipMode(m SkipMode) Option {
	return func(s *settings) { s.skipMode = m }
}

// WithLedger records failed lookups.
func WithLedger(l FailureRecorder) Option {
	return func(s *settings) { s.ledger = l }
}

// WithMetrics reports progress to m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSinks copies the finished cache file to each path.
func WithSinks(paths ...string) Option {
	return func(s *settings) { s.sinks = append(s.sinks, paths...) }
}

// WithRunID tags ledger entries and log lines with id.
func WithRunID(id string) Option {
	return func(s *settings) {
		if id != "" {
			s.runID = id
		}
	}
}
