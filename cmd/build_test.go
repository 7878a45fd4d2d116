//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citycache/internal/builder"
	"github.com/sells-group/citycache/internal/config"
)

// newBuildFlagsCmd creates a fresh cobra.Command with the same flags as
// buildCmd, so tests don't share mutable flag state.
func newBuildFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test-build"}
	cmd.Flags().String("groups", "", "")
	cmd.Flags().String("cache", "", "")
	cmd.Flags().String("country", "", "")
	cmd.Flags().String("only", "", "")
	cmd.Flags().Duration("min-delay", 0, "")
	cmd.Flags().Duration("group-pause", 0, "")
	cmd.Flags().String("skip-mode", "", "")
	cmd.Flags().StringSlice("sink", nil, "")
	return cmd
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Cache.Path = "city-coordinates.json"
	c.Cache.Sinks = []string{"ios/city-coordinates.json"}
	c.Throttle.MinDelay = 1100 * time.Millisecond
	c.Throttle.GroupPause = 5 * time.Second
	c.Retry.MaxAttempts = 3
	c.Retry.InitialBackoff = 2 * time.Second
	c.Retry.MaxBackoff = time.Minute
	c.Retry.Multiplier = 2
	c.Builder.SkipMode = "precise"
	c.Overpass.AdminLevel = 4
	return c
}

func TestParseBuildOpts_Defaults(t *testing.T) {
	opts, err := parseBuildOpts(newBuildFlagsCmd(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "city-coordinates.json", opts.CachePath)
	assert.Equal(t, 1100*time.Millisecond, opts.MinDelay)
	assert.Equal(t, 5*time.Second, opts.GroupPause)
	assert.Equal(t, builder.SkipPrecise, opts.SkipMode)
	assert.Equal(t, []string{"ios/city-coordinates.json"}, opts.Sinks)
}

func TestParseBuildOpts_FlagsOverrideConfig(t *testing.T) {
	cmd := newBuildFlagsCmd()
	require.NoError(t, cmd.Flags().Set("cache", "other.json"))
	require.NoError(t, cmd.Flags().Set("min-delay", "2s"))
	require.NoError(t, cmd.Flags().Set("group-pause", "0s"))
	require.NoError(t, cmd.Flags().Set("skip-mode", "count"))
	require.NoError(t, cmd.Flags().Set("sink", "a.json"))
	require.NoError(t, cmd.Flags().Set("sink", "b.json"))

	opts, err := parseBuildOpts(cmd, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "other.json", opts.CachePath)
	assert.Equal(t, 2*time.Second, opts.MinDelay)
	assert.Equal(t, time.Duration(0), opts.GroupPause)
	assert.Equal(t, builder.SkipCount, opts.SkipMode)
	assert.Equal(t, []string{"a.json", "b.json"}, opts.Sinks)
}

func TestParseBuildOpts_InvalidSkipMode(t *testing.T) {
	cmd := newBuildFlagsCmd()
	require.NoError(t, cmd.Flags().Set("skip-mode", "fuzzy"))

	_, err := parseBuildOpts(cmd, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown skip mode")
}

func TestParseBuildOpts_NegativeDelay(t *testing.T) {
	cmd := newBuildFlagsCmd()
	require.NoError(t, cmd.Flags().Set("min-delay", "-1s"))

	_, err := parseBuildOpts(cmd, testConfig())
	assert.Error(t, err)
}

func TestRetryConfig(t *testing.T) {
	c := testConfig()
	c.Retry.MaxAttempts = 5
	c.Retry.InitialBackoff = 0

	rc := retryConfig(c)
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 2*time.Second, rc.InitialBackoff)
	assert.Equal(t, time.Minute, rc.MaxBackoff)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`groups:
  - key: Texas
    names: [Austin, Dallas]
  - key: Ohio
    names: [Akron]
`), 0o644))

	cmd := newBuildFlagsCmd()
	require.NoError(t, cmd.Flags().Set("groups", path))
	require.NoError(t, cmd.Flags().Set("country", "United States"))
	require.NoError(t, cmd.Flags().Set("only", "Ohio"))

	table, err := loadTable(cmd, testConfig())
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "Ohio", table[0].Key)
	assert.Equal(t, "United States", table[0].Country)
	assert.Equal(t, "us", table[0].CountryCode)
}

func TestLoadTable_FallsBackToConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Chile": ["Talca"]}`), 0o644))

	c := testConfig()
	c.Groups.Path = path

	table, err := loadTable(newBuildFlagsCmd(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chile"}, table.Keys())
	assert.Equal(t, "cl", table[0].CountryCode)
}

func TestLoadTable_Missing(t *testing.T) {
	_, err := loadTable(newBuildFlagsCmd(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group table is required")
}
