//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"build", "expand", "distribute", "failures", "status", "lookup", "nearest", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "citycache", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBuildCommand_Flags(t *testing.T) {
	for _, name := range []string{"groups", "cache", "country", "only", "min-delay", "group-pause", "skip-mode", "sink"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(name), "build command should have --%s", name)
	}
}

func TestExpandCommand_TargetRequired(t *testing.T) {
	flag := expandCmd.Flags().Lookup("target")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestFailuresCommand_Flags(t *testing.T) {
	flag := failuresCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
	assert.NotNil(t, failuresCmd.Flags().Lookup("clear"))
}

func TestNearestCommand_Flags(t *testing.T) {
	flag := nearestCmd.Flags().Lookup("max-km")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "geojson", flag.DefValue)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"Chile", "Peru"}, splitAndTrim(" Chile, ,Peru ,"))
	assert.Empty(t, splitAndTrim(""))
}
