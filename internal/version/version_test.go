package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stubBuild(t *testing.T, info *debug.BuildInfo, version, commit, built string) {
	t.Helper()
	oldRead, oldVersion, oldCommit, oldTime := readBuildInfo, Version, GitCommit, BuildTime
	t.Cleanup(func() {
		readBuildInfo, Version, GitCommit, BuildTime = oldRead, oldVersion, oldCommit, oldTime
	})
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	Version, GitCommit, BuildTime = version, commit, built
}

func checkout(rev string, modified bool) *debug.BuildInfo {
	dirty := "false"
	if modified {
		dirty = "true"
	}
	return &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/remixure/remixure", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/evanw/esbuild", Version: "v0.24.2"},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: rev},
			{Key: "vcs.modified", Value: dirty},
		},
	}
}

func TestReleaseBuild(t *testing.T) {
	stubBuild(t, checkout("0123456789abcdef", false), "v1.4.0", "fedcba9876543210", "2026-03-01T10:00:00Z")

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "fedcba9876543210", GetGitCommit())
	assert.Equal(t, "v1.4.0 (fedcba9)", GetShortVersion())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Equal(t, "v0.24.2", info.Esbuild)
	assert.False(t, info.Dirty)
}

func TestCheckoutBuild(t *testing.T) {
	stubBuild(t, checkout("0123456789abcdef", true), "dev", "unknown", "unknown")

	assert.Equal(t, "dev-0123456", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "dev-0123456", GetShortVersion())
	assert.True(t, IsDirty())

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "Version: dev-0123456")
	assert.Contains(t, detailed, "Commit: 0123456789abcdef (dirty)")
	assert.Contains(t, detailed, "esbuild: v0.24.2")
	assert.NotContains(t, detailed, "Built:")
}

func TestWithoutBuildInfo(t *testing.T) {
	stubBuild(t, nil, "dev", "unknown", "unknown")

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "dev", GetShortVersion())
	assert.Equal(t, "unknown", EsbuildVersion())
	assert.False(t, IsDirty())
}

func TestParseBuildTime(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Time
	}{
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"unknown", time.Time{}},
		{"", time.Time{}},
		{"yesterday", time.Time{}},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			assert.True(t, tc.expected.Equal(parseBuildTime(tc.value)))
		})
	}
}
