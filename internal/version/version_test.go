package version

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, buildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime
	})
}

func TestReleaseVersion(t *testing.T) {
	withBuildVars(t, "v1.2.3", "0123456789abcdef", "2024-05-01T10:00:00Z")

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	info := GetBuildInfo()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: v1.2.3\n"))
	assert.Contains(t, detailed, "Commit: 0123456789abcdef")
	assert.Contains(t, detailed, "Built: 2024-05-01T10:00:00Z")
}

func TestDevVersion(t *testing.T) {
	withBuildVars(t, "dev", "unknown", "unknown")

	assert.False(t, IsRelease())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
	assert.NotEmpty(t, GetShortVersion())
	assert.NotContains(t, GetDetailedVersion(), "Built:")
}

func TestParseISOTime(t *testing.T) {
	testCases := []struct {
		input string
		zero  bool
	}{
		{"2024-05-01T10:00:00Z", false},
		{"2024-05-01T10:00:00+02:00", false},
		{"2024-05-01T10:00:00", false},
		{"2024-05-01 10:00:00", false},
		{"unknown", true},
		{"", true},
		{"yesterday", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.zero, parseISOTime(tc.input).IsZero())
		})
	}
}
