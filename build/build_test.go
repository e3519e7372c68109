package build

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	bi := &debug.BuildInfo{
		GoVersion: "go1.25.0",
		Main:      debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"injected", "v2.0.0", "v2.0.0 (0123456789ab-dirty, 2026-10-01T12:00:00Z, go1.25.0)"},
		{"module version", "dev", "v1.2.3 (0123456789ab-dirty, 2026-10-01T12:00:00Z, go1.25.0)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, fromBuildInfo(tt.version, bi).String())
		})
	}
}

func TestInfoStringWithoutDetails(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dev", Info{}.String())
	assert.Equal(t, "v1", Info{Version: "v1"}.String())
	assert.Equal(t, "v1 (abc)", Info{Version: "v1", GitCommit: "abc"}.String())
}

func TestDevelModuleVersionIgnored(t *testing.T) {
	t.Parallel()

	info := fromBuildInfo("dev", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", info.Version)
}
