package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGetInfoPrefersLdflags(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123def456", "2024-01-01T12:00:00Z"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	info := GetInfo()

	if info.Version != "1.0.0" {
		t.Errorf("GetInfo().Version = %v, want 1.0.0", info.Version)
	}
	if info.Commit != "abc123def456" {
		t.Errorf("GetInfo().Commit = %v, want abc123def456", info.Commit)
	}
	if info.Date != "2024-01-01T12:00:00Z" {
		t.Errorf("GetInfo().Date = %v, want 2024-01-01T12:00:00Z", info.Date)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GetInfo().GoVersion = %v, want %v", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("GetInfo().Platform = %v, want %v", info.Platform, want)
	}
}

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/felixgeelhaar/foundry", Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2025-05-01T10:00:00Z"},
		},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			name: "dev build takes module and vcs data",
			in:   Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			want: Info{Version: "v0.3.1", Commit: "0123456789abcdef", Date: "2025-05-01T10:00:00Z"},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "1.2.0", Commit: "feedbeef", Date: "2025-01-01"},
			want: Info{Version: "1.2.0", Commit: "feedbeef", Date: "2025-01-01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			fillFromBuildInfo(&got, bi)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFillFromBuildInfoIgnoresDevelModule(t *testing.T) {
	info := Info{Version: "dev", Commit: "unknown", Date: "unknown"}
	fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want []string
	}{
		{
			name: "full version info",
			info: Info{
				Version:   "1.0.0",
				Commit:    "abc123def456",
				Date:      "2024-01-01T12:00:00Z",
				GoVersion: "go1.22.0",
				Platform:  "linux/amd64",
			},
			want: []string{"foundry 1.0.0", "(abc123de)", "built 2024-01-01T12:00:00Z", "with go1.22.0", "for linux/amd64"},
		},
		{
			name: "short commit hash",
			info: Info{Version: "1.0.0", Commit: "abc123", Date: "2024-01-01", GoVersion: "go1.22.0", Platform: "darwin/arm64"},
			want: []string{"(abc123)", "darwin/arm64"},
		},
		{
			name: "dev version",
			info: Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			want: []string{"foundry dev", "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			for _, substr := range tt.want {
				if !strings.Contains(got, substr) {
					t.Errorf("Info.String() = %v, missing substring %v", got, substr)
				}
			}
		})
	}
}

func TestInfoShort(t *testing.T) {
	for _, v := range []string{"1.0.0", "dev", "1.0.0-rc1"} {
		if got := (Info{Version: v}).Short(); got != v {
			t.Errorf("Info.Short() = %v, want %v", got, v)
		}
	}
}
