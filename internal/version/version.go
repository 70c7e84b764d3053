package version

import "runtime"

// These variables are set at build time using ldflags
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"
	// Commit is the git commit hash
	Commit = "unknown"
	// BuildDate is the build timestamp
	BuildDate = "unknown"
)

// Info is the build description printed by `alertbeacon version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats the build information on one line.
func (i Info) String() string {
	if i.Version == "dev" {
		return "dev (commit: " + i.Commit + ", " + i.GoVersion + ")"
	}
	return i.Version + " (commit: " + i.Commit + ", built " + i.BuildDate + ", " + i.GoVersion + ")"
}
