// Package version holds build metadata set with -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/benvon/wordtag/internal/version.Version=1.2.0"
var (
	Version = "dev"
	Commit  = "unknown"
)

// Info is the public build description
type Info struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
}

// Get returns the current build info
func Get() Info {
	return Info{Version: Version, Commit: Commit}
}
