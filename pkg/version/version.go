// Package version exposes build metadata injected via -ldflags.
package version

// Set at build time with:
//
//	go build -ldflags "-X github.com/rshade/greenledger/pkg/version.version=v1.2.3"
var (
	version = "dev"     //nolint:gochecknoglobals // Injected by the linker.
	commit  = "unknown" //nolint:gochecknoglobals // Injected by the linker.
)

// GetVersion returns the semantic version of the binary.
func GetVersion() string {
	return version
}

// GetCommit returns the git commit the binary was built from.
func GetCommit() string {
	return commit
}
