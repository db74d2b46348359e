package common

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/ternarybob/prospect/internal/common.Version=x.y.z"
var Version = "0.3.0"

// GetVersion returns the current application version
func GetVersion() string {
	return Version
}
