package cdcacm

import "fmt"

const (
	versionMajor = 1
	versionMinor = 0
	versionMicro = 0
)

// Snapshot identifies the exact source revision of a build. It is meant to
// be stamped at link time:
//
//	-ldflags "-X github.com/usblink/cdcacm/pkg/cdcacm.Snapshot=$(git describe --always)"
var Snapshot = "unknown"

// Info describes the library build.
type Info struct {
	Major    int
	Minor    int
	Micro    int
	Version  string
	Snapshot string
}

// Version returns the library build information.
func Version() Info {
	return Info{
		Major:    versionMajor,
		Minor:    versionMinor,
		Micro:    versionMicro,
		Version:  fmt.Sprintf("%d.%d.%d", versionMajor, versionMinor, versionMicro),
		Snapshot: Snapshot,
	}
}
