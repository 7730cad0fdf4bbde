// Package version implements pool software and protocol versioning.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Version is a protocol or a software version.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// ToU64 returns the version as platform-dependent uint64.
func (v Version) ToU64() uint64 {
	return (uint64(v.Major) << 32) | (uint64(v.Minor) << 16) | (uint64(v.Patch))
}

// FromU64 returns the version from platform-dependent uint64.
func FromU64(v uint64) Version {
	return Version{
		Major: uint16((v >> 32) & 0xffff),
		Minor: uint16((v >> 16) & 0xffff),
		Patch: uint16(v & 0xffff),
	}
}

// String returns the version as a string.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MajorMinor extracts major and minor segments of the Version only.
func (v Version) MajorMinor() Version {
	return Version{
		Major: v.Major,
		Minor: v.Minor,
		Patch: 0,
	}
}

var (
	// SoftwareVersion represents the software version, overridden at link
	// time with -X.
	SoftwareVersion = "3.5.0-dev"

	// LedgerProtocol versions the ledger state layout and the query
	// service wire format.
	//
	// NOTE: Any change in the major or minor versions are considered
	//       breaking changes for the protocol.
	LedgerProtocol = Version{Major: 3, Minor: 5, Patch: 0}

	// Toolchain is the version of the Go compiler/standard library.
	Toolchain = MustFromString(strings.TrimPrefix(runtime.Version(), "go"))
)

// Versions contains all known protocol versions.
var Versions = struct {
	LedgerProtocol Version
	Toolchain      Version
}{
	LedgerProtocol,
	Toolchain,
}

// FromString parses a dotted version string, missing minor and patch
// segments default to zero.
func FromString(s string) (Version, error) {
	// Drop pre-release and build suffixes.
	if i := strings.IndexAny(s, "-+ "); i >= 0 {
		s = s[:i]
	}

	split := strings.Split(s, ".")
	if len(split) == 0 || len(split) > 3 {
		return Version{}, fmt.Errorf("version: invalid version string: '%s'", s)
	}

	var semVers [3]uint16
	for i, v := range split {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("version: failed to parse segment '%s': %w", v, err)
		}
		semVers[i] = uint16(n)
	}

	return Version{Major: semVers[0], Minor: semVers[1], Patch: semVers[2]}, nil
}

// MustFromString parses a version string and panics on failure.
func MustFromString(s string) Version {
	v, err := FromString(s)
	if err != nil {
		// Development toolchains report a non-numeric version.
		return Version{}
	}
	return v
}
