package versioning

import (
	"fmt"
	"regexp"
	"strconv"
)

// APIVersion represents a semantic version for the API
type APIVersion struct {
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
}

// String returns the version as a string (e.g., "1.2.3" or "1.2.3-beta")
func (v APIVersion) String() string {
	version := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		version += "-" + v.Prerelease
	}
	return version
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other
func (v APIVersion) Compare(other APIVersion) int {
	for _, pair := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}

	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1 // release sorts after its prereleases
	case other.Prerelease == "":
		return -1
	case v.Prerelease < other.Prerelease:
		return -1
	default:
		return 1
	}
}

var (
	V1_0_0 = APIVersion{Major: 1, Minor: 0, Patch: 0}
	V1_1_0 = APIVersion{Major: 1, Minor: 1, Patch: 0}

	// CurrentVersion is the version this build serves. 1.1 added the
	// dial outcome endpoint.
	CurrentVersion = V1_1_0

	// MinimumSupportedVersion is the oldest version clients may request
	MinimumSupportedVersion = V1_0_0
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([a-zA-Z0-9\-\.]+))?$`)

// ParseVersion parses a version string into an APIVersion
func ParseVersion(versionStr string) (APIVersion, error) {
	matches := versionPattern.FindStringSubmatch(versionStr)
	if matches == nil {
		return APIVersion{}, fmt.Errorf("invalid version format: %s", versionStr)
	}

	parts := make([]int, 3)
	for i := range parts {
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return APIVersion{}, fmt.Errorf("invalid version component %q: %w", matches[i+1], err)
		}
		parts[i] = n
	}
	return APIVersion{Major: parts[0], Minor: parts[1], Patch: parts[2], Prerelease: matches[4]}, nil
}

// IsVersionSupported reports whether a request for version can be served
func IsVersionSupported(version APIVersion) bool {
	return version.Compare(MinimumSupportedVersion) >= 0 && version.Major <= CurrentVersion.Major
}

// GetVersionRange returns the supported version range as a string
func GetVersionRange() string {
	return fmt.Sprintf("%s - %s", MinimumSupportedVersion.String(), CurrentVersion.String())
}
