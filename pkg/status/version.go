package status

import (
	"regexp"
	"strings"
)

var otaTargetRe = regexp.MustCompile(`fw(.*?)\.bin`)

// VersionLabel renders a device's firmware field for display. A value of
// the form "1.4-RM(...)" is an installed version; an http(s) URL means an
// OTA download is in flight and the target version is embedded in the
// firmware file name.
func VersionLabel(version string) string {
	if version == "" {
		return ""
	}

	if strings.HasPrefix(version, "http") {
		if m := otaTargetRe.FindStringSubmatch(version); m != nil {
			return "Updating to " + m[1]
		}

		return "Updating"
	}

	if idx := strings.Index(version, "-RM("); idx >= 0 {
		return "V" + version[:idx]
	}

	return version
}
