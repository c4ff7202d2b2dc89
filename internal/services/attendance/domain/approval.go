package domain

import (
	"regexp"
	"strings"
)

// ApprovedStatus is the status label that unlocks weekly payback.
const ApprovedStatus = "승인"

var statusDatePrefix = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\s*`)

// LatestStatus returns the last entry of a "/"-delimited status history with
// any leading MM.DD prefix removed. "12.02 승인 / 12.27 이벤짤" yields "이벤짤".
func LatestStatus(history string) string {
	history = strings.TrimSpace(history)
	if history == "" {
		return ""
	}
	parts := strings.Split(history, "/")
	last := strings.TrimSpace(parts[len(parts)-1])
	return strings.TrimSpace(statusDatePrefix.ReplaceAllString(last, ""))
}

// IsApprovedStatus reports whether the latest status in history is approved.
func IsApprovedStatus(history string) bool {
	return LatestStatus(history) == ApprovedStatus
}
