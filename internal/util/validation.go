package util

import (
	"regexp"
)

var pairingCodeRegex = regexp.MustCompile(`^\d{6}$`)

// IsValidPairingCode reports whether code is exactly six ASCII digits.
func IsValidPairingCode(code string) bool {
	return pairingCodeRegex.MatchString(code)
}
