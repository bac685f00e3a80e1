// Package phone canonicalizes phone numbers into the digits-only key used to
// identify leads, conversations and directory cache entries.
package phone

import (
	"fmt"
	"strings"
)

// Normalize strips every non-digit character. It is idempotent.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Last4 masks a number for logs, keeping only the trailing four digits.
func Last4(value string) string {
	digits := Normalize(value)
	if len(digits) < 4 {
		return "***"
	}
	return fmt.Sprintf("***-%s", digits[len(digits)-4:])
}
