package utils

import (
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^[0-9]+(-[0-9]+)*$`)

// ValidPhone accepts digits optionally grouped by single hyphens, 9 to 11 digits in total.
func ValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if !phoneRegex.MatchString(phone) {
		return false
	}
	digits := len(DigitsOnly(phone))
	return digits >= 9 && digits <= 11
}

func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
