// Package email holds address helpers for user-facing notices and logs.
package email

import (
	"strings"
	"unicode"
)

// FirstName guesses a salutation from the local part of an address:
// "jane.doe@example.com" gives "Jane". It returns "" when nothing usable is found.
func FirstName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return ""
	}
	return capitalize(parts[0])
}

// Mask keeps the first character of the local part and the domain, so logs can
// tell notices apart without carrying the full address.
func Mask(address string) string {
	at := strings.IndexByte(address, '@')
	if at <= 0 {
		return "***"
	}
	runes := []rune(address[:at])
	return string(runes[0]) + "***" + address[at:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
