package types

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhoneNumber = errors.New("phone number is not a valid Kenyan MSISDN")

// canonical form: 254 followed by a 9-digit subscriber number (7xx or 1xx).
var msisdnPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizeMSISDN converts the local formats callers type in (07…, +2547…,
// 2547…, bare 7…/1…) to the 12-digit 254-prefixed form the gateway requires.
func NormalizeMSISDN(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, "254"):
		// already country-prefixed
	case strings.HasPrefix(s, "0") && len(s) == 10:
		s = "254" + s[1:]
	case len(s) == 9 && (s[0] == '7' || s[0] == '1'):
		s = "254" + s
	}

	if !msisdnPattern.MatchString(s) {
		return "", ErrInvalidPhoneNumber
	}
	return s, nil
}
