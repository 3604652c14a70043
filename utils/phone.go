package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeNumber validates a phone number and returns it in the bare-digit
// form WhatsApp pairing expects (country code + subscriber number, no plus).
func NormalizeNumber(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	if !strings.HasPrefix(trimmed, "+") {
		trimmed = "+" + trimmed
	}

	parsed, err := phonenumbers.Parse(trimmed, "")
	if err != nil {
		return "", fmt.Errorf("parsing phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("%q is not a valid phone number", raw)
	}

	return strings.TrimPrefix(phonenumbers.Format(parsed, phonenumbers.E164), "+"), nil
}

// RegionCode returns the ISO region for a normalized number, "??" when it
// cannot be determined.
func RegionCode(number string) string {
	parsed, err := phonenumbers.Parse("+"+number, "")
	if err != nil {
		return "??"
	}
	if rc := phonenumbers.GetRegionCodeForNumber(parsed); rc != "" {
		return rc
	}
	return "??"
}
