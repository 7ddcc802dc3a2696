package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	// Estonian business registry codes are 8 digits; foreign codes vary
	registryCode = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)
)

// ValidateEndpointURL checks that raw is an absolute http(s) URL
func ValidateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint URL must use http or https: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint URL has no host: %s", raw)
	}
	return nil
}

// ValidateRegistryCode checks the shape of a business registry code
func ValidateRegistryCode(code string) error {
	if !registryCode.MatchString(code) {
		return fmt.Errorf("invalid registry code: %q", code)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
