package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxCrateIDLength is the longest crate name crates.io accepts.
const maxCrateIDLength = 64

// crateIDRegex is the id shape accepted by the page and API routes.
var crateIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateCrateID validates a crate id before it is used in an upstream URL.
func ValidateCrateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPackage, "crate id cannot be empty")
	}
	if len(id) > maxCrateIDLength {
		return New(ErrCodeInvalidPackage, "crate id too long (max %d characters)", maxCrateIDLength)
	}
	if !crateIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPackage, "invalid crate id: %q", id)
	}
	return nil
}

// ValidateVersion rejects version strings that could escape the URL path
// segment they are placed in. Semantic validity is checked by the caller.
func ValidateVersion(version string) error {
	if version == "" {
		return New(ErrCodeInvalidVersion, "version cannot be empty")
	}
	if len(version) > 128 {
		return New(ErrCodeInvalidVersion, "version too long (max 128 characters)")
	}
	for _, r := range version {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidVersion, "version contains invalid characters")
		}
	}
	if strings.ContainsAny(version, "/\\?#%") || strings.Contains(version, "..") {
		return New(ErrCodeInvalidVersion, "version contains invalid characters: %q", version)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
