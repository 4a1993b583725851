package helpers

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s, collapses every run of non-alphanumeric characters
// into a single hyphen and trims leading and trailing hyphens.
func Slugify(s string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}
