package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeContent strips unsafe HTML from user-authored bodies while keeping
// the markup a post or reply may legitimately contain.
func SanitizeContent(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}

// SanitizeText removes all markup from short fields such as titles and bios.
// The result is plain text, so entities are decoded again.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}
