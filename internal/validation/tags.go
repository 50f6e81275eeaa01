package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxTags is the number of tags a forum or post may carry.
const MaxTags = 10

var tagRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,29}$`)

// NormalizeTags lowercases, trims and de-duplicates tags, preserving order.
// Empty entries are dropped.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if !tagRegex.MatchString(tag) {
			return nil, fmt.Errorf("tag %q must be 1-30 characters of lowercase letters, numbers and hyphens", tag)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("at most %d tags are allowed", MaxTags)
	}
	return out, nil
}
