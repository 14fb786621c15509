package compose

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength is the instance's status length limit in characters.
const MaxLength = 500

var hashRunPattern = regexp.MustCompile(`##+`)

// FilterTags merges the space separated tag lists and drops hashtags that
// body already contains or that were already kept, compared
// case-insensitively as substrings. Tokens without a hash marker are
// always kept.
func FilterTags(body string, tagLists ...string) []string {
	lowerBody := strings.ToLower(body)

	var kept []string
	var keptLower strings.Builder
	for _, tag := range strings.Fields(strings.Join(tagLists, " ")) {
		lower := strings.ToLower(tag)
		if strings.Contains(tag, "#") &&
			(strings.Contains(lowerBody, lower) || strings.Contains(keptLower.String(), lower)) {
			continue
		}
		kept = append(kept, tag)
		keptLower.WriteString(" " + lower)
	}
	return kept
}

// Fit contains body within MaxLength: over-long Romanian bodies get "și"
// shortened to "&", hash runs collapse to one marker, and the result is cut
// at MaxLength characters.
func Fit(body string) string {
	if utf8.RuneCountInString(body) > MaxLength {
		body = strings.ReplaceAll(body, " și ", " & ")
	}
	body = hashRunPattern.ReplaceAllString(body, "#")
	return truncate(body, MaxLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
