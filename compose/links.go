package compose

import (
	"regexp"
	"strings"
)

// privacyFrontends is applied in order; old.reddit.com must collapse to
// reddit.com before the reddit mirror substitution.
var privacyFrontends = [][2]string{
	{"old.reddit.com", "reddit.com"},
	{"reddit.com", "libreddit.kavin.rocks"},
	{"twitter.com", "nitter.net"},
	{"youtube.com", "yewtu.be"},
}

var trackingQueryPattern = regexp.MustCompile(`\?utm.*$`)

// PrivacyFrontend swaps tracking-heavy hosts for their mirror hosts.
func PrivacyFrontend(link string) string {
	for _, sub := range privacyFrontends {
		link = strings.ReplaceAll(link, sub[0], sub[1])
	}
	return link
}

// CleanLink removes "www.", a utm query string and one trailing slash.
func CleanLink(link string) string {
	link = strings.ReplaceAll(link, "www.", "")
	link = trackingQueryPattern.ReplaceAllString(link, "")
	return strings.TrimSuffix(link, "/")
}
