package extract

import (
	"regexp"
	"strings"

	"github.com/robertmeta/rss-toot/model"
)

// NitterMediaHost serves Twitter CDN images without tracking.
const NitterMediaHost = "https://nitter.unixfox.eu/pic/media%2F"

var (
	twitterMediaPattern = regexp.MustCompile(`https://pbs\.twimg\.com/[^ \x{00a0}"]*`)
	twitterSizePattern  = regexp.MustCompile(`&amp;name=[^&]*`)
	redditMediaPattern  = regexp.MustCompile(`https://i\.redd\.it/[a-zA-Z0-9]*\.(gif|jpg|mp4|png|webp)`)
)

// SummaryMedia finds image URLs embedded in raw summary markup: Twitter
// CDN images, rewritten to the nitter media host, then i.redd.it images.
func SummaryMedia(summary string) []model.MediaCandidate {
	var media []model.MediaCandidate

	for _, u := range twitterMediaPattern.FindAllString(summary, -1) {
		media = append(media, model.MediaCandidate{URL: NitterMediaURL(u)})
	}
	for _, u := range redditMediaPattern.FindAllString(summary, -1) {
		media = append(media, model.MediaCandidate{URL: u})
	}

	return media
}

// NitterMediaURL rewrites a pbs.twimg.com media URL to the nitter proxy,
// turning "?format=jpg" into an extension and dropping the size selector.
func NitterMediaURL(twitterURL string) string {
	u := strings.Replace(twitterURL, "https://pbs.twimg.com/media/", NitterMediaHost, 1)
	u = strings.Replace(u, "?format=", ".", 1)
	return twitterSizePattern.ReplaceAllString(u, "")
}
