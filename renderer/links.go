package renderer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns anchor hrefs from rendered HTML in document
// order. Hrefs come back raw; resolution against the final URL and
// normalization are the caller's job. Empty and pure-fragment hrefs are
// skipped, as are non-navigational schemes.
func ExtractLinks(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") ||
			strings.HasPrefix(lower, "data:") {
			return
		}
		links = append(links, href)
	})
	return links
}
