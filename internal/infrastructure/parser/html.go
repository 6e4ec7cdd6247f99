package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractBody turns a post's rendered HTML body into plain text and returns
// the absolute outbound links it contains.
func ExtractBody(html string) (string, []string) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil
	}

	var (
		links []string
		seen  = map[string]struct{}{}
	)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return
		}
		if _, ok := seen[u.String()]; ok {
			return
		}
		seen[u.String()] = struct{}{}
		links = append(links, u.String())
	})

	var paragraphs []string
	doc.Find("p, li, blockquote, pre, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := collapseSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return collapseSpace(doc.Text()), links
	}

	return strings.Join(paragraphs, "\n"), links
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
