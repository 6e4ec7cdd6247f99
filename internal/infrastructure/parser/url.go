package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"FakeNewsScanner/internal/domain"
)

var (
	commentsPath = regexp.MustCompile(`/comments/([a-z0-9]+)`)
	shortPath    = regexp.MustCompile(`^/([a-z0-9]+)/?$`)
)

// ParsePostID extracts the post identifier from a reddit.com or redd.it URL.
func ParsePostID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.ToLower(u.Path)

	switch {
	case host == "redd.it":
		if m := shortPath.FindStringSubmatch(path); m != nil {
			return m[1], nil
		}
	case host == "reddit.com" || strings.HasSuffix(host, ".reddit.com"):
		if m := commentsPath.FindStringSubmatch(path); m != nil {
			return m[1], nil
		}
	}

	return "", fmt.Errorf("%w: not a reddit post url: %s", domain.ErrInvalidInput, raw)
}
