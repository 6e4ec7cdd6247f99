package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
	"FakeNewsScanner/internal/scanner"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	maxRedditPage   = 100
	deletedAuthor   = "[deleted]"
	redditScannerID = "reddit"
)

// RedditOptions tunes the listing scanner.
type RedditOptions struct {
	BaseURL      string
	UserAgent    string
	PageSize     int
	RequestDelay time.Duration
	Retry        retry.Policy
}

// RedditScanner pages through a community's newest-first listing.
type RedditScanner struct {
	client    *http.Client
	baseURL   string
	userAgent string
	pageSize  int
	limiter   *rate.Limiter
	retry     retry.Policy
	logger    *slog.Logger
}

var (
	_ scanner.Scanner  = (*RedditScanner)(nil)
	_ ports.ItemLookup = (*RedditScanner)(nil)
)

// NewRedditScanner wires an HTTP client; pageSize defaults to 100.
func NewRedditScanner(client *http.Client, opts RedditOptions, logger *slog.Logger) *RedditScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = redditBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxRedditPage {
		pageSize = maxRedditPage
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "FakeNewsScanner/1.0"
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &RedditScanner{
		client:    client,
		baseURL:   base,
		userAgent: userAgent,
		pageSize:  pageSize,
		limiter:   rate.NewLimiter(limit, 1),
		retry:     opts.Retry,
		logger:    logger,
	}
}

// Name identifies the strategy inside the registry.
func (r *RedditScanner) Name() string {
	return redditScannerID
}

// Scan walks /r/{community}/new until the page that crosses the window start
// or until Limit items were yielded. Posts newer than the window end are
// skipped. Items from the crossing page are yielded
// as-is; rejecting stale ones is the caller's job.
func (r *RedditScanner) Scan(ctx context.Context, req scanner.Request) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		if strings.TrimSpace(req.Community) == "" {
			yield(domain.Item{}, fmt.Errorf("%w: community is required", domain.ErrFetchFailure))
			return
		}

		var (
			after    string
			produced int
			pages    int
		)
		for {
			pageURL, err := buildListingURL(r.baseURL, req.Community, after, r.pageSize)
			if err != nil {
				yield(domain.Item{}, fmt.Errorf("%w: %w", domain.ErrFetchFailure, err))
				return
			}

			var page listing
			if err := r.getJSON(ctx, pageURL, &page); err != nil {
				yield(domain.Item{}, fmt.Errorf("%w: r/%s: %w", domain.ErrFetchFailure, req.Community, err))
				return
			}
			pages++

			crossed := false
			for _, child := range page.Data.Children {
				item, ok := r.toItem(child.Data)
				if !ok || req.Beyond(item.CreatedAt) {
					continue
				}
				if req.Crossed(item.CreatedAt) {
					crossed = true
				}
				if !yield(item, nil) {
					return
				}
				produced++
				if req.Capped(produced) {
					r.logger.Debug("listing cap reached", "community", req.Community, "pages", pages, "items", produced)
					return
				}
			}

			if crossed || page.Data.After == "" || len(page.Data.Children) == 0 {
				r.logger.Debug("listing exhausted", "community", req.Community, "pages", pages, "items", produced, "crossed", crossed)
				return
			}
			after = page.Data.After
		}
	}
}

// PostID extracts the post identifier from a platform URL.
func (r *RedditScanner) PostID(rawURL string) (string, error) {
	return ParsePostID(rawURL)
}

// FetchItem loads one post and, when available, its author's account data.
func (r *RedditScanner) FetchItem(ctx context.Context, id string) (domain.Item, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "t3_")
	if id == "" {
		return domain.Item{}, fmt.Errorf("%w: empty post id", domain.ErrInvalidInput)
	}

	var thread []listing
	if err := r.getJSON(ctx, r.baseURL+"/comments/"+url.PathEscape(id)+".json?raw_json=1", &thread); err != nil {
		var status *retry.StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			return domain.Item{}, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
		}
		return domain.Item{}, fmt.Errorf("%w: post %s: %w", domain.ErrFetchFailure, id, err)
	}
	if len(thread) == 0 || len(thread[0].Data.Children) == 0 {
		return domain.Item{}, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	item, ok := r.toItem(thread[0].Data.Children[0].Data)
	if !ok {
		return domain.Item{}, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	if item.Author != "" && item.Author != deletedAuthor {
		if err := r.attachAuthor(ctx, &item); err != nil {
			r.logger.Debug("author lookup failed", "author", item.Author, "error", err)
		}
	}

	return item, nil
}

func (r *RedditScanner) attachAuthor(ctx context.Context, item *domain.Item) error {
	var about struct {
		Data struct {
			CreatedUTC   float64 `json:"created_utc"`
			LinkKarma    int     `json:"link_karma"`
			CommentKarma int     `json:"comment_karma"`
		} `json:"data"`
	}
	if err := r.getJSON(ctx, r.baseURL+"/user/"+url.PathEscape(item.Author)+"/about.json", &about); err != nil {
		return err
	}

	created := time.Unix(int64(about.Data.CreatedUTC), 0).UTC()
	karma := about.Data.LinkKarma + about.Data.CommentKarma
	item.AuthorCreatedAt = &created
	item.AuthorKarma = &karma
	return nil
}

func (r *RedditScanner) getJSON(ctx context.Context, target string, v any) error {
	_, err := retry.Do(ctx, r.retry, func(ctx context.Context) (struct{}, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return struct{}{}, retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", r.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("request listing: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return struct{}{}, &retry.StatusError{
				Code:       resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(body)),
				RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return struct{}{}, nil
	})
	return err
}

func (r *RedditScanner) toItem(p post) (domain.Item, bool) {
	if p.ID == "" || strings.TrimSpace(p.Title) == "" {
		return domain.Item{}, false
	}

	body, links := ExtractBody(p.SelftextHTML)
	if body == "" {
		body = strings.TrimSpace(p.Selftext)
	}

	permalink := p.Permalink
	if permalink != "" && !strings.HasPrefix(permalink, "http") {
		permalink = r.baseURL + permalink
	}

	return domain.Item{
		ID:                   p.ID,
		Title:                strings.TrimSpace(p.Title),
		Body:                 body,
		Links:                links,
		Author:               p.Author,
		Community:            p.Subreddit,
		CommunitySubscribers: p.SubredditSubscribers,
		Domain:               linkDomain(p),
		URL:                  p.URL,
		Permalink:            permalink,
		Score:                p.Score,
		UpvoteRatio:          p.UpvoteRatio,
		NumComments:          p.NumComments,
		Over18:               p.Over18,
		Spoiler:              p.Spoiler,
		Locked:               p.Locked,
		Flair:                p.LinkFlairText,
		CreatedAt:            time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}, true
}

func linkDomain(p post) string {
	d := strings.ToLower(strings.TrimSpace(p.Domain))
	if p.IsSelf || d == "" || strings.HasPrefix(d, "self.") {
		return ""
	}
	return strings.TrimPrefix(d, "www.")
}

func buildListingURL(base, community, after string, limit int) (string, error) {
	parsed, err := url.Parse(base + "/r/" + url.PathEscape(community) + "/new.json")
	if err != nil {
		return "", fmt.Errorf("invalid listing url for %s: %w", community, err)
	}

	query := parsed.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")
	if after != "" {
		query.Set("after", after)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data post   `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Selftext             string  `json:"selftext"`
	SelftextHTML         string  `json:"selftext_html"`
	Author               string  `json:"author"`
	Subreddit            string  `json:"subreddit"`
	SubredditSubscribers int     `json:"subreddit_subscribers"`
	Domain               string  `json:"domain"`
	URL                  string  `json:"url"`
	Permalink            string  `json:"permalink"`
	Score                int     `json:"score"`
	UpvoteRatio          float64 `json:"upvote_ratio"`
	NumComments          int     `json:"num_comments"`
	Over18               bool    `json:"over_18"`
	Spoiler              bool    `json:"spoiler"`
	Locked               bool    `json:"locked"`
	IsSelf               bool    `json:"is_self"`
	LinkFlairText        string  `json:"link_flair_text"`
	CreatedUTC           float64 `json:"created_utc"`
}
