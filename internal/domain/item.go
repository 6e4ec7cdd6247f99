package domain

import "time"

// Item is one crawled post. It is immutable once stored except for Prediction.
// Links are the outbound hrefs found in the body and Domain is the external
// link host, empty for self posts.
type Item struct {
	ID                   string
	Title                string
	Body                 string
	Links                []string
	Author               string
	AuthorCreatedAt      *time.Time
	AuthorKarma          *int
	Community            string
	CommunitySubscribers int
	Domain               string
	URL                  string
	Permalink            string
	Score                int
	UpvoteRatio          float64
	NumComments          int
	Over18               bool
	Spoiler              bool
	Locked               bool
	Flair                string
	CreatedAt            time.Time
	CrawledAt            time.Time
	Prediction           Prediction
}

// HasPrediction reports whether a classification result is attached.
func (i Item) HasPrediction() bool {
	return i.Prediction != nil
}

// Text joins title and body the way classifiers expect it.
func (i Item) Text() string {
	return ClassifierText(i.Title, i.Body)
}

// ClassifierText appends the body only when it carries real content.
func ClassifierText(title, body string) string {
	if len(body) > 20 {
		return title + ". " + body
	}
	return title
}
