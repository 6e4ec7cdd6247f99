package classifier

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"FakeNewsScanner/internal/domain"
)

const (
	IndicatorClickbait        = "CLICKBAIT_LANGUAGE"
	IndicatorAbsolutist       = "ABSOLUTIST_LANGUAGE"
	IndicatorSensational      = "SENSATIONAL_LANGUAGE"
	IndicatorExcessiveCaps    = "EXCESSIVE_CAPS"
	IndicatorPunctuation      = "EXCESSIVE_PUNCTUATION"
	IndicatorInsufficient     = "INSUFFICIENT_CONTENT"
	IndicatorNoAttribution    = "MISSING_ATTRIBUTION"
	IndicatorSuspiciousDomain = "SUSPICIOUS_DOMAIN"
	IndicatorLowCredibility   = "LOW_CREDIBILITY_SOURCE"
	IndicatorNewAccount       = "NEW_ACCOUNT"
)

var (
	clickbaitPhrases = []string{
		"shocking", "unbelievable", "you won't believe", "breaking",
		"urgent", "exclusive", "leaked", "secret", "hidden truth",
		"they don't want you to know", "must see", "incredible",
	}
	sensationalPhrases = []string{
		"must read", "share before deleted", "msm won't tell you",
		"wake up", "open your eyes", "the truth about",
	}
	absolutistWords = []string{
		"always", "never", "everyone", "nobody", "100%", "guaranteed",
		"proven", "undeniable", "completely", "totally",
	}
	attributionPhrases = []string{
		"according to", "reported by", "reports", "said in a statement",
		"told reporters", "source:", "sources:", "via ", "cited",
	}
	suspiciousDomainMarkers = []string{"fake", "hoax", "satire", "satirical"}
)

// Signals is the item context the heuristics read.
type Signals struct {
	Title           string
	Body            string
	HasBody         bool
	Domain          string
	Links           []string
	AuthorCreatedAt *time.Time
	// SourceScore is the domain credibility score when known.
	SourceScore *float64
	Now         time.Time
}

// SignalsFromItem lifts the heuristic inputs out of a stored item.
func SignalsFromItem(item domain.Item, now time.Time) Signals {
	return Signals{
		Title:           item.Title,
		Body:            item.Body,
		HasBody:         item.Body != "",
		Domain:          item.Domain,
		Links:           item.Links,
		AuthorCreatedAt: item.AuthorCreatedAt,
		Now:             now,
	}
}

// Indicators derives text-feature risk signals, independent of any model.
func Indicators(s Signals) []domain.RiskIndicator {
	var out []domain.RiskIndicator
	text := strings.ToLower(s.Title + " " + s.Body)

	if phrase, ok := firstContained(text, clickbaitPhrases); ok {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorClickbait,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("clickbait wording detected: %q", phrase),
		})
	}

	if phrase, ok := firstContained(text, sensationalPhrases); ok {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorSensational,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("emotionally loaded phrase: %q", phrase),
		})
	}

	if word, ok := firstWord(text, absolutistWords); ok {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorAbsolutist,
			Severity:    domain.SeverityLow,
			Description: fmt.Sprintf("absolutist language: %q", word),
		})
	}

	if ratio := capsRatio(s.Title); ratio > 0.5 {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorExcessiveCaps,
			Severity:    domain.SeverityLow,
			Description: fmt.Sprintf("title is %.0f%% upper case", ratio*100),
		})
	}

	if n := strings.Count(s.Title, "!") + strings.Count(s.Title, "?"); n > 2 {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorPunctuation,
			Severity:    domain.SeverityLow,
			Description: fmt.Sprintf("title uses %d exclamation or question marks", n),
		})
	}

	if s.HasBody && strings.TrimSpace(s.Body) == "" {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorInsufficient,
			Severity:    domain.SeverityLow,
			Description: "content is empty and gives no supporting detail",
		})
	}

	if s.Domain == "" && len(s.Links) == 0 {
		if _, ok := firstContained(text, attributionPhrases); !ok {
			out = append(out, domain.RiskIndicator{
				Type:        IndicatorNoAttribution,
				Severity:    domain.SeverityLow,
				Description: "no link or named source backs the claim",
			})
		}
	}

	if marker, ok := firstContained(strings.ToLower(s.Domain), suspiciousDomainMarkers); ok {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorSuspiciousDomain,
			Severity:    domain.SeverityHigh,
			Description: fmt.Sprintf("source domain %s contains %q", s.Domain, marker),
		})
	}

	if s.SourceScore != nil && *s.SourceScore < 50 {
		out = append(out, domain.RiskIndicator{
			Type:        IndicatorLowCredibility,
			Severity:    domain.SeverityHigh,
			Description: fmt.Sprintf("source %s has credibility score %.1f", s.Domain, *s.SourceScore),
		})
	}

	if s.AuthorCreatedAt != nil && !s.Now.IsZero() {
		if age := s.Now.Sub(*s.AuthorCreatedAt); age >= 0 && age < 30*24*time.Hour {
			out = append(out, domain.RiskIndicator{
				Type:        IndicatorNewAccount,
				Severity:    domain.SeverityMedium,
				Description: fmt.Sprintf("author account is %d days old", int(age.Hours()/24)),
			})
		}
	}

	return out
}

// RiskScore weighs a verdict and its indicators into a 0-100 score.
func RiskScore(v domain.Verdict) float64 {
	score := 0.0
	if v.Label == domain.LabelFake {
		score += v.Confidence * 50
	}
	for _, ind := range v.Indicators {
		switch ind.Severity {
		case domain.SeverityHigh:
			score += 20
		case domain.SeverityMedium:
			score += 10
		default:
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Recommendation is the reader-facing advice for a verdict.
func Recommendation(v domain.Verdict) string {
	if v.Label == domain.LabelFake {
		switch {
		case v.Confidence > 0.85:
			return "Highly likely to be fake news. Do not share it; verify with several reputable sources."
		case v.Confidence > 0.7:
			return "Shows signs of fake news. Check carefully before trusting it."
		default:
			return "Has some characteristics of fake news. Cross-check with other sources."
		}
	}

	switch n := len(v.Indicators); {
	case n > 2:
		return "Classified as real, but several warning signs are present. Verify further."
	case n > 0:
		return "Looks credible. Still cross-check with other sources to be sure."
	default:
		return "Looks credible. No suspicious signs detected."
	}
}

func firstContained(text string, phrases []string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// firstWord matches whole words so "forever" does not hit "never".
func firstWord(text string, words []string) (string, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '%'
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	for _, w := range words {
		if _, ok := set[w]; ok {
			return w, true
		}
	}
	return "", false
}

// capsRatio counts upper-case letters over all letters of the title.
func capsRatio(title string) float64 {
	var letters, upper int
	for _, r := range title {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// FallbackExplanation is served when the reasoning model cannot explain.
func FallbackExplanation(fast domain.FastResult) string {
	verdict := "likely genuine"
	if fast.Label == domain.LabelFake {
		verdict = "likely misleading"
	}
	return fmt.Sprintf("### Assessment\nThe automated classifier considers this content %s (confidence %.0f%%).\n\n"+
		"### How to verify\nCheck whether reputable outlets report the same facts and look for a named primary source.",
		verdict, fast.Confidence*100)
}
