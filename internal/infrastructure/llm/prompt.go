package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/retry"
)

const (
	maxReasoningChars = 4000

	classifySystemPrompt = "You are a fake-news classifier for English news articles. " +
		"You must respond ONLY with valid JSON as specified by the user."

	explainSystemPrompt = "You are a media-literacy assistant. You explain, in concise Markdown, " +
		"why a piece of news may or may not be trustworthy and what a reader should verify."
)

func classifyPrompt(text string) string {
	return fmt.Sprintf(`Classify the following news headline/content as "fake" or "real" based on:
- Language patterns (sensationalist, clickbait, emotional manipulation)
- Claim credibility (extreme claims without evidence, conspiracy theories)
- Writing style (professional vs. unprofessional)

News:
---
%s
---

Return ONLY a JSON object with this exact structure:
{
  "label": "<fake|real|uncertain>",
  "confidence": <a number between 0 and 1>,
  "reason": "<short explanation in English>"
}
No extra commentary, no markdown.`, clip(text))
}

func explainPrompt(text string, fast domain.FastResult) string {
	return fmt.Sprintf(`A fast classifier labelled this news as %s with confidence %.2f.

News:
---
%s
---

Write a short Markdown analysis with three sections: "Assessment", "Warning signs" and "How to verify".`,
		fast.Label, fast.Confidence, clip(text))
}

type verdictPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// parseVerdict decodes the model's JSON reply, tolerating Markdown fences.
func parseVerdict(raw, model string) (domain.ReasoningResult, error) {
	var payload verdictPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return domain.ReasoningResult{}, retry.Permanent(fmt.Errorf("parse reasoning reply: %w", err))
	}

	return domain.ReasoningResult{
		Label:      normalizeLabel(payload.Label),
		Confidence: clamp01(payload.Confidence),
		Rationale:  strings.TrimSpace(payload.Reason),
		Model:      model,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeLabel(label string) domain.Label {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "fake":
		return domain.LabelFake
	case "real":
		return domain.LabelReal
	default:
		return domain.LabelUncertain
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func clip(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxReasoningChars {
		return text
	}
	return text[:maxReasoningChars]
}
