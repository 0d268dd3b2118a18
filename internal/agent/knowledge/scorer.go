package knowledge

import (
	"regexp"
	"sort"
	"strings"
)

const (
	titleBonus = 0.5
	tagBonus   = 0.3

	excerptSentences = 3
	ellipsis         = "..."
)

var (
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}]+`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

	stopWords = map[string]struct{}{
		"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
		"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "and": {}, "or": {},
		"but": {}, "with": {}, "by": {}, "from": {}, "as": {}, "it": {}, "its": {}, "this": {},
		"that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "we": {}, "they": {}, "he": {},
		"she": {}, "me": {}, "my": {}, "your": {}, "our": {}, "do": {}, "does": {}, "did": {},
		"can": {}, "could": {}, "would": {}, "should": {}, "will": {}, "what": {}, "how": {},
		"when": {}, "where": {}, "why": {}, "who": {}, "which": {}, "about": {}, "please": {},
		"have": {}, "has": {}, "had": {}, "there": {}, "here": {}, "if": {}, "so": {}, "not": {},
	}
)

// Terms lowercases, tokenizes and drops stop words. Duplicates are removed,
// first occurrence order kept.
func Terms(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Relevance scores a document against query terms: the fraction of terms
// found anywhere, plus a bonus per term found in the title or the tags.
// The result is clamped to [0,1].
func Relevance(terms []string, title, content string, tags []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	title = strings.ToLower(title)
	tagText := strings.ToLower(strings.Join(tags, " "))
	haystack := title + " " + tagText + " " + strings.ToLower(content)

	found := 0
	bonus := 0.0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			found++
		}
		if strings.Contains(title, t) {
			bonus += titleBonus
		}
		if tagText != "" && strings.Contains(tagText, t) {
			bonus += tagBonus
		}
	}
	return clamp01(float64(found)/float64(len(terms)) + bonus)
}

type rankedSentence struct {
	pos   int
	text  string
	score float64
}

// Excerpt picks up to three sentences ranked by query term overlap, with a
// small bonus for the first sentences of the document, and joins them in
// document order. The result is cut to maxLen with an ellipsis.
func Excerpt(terms []string, content string, maxLen int) string {
	raw := sentencePattern.FindAllString(content, -1)
	ranked := make([]rankedSentence, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		score := 0.0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score++
			}
		}
		if i < excerptSentences {
			score += float64(excerptSentences-i) * 0.1
		}
		ranked = append(ranked, rankedSentence{pos: i, text: s, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > excerptSentences {
		ranked = ranked[:excerptSentences]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].pos < ranked[j].pos })

	parts := make([]string, len(ranked))
	for i, r := range ranked {
		parts[i] = r.text
	}
	return truncate(strings.Join(parts, " "), maxLen)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= len(ellipsis) {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-len(ellipsis)])) + ellipsis
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
