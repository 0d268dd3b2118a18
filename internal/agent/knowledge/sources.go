package knowledge

import (
	"context"
	"strings"
)

const (
	faqKeywordScore = 0.2
	faqIntentBonus  = 0.5
	faqMinScore     = 0.3

	DefaultExcerptLength = 300
)

// FAQEntry is one question/answer pair. Keywords extend the question text
// for matching; Actions are triggers surfaced when the entry wins.
type FAQEntry struct {
	ID          string   `json:"id" yaml:"id"`
	Question    string   `json:"question" yaml:"question"`
	Answer      string   `json:"answer" yaml:"answer"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Intents     []string `json:"intents,omitempty" yaml:"intents,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	ContentType string   `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Actions     []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

type FAQSource struct {
	id      string
	entries []FAQEntry
}

func NewFAQSource(id string, entries []FAQEntry) *FAQSource {
	return &FAQSource{id: id, entries: entries}
}

func (s *FAQSource) ID() string   { return s.id }
func (s *FAQSource) Type() string { return SourceFAQ }

// Search scores each entry 0.2 per query term found in its question or
// keywords, plus 0.5 when the query intent is one of the entry's intents.
// Entries scoring 0.3 or less are dropped.
func (s *FAQSource) Search(ctx context.Context, q StructuredQuery) ([]Item, error) {
	terms := Terms(q.Text)
	category := q.Category()

	var out []Item
	for _, e := range s.entries {
		if category != "" && e.Category != "" && e.Category != category {
			continue
		}
		question := strings.ToLower(e.Question + " " + strings.Join(e.Keywords, " "))
		score := 0.0
		for _, t := range terms {
			if strings.Contains(question, t) {
				score += faqKeywordScore
			}
		}
		if q.MatchesIntent(e.Intents) {
			score += faqIntentBonus
		}
		if score <= faqMinScore {
			continue
		}
		typ := e.ContentType
		if typ == "" {
			typ = SourceFAQ
		}
		out = append(out, Item{
			ID:        e.ID,
			Title:     e.Question,
			Content:   e.Answer,
			Relevance: clamp01(score),
			Type:      typ,
			Source:    s.id,
			Actions:   e.Actions,
		})
	}
	return out, nil
}

// Document is a free-text knowledge article.
type Document struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Content     string         `json:"content" yaml:"content"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	ContentType string         `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Actions     []string       `json:"actions,omitempty" yaml:"actions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type DocumentSource struct {
	id         string
	docs       []Document
	excerptLen int
}

func NewDocumentSource(id string, docs []Document, excerptLen int) *DocumentSource {
	if excerptLen <= 0 {
		excerptLen = DefaultExcerptLength
	}
	return &DocumentSource{id: id, docs: docs, excerptLen: excerptLen}
}

func (s *DocumentSource) ID() string   { return s.id }
func (s *DocumentSource) Type() string { return SourceDocument }

func (s *DocumentSource) Search(ctx context.Context, q StructuredQuery) ([]Item, error) {
	terms := Terms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}
	category := q.Category()

	var out []Item
	for _, d := range s.docs {
		if category != "" && d.Category != "" && d.Category != category {
			continue
		}
		score := Relevance(terms, d.Title, d.Content, d.Tags)
		if score == 0 {
			continue
		}
		typ := d.ContentType
		if typ == "" {
			typ = SourceDocument
		}
		out = append(out, Item{
			ID:        d.ID,
			Title:     d.Title,
			Content:   Excerpt(terms, d.Content, s.excerptLen),
			Relevance: score,
			Type:      typ,
			Source:    s.id,
			Actions:   d.Actions,
			Metadata:  d.Metadata,
		})
	}
	return out, nil
}

var (
	_ Source = (*FAQSource)(nil)
	_ Source = (*DocumentSource)(nil)
)
