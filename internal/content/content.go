// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package content cleans article HTML on write and derives plain-text
// excerpts from it.
package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultExcerptLength is the rune budget of a derived excerpt.
const DefaultExcerptLength = 160

// Sanitizer strips scripts, event handlers and unknown markup from
// user-authored HTML while keeping ordinary formatting.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a Sanitizer based on the user-generated-content policy.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowImages()
	return &Sanitizer{policy: p}
}

// Sanitize returns the cleaned HTML with surrounding whitespace trimmed.
func (s *Sanitizer) Sanitize(html string) string {
	return strings.TrimSpace(s.policy.Sanitize(html))
}

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed to single spaces.
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}
	doc.Find("script, style").Remove()

	paragraphs := doc.Find("p").Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})
	if joined := strings.Join(paragraphs, " "); strings.TrimSpace(joined) != "" {
		return collapse(joined)
	}
	return collapse(doc.Text())
}

// Excerpt derives a summary of at most maxRunes runes from HTML content.
// Longer text is cut at the last word boundary and suffixed with "...".
func Excerpt(html string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptLength
	}

	text := []rune(PlainText(html))
	if len(text) <= maxRunes {
		return string(text)
	}

	cut := string(text[:maxRunes])
	if i := strings.LastIndex(cut, " "); i > maxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
