package content

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeRemovesScripts(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name    string
		input   string
		absent  string
		present string
	}{
		{"script tag", `<p>Hi</p><script>alert(1)</script>`, "<script", "<p>Hi</p>"},
		{"event handler", `<p onclick="steal()">Hi</p>`, "onclick", "Hi"},
		{"javascript url", `<a href="javascript:alert(1)">x</a>`, "javascript:", "x"},
		{"keeps formatting", `<p><strong>bold</strong> and <em>em</em></p>`, "<script", "<strong>bold</strong>"},
		{"keeps images", `<img src="https://example.com/a.png" alt="a">`, "onerror", `src="https://example.com/a.png"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if strings.Contains(got, tt.absent) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, tt.absent)
			}
			if !strings.Contains(got, tt.present) {
				t.Errorf("Sanitize(%q) = %q, should contain %q", tt.input, got, tt.present)
			}
		})
	}
}

func TestSanitizeAddsNoFollow(t *testing.T) {
	got := NewSanitizer().Sanitize(`<a href="https://example.com">link</a>`)
	if !strings.Contains(got, `rel="nofollow`) {
		t.Errorf("expected nofollow on links, got %q", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"paragraphs", "<p>One</p>\n<p>Two  words</p>", "One Two words"},
		{"no paragraphs", "<div>Just <b>text</b></div>", "Just text"},
		{"drops script", "<div>Hi<script>var x=1</script></div>", "Hi"},
		{"plain input", "already plain", "already plain"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExcerptShortContentUnchanged(t *testing.T) {
	got := Excerpt("<p>Short body.</p>", 50)
	if got != "Short body." {
		t.Errorf("got %q", got)
	}
}

func TestExcerptTruncatesAtWord(t *testing.T) {
	body := "<p>" + strings.Repeat("lorem ipsum ", 40) + "</p>"
	got := Excerpt(body, 30)

	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	trimmed := strings.TrimSuffix(got, "...")
	if utf8.RuneCountInString(trimmed) > 30 {
		t.Errorf("excerpt too long: %d runes", utf8.RuneCountInString(trimmed))
	}
	if strings.HasSuffix(trimmed, " ") {
		t.Errorf("excerpt should not end in a space: %q", got)
	}
}

func TestExcerptMultibyte(t *testing.T) {
	body := "<p>" + strings.Repeat("日本語", 100) + "</p>"
	got := Excerpt(body, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid utf-8 in %q", got)
	}
	if got != strings.Repeat("日本語", 3)+"日..." {
		t.Errorf("got %q", got)
	}
}

func TestExcerptDefaultLength(t *testing.T) {
	body := strings.Repeat("word ", 200)
	got := Excerpt(body, 0)
	if utf8.RuneCountInString(got) > DefaultExcerptLength+3 {
		t.Errorf("default excerpt too long: %d", utf8.RuneCountInString(got))
	}
}
