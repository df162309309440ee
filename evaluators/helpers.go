package evaluators

import (
	"regexp"
	"strings"

	"github.com/winnowbot/winnow/platform"
)

// OfKind filters history down to one content kind, preserving order.
func OfKind(history []*platform.Content, kind platform.ContentKind) []*platform.Content {
	var out []*platform.Content
	for _, c := range history {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// NewestN truncates a newest-first history to n items.
func NewestN(history []*platform.Content, n int) []*platform.Content {
	if len(history) <= n {
		return history
	}
	return history[:n]
}

var domainPattern = regexp.MustCompile(`(?i)\bhttps?://([a-z0-9][a-z0-9.-]*\.[a-z]{2,})`)

// ExtractDomains pulls lowercased hostnames out of free text and explicit
// link URLs.
func ExtractDomains(c *platform.Content) []string {
	var out []string
	seen := map[string]bool{}
	add := func(d string) {
		d = strings.ToLower(d)
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, m := range domainPattern.FindAllStringSubmatch(c.Body, -1) {
		add(m[1])
	}
	if m := domainPattern.FindStringSubmatch(c.URL); m != nil {
		add(m[1])
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeBody collapses a content body for duplicate comparison: lowercase,
// punctuation stripped, whitespace runs collapsed.
func NormalizeBody(body string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(body) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '\n', r == '\t':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(b.String(), " "))
}

func matchAny(patterns []*regexp.Regexp, s string) (string, bool) {
	for _, re := range patterns {
		if re.MatchString(s) {
			return re.String(), true
		}
	}
	return "", false
}
