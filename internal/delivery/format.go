package delivery

import (
	"regexp"
	"strings"
)

// Tags Telegram's HTML parse mode accepts and that the prompts ask for.
var tagPattern = regexp.MustCompile(`</?(b|i|u|s|code|pre)>`)

var entityPattern = regexp.MustCompile(`^(amp|lt|gt|quot|#\d+|#x[0-9a-fA-F]+);`)

// EscapeAmpersands escapes bare & characters while leaving already-encoded
// entities like &amp; and &#39; alone.
func EscapeAmpersands(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !entityPattern.MatchString(s[i+1:]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EscapeText escapes text for Telegram HTML mode.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// FixHTMLTags repairs unbalanced formatting tags in generated output:
// stray closing tags are dropped, and tags left open at the end of the text
// are closed. Needed because a message with broken markup is rejected by
// Telegram outright.
func FixHTMLTags(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	var open []string

	last := 0
	for _, loc := range tagPattern.FindAllStringIndex(s, -1) {
		tag := s[loc[0]:loc[1]]
		name := strings.Trim(tag, "</>")
		out.WriteString(s[last:loc[0]])
		last = loc[1]

		if !strings.HasPrefix(tag, "</") {
			open = append(open, name)
			out.WriteString(tag)
			continue
		}
		// Closing tag: keep only if it matches the innermost open tag.
		if len(open) > 0 && open[len(open)-1] == name {
			open = open[:len(open)-1]
			out.WriteString(tag)
		}
	}
	out.WriteString(s[last:])

	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return out.String()
}

var trailingRulePattern = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)

// CleanSummary strips engine chatter around the summary body: any preamble
// before the 📺 header the prompts mandate, and trailing horizontal rules
// the engine sometimes appends.
func CleanSummary(s string) string {
	if i := strings.Index(s, "📺"); i > 0 {
		s = s[i:]
	}
	s = strings.TrimSpace(s)
	for {
		locs := trailingRulePattern.FindAllStringIndex(s, -1)
		if len(locs) == 0 {
			break
		}
		last := locs[len(locs)-1]
		if strings.TrimSpace(s[last[1]:]) != "" {
			break
		}
		s = strings.TrimSpace(s[:last[0]])
	}
	return s
}
