package nlq

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var groupBy = regexp.MustCompile(`(?i)\bgroup\s+by\b`)

// Normalize prepares free text for pattern matching: NFC composition,
// collapsed whitespace, and every "group by" rewritten to "by". Normalizing
// an already normalized string returns it unchanged.
func Normalize(input string) string {
	text := strings.Join(strings.Fields(norm.NFC.String(input)), " ")
	for {
		next := groupBy.ReplaceAllString(text, "by")
		if next == text {
			return text
		}
		text = next
	}
}

func fillerPattern(words []string) (*regexp.Regexp, error) {
	alternatives := make([]string, 0, len(words))
	for _, w := range words {
		parts := strings.Fields(w)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alternatives = append(alternatives, strings.Join(parts, `\s+`))
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}

// clean strips filler words from a raw phrase.
func clean(filler *regexp.Regexp, phrase string) string {
	return strings.Join(strings.Fields(filler.ReplaceAllString(phrase, " ")), " ")
}
