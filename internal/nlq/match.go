package nlq

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/shakram02/go-chatdb/internal/config"
)

// DefaultCutoff is the minimum similarity ratio for a field match.
const DefaultCutoff = 0.6

var (
	nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	// English stopwords, as shipped with the NLTK corpus.
	stopwords = toSet(strings.Fields(`
		i me my myself we our ours ourselves you you're you've you'll you'd your
		yours yourself yourselves he him his himself she she's her hers herself it
		it's its itself they them their theirs themselves what which who whom this
		that that'll these those am is are was were be been being have has had
		having do does did doing a an the and but if or because as until while of
		at by for with about against between into through during before after
		above below to from up down in out on off over under again further then
		once here there when where why how all any both each few more most other
		some such no nor not only own same so than too very s t can will just don
		don't should should've now d ll m o re ve y ain aren aren't couldn
		couldn't didn didn't doesn doesn't hadn hadn't hasn hasn't haven haven't
		isn isn't ma mightn mightn't mustn mustn't needn needn't shan shan't
		shouldn shouldn't wasn wasn't weren weren't won won't wouldn wouldn't`))

	// Plural noun endings, most specific first.
	pluralRules = []struct {
		suffix, replacement string
		minLen              int
	}{
		{"ies", "y", 4},
		{"sses", "ss", 5},
		{"shes", "sh", 5},
		{"ches", "ch", 5},
		{"xes", "x", 4},
		{"zes", "z", 4},
		{"s", "", 3},
	}
	singularEndings = []string{"ss", "us", "is"}
)

// Matcher maps a user phrase to the closest schema field name.
type Matcher struct {
	cutoff    float64
	normalize func(string) string
	// rawCandidates compares the normalized phrase against unmodified names.
	rawCandidates bool
}

// NewMatcher returns a matcher for a field match strategy.
func NewMatcher(strategy string, cutoff float64) (*Matcher, error) {
	if cutoff <= 0 || cutoff > 1 {
		return nil, fmt.Errorf("match cutoff must be in (0, 1]: %v", cutoff)
	}
	switch strategy {
	case config.MatchTokens:
		return &Matcher{cutoff: cutoff, normalize: tokenKey}, nil
	case config.MatchSnake:
		return &Matcher{cutoff: cutoff, normalize: snakeKey, rawCandidates: true}, nil
	}
	return nil, fmt.Errorf("unknown field match strategy %q", strategy)
}

// Match returns the candidate closest to phrase, or false when no candidate
// reaches the cutoff. Candidates that normalize identically resolve to the
// first one.
func (m *Matcher) Match(phrase string, candidates []string) (string, bool) {
	keys := make([]string, 0, len(candidates))
	byKey := make(map[string]string, len(candidates))
	for _, c := range candidates {
		key := c
		if !m.rawCandidates {
			key = m.normalize(c)
		}
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = c
		keys = append(keys, key)
	}

	best, ok := closestMatch(m.normalize(phrase), keys, m.cutoff)
	if !ok {
		return "", false
	}
	return byKey[best], true
}

// closestMatch returns the candidate with the highest similarity ratio to
// word that is at least cutoff. Equal ratios prefer the larger string.
func closestMatch(word string, candidates []string, cutoff float64) (string, bool) {
	target := strings.Split(word, "")

	var (
		best      string
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		sm := difflib.NewMatcher(strings.Split(c, ""), target)
		if sm.RealQuickRatio() < cutoff || sm.QuickRatio() < cutoff {
			continue
		}
		score := sm.Ratio()
		if score < cutoff {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c > best) {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

// tokenKey lowercases, tokenizes, singularizes and drops stopwords, then
// joins the remaining tokens. A phrase made only of stopwords keys on its
// lowercased tokens.
func tokenKey(text string) string {
	tokens := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if stopwords[tok] {
			continue
		}
		if tok = singular(tok); !stopwords[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return strings.Join(tokens, "")
	}
	return strings.Join(kept, "")
}

// snakeKey lowercases and joins words with underscores.
func snakeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), "_")
}

func singular(word string) string {
	for _, end := range singularEndings {
		if strings.HasSuffix(word, end) {
			return word
		}
	}
	for _, rule := range pluralRules {
		if len(word) >= rule.minLen && strings.HasSuffix(word, rule.suffix) {
			return strings.TrimSuffix(word, rule.suffix) + rule.replacement
		}
	}
	return word
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
