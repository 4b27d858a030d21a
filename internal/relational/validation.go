package relational

import (
	"regexp"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// denyRule rejects a statement when pattern matches.
type denyRule struct {
	pattern *regexp.Regexp
	desc    string
}

// keywordRules matches whole keywords, so "created_at" or "update2" do not
// trip CREATE or UPDATE.
func keywordRules(keywords ...string) []denyRule {
	rules := make([]denyRule, 0, len(keywords))
	for _, kw := range keywords {
		rules = append(rules, denyRule{
			pattern: regexp.MustCompile(`(?i)(?:^|[^a-zA-Z0-9_])` + kw + `(?:[^a-zA-Z0-9_]|$)`),
			desc:    kw,
		})
	}
	return rules
}

// functionRules matches calls to the named functions.
func functionRules(names ...string) []denyRule {
	rules := make([]denyRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, denyRule{
			pattern: regexp.MustCompile(`(?i)\b` + name + `\s*\(`),
			desc:    name + "()",
		})
	}
	return rules
}

func patternRule(pattern, desc string) denyRule {
	return denyRule{pattern: regexp.MustCompile(pattern), desc: desc}
}

func checkRules(text string, rules []denyRule, what string) error {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "query contains forbidden %s: %s", what, r.desc)
		}
	}
	return nil
}

// commonDangerousKeywords are DML/DDL keywords blocked by all databases.
var commonDangerousKeywords = keywordRules(
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
)

var (
	allowedPrefixes = []string{"SELECT ", "SHOW ", "DESCRIBE ", "DESC ", "EXPLAIN ", "WITH "}
	setPattern      = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)
)

// validateCommon runs validation checks shared across all database types.
// sqlQuery is the original query; cleanedSQL has strings/comments removed.
func validateCommon(sqlQuery, cleanedSQL string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "empty query")
	}

	upper := strings.ToUpper(trimmed)
	allowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(upper, prefix) || upper == strings.TrimSpace(prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return chatdberrors.New(chatdberrors.ErrTypeValidation,
			"only SELECT, WITH, SHOW, DESCRIBE, and EXPLAIN queries are allowed")
	}

	if parts := strings.SplitN(cleanedSQL, ";", 2); len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "multiple statements are not allowed")
	}

	if err := checkRules(cleanedSQL, commonDangerousKeywords, "keyword"); err != nil {
		return err
	}

	// SET statements, not identifiers that contain "set"
	if setPattern.MatchString(cleanedSQL) {
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "SET statements are not allowed")
	}

	return nil
}

// stripper removes string literals and comments while keeping quoted
// identifiers, so keyword checks only see SQL syntax.
type stripper struct {
	hashComments     bool // # starts a line comment
	backslashEscapes bool // \ escapes inside string literals
	doubleIsString   bool // "..." is a string literal, not an identifier
	dollarQuotes     bool // $tag$...$tag$ strings
	backticks        bool
	brackets         bool
}

func (s stripper) strip(sql string) string {
	return s.run(sql, true)
}

// keywordText strips like strip and also empties quoted identifiers, so a
// column named "drop" is not read as a keyword.
func (s stripper) keywordText(sql string) string {
	return s.run(sql, false)
}

func (s stripper) run(sql string, keepIdents bool) string {
	var result strings.Builder
	i, n := 0, len(sql)

	for i < n {
		c := sql[i]

		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-', c == '#' && s.hashComments:
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue

		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
			continue

		case c == '$' && s.dollarQuotes:
			if end := strings.IndexByte(sql[i+1:], '$'); end >= 0 && isDollarTag(sql[i+1:i+1+end]) {
				tag := sql[i : i+end+2]
				if closeIdx := strings.Index(sql[i+len(tag):], tag); closeIdx >= 0 {
					i += len(tag) + closeIdx + len(tag)
					result.WriteString("''")
					continue
				}
			}

		case c == '\'':
			i = s.skipQuoted(sql, i, '\'')
			result.WriteString("''")
			continue

		case c == '"' && s.doubleIsString:
			i = s.skipQuoted(sql, i, '"')
			result.WriteString(`""`)
			continue

		case c == '"':
			i = s.identifier(&result, sql, i, '"', '"', keepIdents)
			continue

		case c == '`' && s.backticks:
			i = s.identifier(&result, sql, i, '`', '`', keepIdents)
			continue

		case c == '[' && s.brackets:
			i = s.identifier(&result, sql, i, '[', ']', keepIdents)
			continue
		}

		result.WriteByte(c)
		i++
	}

	return result.String()
}

// skipQuoted returns the index just past a string literal opened at i.
func (s stripper) skipQuoted(sql string, i int, quote byte) int {
	n := len(sql)
	i++
	for i < n {
		if sql[i] == quote {
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		if s.backslashEscapes && sql[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		i++
	}
	return i
}

func (s stripper) identifier(result *strings.Builder, sql string, i int, open, closing byte, keep bool) int {
	if keep {
		return copyQuoted(result, sql, i, open, closing)
	}
	var discard strings.Builder
	i = copyQuoted(&discard, sql, i, open, closing)
	result.WriteByte(open)
	result.WriteByte(closing)
	return i
}

// copyQuoted copies a quoted identifier verbatim and returns the index just
// past it. A doubled closing quote is an escaped quote.
func copyQuoted(result *strings.Builder, sql string, i int, open, closing byte) int {
	n := len(sql)
	result.WriteByte(open)
	i++
	for i < n {
		if sql[i] == closing {
			if open == closing && i+1 < n && sql[i+1] == closing {
				result.WriteByte(closing)
				result.WriteByte(closing)
				i += 2
				continue
			}
			result.WriteByte(closing)
			return i + 1
		}
		result.WriteByte(sql[i])
		i++
	}
	return i
}

func isDollarTag(tag string) bool {
	for _, r := range tag {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return tag == "" || !(tag[0] >= '0' && tag[0] <= '9')
}
