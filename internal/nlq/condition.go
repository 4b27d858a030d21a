package nlq

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

var (
	conditionPattern = regexp.MustCompile(`^\s*(?P<lhs>[\w\s]+?)\s*(?P<op>==|!=|<>|>=|<=|=|>|<)\s*(?P<rhs>.+?)\s*$`)
	integerPattern   = regexp.MustCompile(`^[-+]?\d+$`)
	decimalPattern   = regexp.MustCompile(`^[-+]?(?:\d+\.\d*|\.\d+)(?:[eE][-+]?\d+)?$`)
	numberStart      = regexp.MustCompile(`^[-+]?\.?\d`)
)

// Condition is a parsed "lhs op rhs" comparison.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

func (c Condition) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%s %s '%s'", c.Field, c.Operator, s)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// ParseCondition parses a comparison. Quoted values are strings, integers
// become int64, decimals float64, and anything else a bare string. A value
// that starts like a number must be one.
func ParseCondition(raw string) (Condition, error) {
	m := conditionPattern.FindStringSubmatch(raw)
	if m == nil || strings.TrimSpace(m[conditionPattern.SubexpIndex("lhs")]) == "" {
		return Condition{}, conditionError(raw)
	}

	rhs := m[conditionPattern.SubexpIndex("rhs")]
	if strings.ContainsAny(rhs[:1], "=<>!") {
		return Condition{}, conditionError(raw)
	}
	value, ok := typedValue(rhs)
	if !ok {
		return Condition{}, conditionError(raw)
	}

	return Condition{
		Field:    strings.Join(strings.Fields(m[conditionPattern.SubexpIndex("lhs")]), " "),
		Operator: m[conditionPattern.SubexpIndex("op")],
		Value:    value,
	}, nil
}

func conditionError(raw string) error {
	return chatdberrors.Newf(chatdberrors.ErrTypeParse, "could not parse condition %q", strings.TrimSpace(raw)).
		WithSuggestion("Write conditions as <field> <operator> <value>, e.g. amount > 10 or status = 'paid'")
}

func typedValue(raw string) (any, bool) {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' || first == '"') && first == last {
			return raw[1 : len(raw)-1], true
		}
	}
	if integerPattern.MatchString(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	}
	if decimalPattern.MatchString(raw) {
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	}
	// dates such as 2024-01-31 stay strings; "10 and x" does not
	if numberStart.MatchString(raw) && strings.ContainsAny(raw, " \t") {
		return nil, false
	}
	return raw, true
}
