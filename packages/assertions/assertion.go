package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpNotIncludes
	OpIn
	OpNotIn
	OpType
	OpEach
	OpSchema
)

var operatorNames = map[Operator]string{
	OpEquals:         "==",
	OpNotEquals:      "!=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpContains:       "contains",
	OpNotContains:    "!contains",
	OpStartsWith:     "startsWith",
	OpEndsWith:       "endsWith",
	OpMatches:        "matches",
	OpExists:         "exists",
	OpNotExists:      "!exists",
	OpLength:         "length",
	OpIncludes:       "includes",
	OpNotIncludes:    "!includes",
	OpIn:             "in",
	OpNotIn:          "!in",
	OpType:           "type",
	OpEach:           "each",
	OpSchema:         "schema",
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorNames)+2)
	for op, name := range operatorNames {
		m[strings.ToLower(name)] = op
	}
	m["="] = OpEquals
	m["equals"] = OpEquals
	return m
}()

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unknown"
}

// ParseOperator looks up an operator by its textual form, case-insensitively.
func ParseOperator(s string) (Operator, bool) {
	op, ok := operatorsByName[strings.ToLower(s)]
	return op, ok
}

// Assertion is a single expectation about an envelope.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a Assertion) String() string {
	if a.Operator == OpExists || a.Operator == OpNotExists {
		return a.Subject + " " + a.Operator.String()
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// Parse reads an expression such as `status == 200`. A leading "expect"
// keyword is accepted. A missing operator means equality.
func Parse(expr string) (Assertion, error) {
	rest := strings.TrimSpace(expr)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "expect "))
	if rest == "" {
		return Assertion{}, fmt.Errorf("empty assertion")
	}

	subject, rest := nextField(rest)
	if strings.EqualFold(subject, "header") || strings.EqualFold(subject, "jsonpath") {
		var arg string
		arg, rest = nextField(rest)
		if arg == "" {
			return Assertion{}, fmt.Errorf("assertion %q: %s needs an argument", expr, subject)
		}
		subject = strings.ToLower(subject) + " " + arg
	}

	a := Assertion{Subject: subject, Operator: OpEquals}

	word, after := nextField(rest)
	if word == "" {
		return Assertion{}, fmt.Errorf("assertion %q: missing operator", expr)
	}
	if op, ok := ParseOperator(word); ok {
		a.Operator = op
		rest = after
	}

	if a.Operator == OpExists || a.Operator == OpNotExists {
		if strings.TrimSpace(rest) != "" {
			return Assertion{}, fmt.Errorf("assertion %q: %s takes no value", expr, a.Operator)
		}
		return a, nil
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Assertion{}, fmt.Errorf("assertion %q: missing expected value", expr)
	}
	a.Expected = parseExpected(rest)
	return a, nil
}

// ParseAll parses each expression, stopping at the first error.
func ParseAll(exprs []string) ([]Assertion, error) {
	out := make([]Assertion, 0, len(exprs))
	for _, e := range exprs {
		a, err := Parse(e)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func nextField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func parseExpected(s string) any {
	switch {
	case s == "null":
		return nil
	case s == "true":
		return true
	case s == "false":
		return false
	case len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"'):
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
		return s[1 : len(s)-1]
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return s[1 : len(s)-1]
	case strings.HasPrefix(s, "["):
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		for _, part := range strings.Split(inner, ",") {
			if part = strings.TrimSpace(part); part != "" {
				arr = append(arr, parseExpected(part))
			}
		}
		return arr
	case strings.HasPrefix(s, "{"):
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return obj
		}
	}

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
