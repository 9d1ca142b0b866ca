package model

import (
	"strings"
	"unicode"
)

// Statement is the parsed form of a set or set_cmp line.
type Statement struct {
	Kind         Kind
	Object       string
	Field        string
	CompareValue string
	Value        string
}

// ParseStatement parses "set <object> <field> [value...]" or
// "set_cmp <object> <field> <compare> [value...]". The value is the rest of
// the line and may contain spaces. A compare value is a single token or a
// balanced parenthesised group.
func ParseStatement(code string) (Statement, error) {
	invalid := func(reason string) (Statement, error) {
		return Statement{}, &ValidationError{Field: "statement", Value: code, Reason: reason}
	}

	keyword, rest := nextToken(code)
	var st Statement
	switch strings.ToLower(keyword) {
	case "set":
		st.Kind = KindSetCommand
	case "set_cmp":
		st.Kind = KindSetCMPCommand
	default:
		return invalid("statement must start with set or set_cmp")
	}

	st.Object, rest = nextToken(rest)
	st.Field, rest = nextToken(rest)
	if st.Object == "" || st.Field == "" {
		return invalid("too few arguments")
	}

	if st.Kind == KindSetCMPCommand {
		st.CompareValue, rest = nextGroup(rest)
		if st.CompareValue == "" {
			return invalid("set_cmp needs a compare value")
		}
	}
	st.Value = strings.TrimSpace(rest)
	return st, nil
}

func nextToken(s string) (tok, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// nextGroup reads a token, or a parenthesised group that may contain spaces.
// Quoted text inside the group is skipped.
func nextGroup(s string) (tok, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if !strings.HasPrefix(s, "(") {
		return nextToken(s)
	}
	depth := 0
	inQuote := false
	for i, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth == 0 {
				return s[:i+1], s[i+1:]
			}
		}
	}
	// unbalanced: take the first token so the mismatch shows up in the checkers
	return nextToken(s)
}
