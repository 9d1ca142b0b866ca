package dictionary

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

var (
	// ErrFieldNotFound is returned when a path names a field the dump does
	// not contain.
	ErrFieldNotFound = errors.New("field not found")
	// ErrIndexOutOfRange is returned when a path indexes past the end of an
	// array.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrMalformedDump is returned for text that is not a property dump.
	ErrMalformedDump = errors.New("malformed dump")
)

const (
	headerPrefix = "*** Property dump for object '"
	headerSuffix = "' ***"
)

// rawKey holds the source text of a struct inside its parsed map. It cannot
// collide with a property name.
const rawKey = "\x00raw"

// Object is a parsed property dump. Property names are matched
// case-insensitively.
type Object struct {
	Class string
	Name  string

	// props maps lowercased property names to parsed values: a string, a
	// []any for arrays, or a map[string]any for structs.
	props map[string]any
}

// ParseHeader extracts the class and object name from a dump header line.
func ParseHeader(line string) (class, object string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, headerPrefix) || !strings.HasSuffix(line, headerSuffix) {
		return "", "", false
	}
	inner := line[len(headerPrefix) : len(line)-len(headerSuffix)]
	class, object, ok = strings.Cut(inner, " ")
	if !ok || class == "" || object == "" {
		return "", "", false
	}
	return class, object, true
}

// ParseObject parses the text of one property dump.
func ParseObject(text string) (*Object, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var o *Object
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case o == nil:
			class, name, ok := ParseHeader(line)
			if !ok {
				return nil, fmt.Errorf("%w: missing header", ErrMalformedDump)
			}
			o = &Object{Class: class, Name: name, props: make(map[string]any)}
		case strings.HasPrefix(line, "==="), strings.HasPrefix(line, "***"):
			continue
		default:
			o.addLine(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: empty", ErrMalformedDump)
	}
	return o, nil
}

// addLine records "Name=Value" or "Name(i)=Value". Lines of any other shape
// are ignored.
func (o *Object) addLine(line string) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	name, index := strings.TrimSpace(lhs), -1
	if open := strings.IndexAny(name, "(["); open > 0 && strings.ContainsAny(name[len(name)-1:], ")]") {
		i, err := strconv.Atoi(name[open+1 : len(name)-1])
		if err != nil || i < 0 {
			return
		}
		name, index = name[:open], i
	}
	key := strings.ToLower(name)
	value := parseValue(strings.TrimSpace(rhs))
	if index < 0 {
		o.props[key] = value
		return
	}
	arr, _ := o.props[key].([]any)
	for len(arr) <= index {
		arr = append(arr, "")
	}
	arr[index] = value
	o.props[key] = arr
}

// Properties returns the number of top-level properties.
func (o *Object) Properties() int { return len(o.props) }

// Field returns the text of the value at path, e.g. "Damage",
// "Attributes[2].BaseValueConstant" or "Info.Parts[0]".
func (o *Object) Field(path string) (string, error) {
	expr, steps, err := compilePath(path)
	if err != nil {
		return "", err
	}
	// Walk prefix by prefix so a miss can be told apart from an index past
	// the end of an array.
	x := jp.R()
	var parent any = o.props
	for _, st := range steps {
		if st.index >= 0 {
			x = x.N(st.index)
		} else {
			x = x.C(st.key)
		}
		got := x.Get(o.props)
		if len(got) == 0 {
			if arr, isArr := parent.([]any); isArr && st.index >= len(arr) {
				return "", fmt.Errorf("%w: %s", ErrIndexOutOfRange, path)
			}
			return "", fmt.Errorf("%w: %s", ErrFieldNotFound, path)
		}
		parent = got[0]
	}
	return render(expr.First(o.props)), nil
}

type step struct {
	key   string
	index int
}

func compilePath(path string) (jp.Expr, []step, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, fmt.Errorf("%w: empty path", ErrFieldNotFound)
	}
	x := jp.R()
	var steps []step
	for _, part := range strings.Split(path, ".") {
		name := part
		var indexes []int
		if open := strings.IndexByte(part, '['); open >= 0 {
			name = part[:open]
			rest := part[open:]
			for rest != "" {
				end := strings.IndexByte(rest, ']')
				if rest[0] != '[' || end < 0 {
					return nil, nil, fmt.Errorf("%w: bad index in %s", ErrFieldNotFound, path)
				}
				i, err := strconv.Atoi(rest[1:end])
				if err != nil || i < 0 {
					return nil, nil, fmt.Errorf("%w: bad index in %s", ErrFieldNotFound, path)
				}
				indexes = append(indexes, i)
				rest = rest[end+1:]
			}
		}
		if name == "" {
			return nil, nil, fmt.Errorf("%w: empty segment in %s", ErrFieldNotFound, path)
		}
		key := strings.ToLower(name)
		x = x.C(key)
		steps = append(steps, step{key: key, index: -1})
		for _, i := range indexes {
			x = x.N(i)
			steps = append(steps, step{index: i})
		}
	}
	return x, steps, nil
}

// parseValue turns the text of a property value into a tree. A bracketed
// list where every item is "Key=Value" is a struct, any other bracketed list
// is an array; everything else is kept as text.
func parseValue(s string) any {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' || !balanced(s) {
		return s
	}
	items := splitTopLevel(s[1 : len(s)-1])
	if len(items) == 0 {
		return []any{}
	}
	st := map[string]any{rawKey: s}
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		k = strings.TrimSpace(k)
		if !ok || !isIdent(k) {
			st = nil
			break
		}
		st[strings.ToLower(k)] = parseValue(strings.TrimSpace(v))
	}
	if st != nil {
		return st
	}
	arr := make([]any, len(items))
	for i, it := range items {
		arr[i] = parseValue(strings.TrimSpace(it))
	}
	return arr
}

// balanced reports whether the outer brackets of s enclose the whole text.
func balanced(s string) bool {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		raw, _ := t[rawKey].(string)
		return raw
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = render(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return fmt.Sprint(v)
}
