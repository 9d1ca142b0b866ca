package properties

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/openblcmm/blcmm/internal/model"
)

var (
	objectPattern = func() *regexp.Regexp {
		word1 := `(11B_)?[a-zA-Z][a-zA-Z0-9_-]*`
		word2 := `[a-zA-Z0-9_][a-zA-Z0-9_-]*(\?)?`
		path := `(` + word1 + `)((\.|:)` + word2 + `)*`
		return regexp.MustCompile(`^((` + path + `)|(([a-zA-Z0-9_]*)'(` + path + `)'))$`)
	}()
	fieldPattern = func() *regexp.Regexp {
		word := `[a-zA-Z_][a-zA-Z0-9_]*(\[([0-9]|[1-9][0-9]*)\])?`
		return regexp.MustCompile(`^((` + word + `)\.)*(` + word + `)$`)
	}()
)

func checkFilterToolSaved(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind == model.KindCategory && n.Name == FilterToolSavedName, nil
}

func checkHotfixImportError(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind == model.KindCategory && n.Name == InvalidHotfixCategoryName, nil
}

func checkHotfixSyntaxInNormalCommand(_ *Context, n *model.Node, s *subject) (bool, error) {
	if !n.Kind.IsStatement() || s.inHotfix {
		return false, nil
	}
	return strings.ContainsAny(n.Field, "[].") || strings.HasPrefix(n.Value, "+("), nil
}

// checkIncompleteSetCommand flags comments that look like a statement the
// parser could not complete.
func checkIncompleteSetCommand(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if n.Kind != model.KindComment {
		return false, nil
	}
	text := strings.ToLower(n.Text)
	return startsWithWord(text, "set") || startsWithWord(text, "set_cmp"), nil
}

// startsWithWord reports whether s is word followed by whitespace.
func startsWithWord(s, word string) bool {
	if !strings.HasPrefix(s, word) || len(s) <= len(word) {
		return false
	}
	return unicode.IsSpace(rune(s[len(word)]))
}

func checkSquareBrackets(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	field := n.Field
	for {
		open := strings.IndexByte(field, '[')
		if open < 0 {
			return false, nil
		}
		end := strings.IndexByte(field[open:], ']')
		if end < 0 {
			return false, nil
		}
		if _, err := strconv.Atoi(field[open+1 : open+end]); err != nil {
			return true, nil
		}
		field = field[open+end:]
	}
}

// checkMismatchingBrackets walks the whole command, skipping quoted text.
// Brackets must balance and a set command may hold at most one top-level
// group (two for set_cmp, compare value plus value).
func checkMismatchingBrackets(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	code := n.Code()
	maxGroups := 1
	if n.Kind == model.KindSetCMPCommand {
		maxGroups = 2
	}
	groups, depth := 0, 0
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == '"' {
			for i < len(code)-1 {
				i++
				if c = code[i]; c == '"' {
					break
				}
			}
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return true, nil
			}
			if depth == 0 {
				groups++
				if groups > maxGroups {
					return true, nil
				}
			}
		}
	}
	return depth != 0, nil
}

func checkFieldSyntax(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	return !fieldPattern.MatchString(n.Field), nil
}

func checkObjectSyntax(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	return !objectPattern.MatchString(n.Object) || strings.Count(n.Object, ":") > 1, nil
}

// checkForbiddenSubstring catches text that slipped past validation, e.g.
// when the constants were tightened after the element was created.
func checkForbiddenSubstring(ctx *Context, n *model.Node, _ *subject) (bool, error) {
	var texts []string
	switch n.Kind {
	case model.KindCategory:
		if ctx.Patch.Root() == n.ID {
			return false, nil
		}
		return ctx.Constants.CategoryNameProblem(n.Name) != "", nil
	case model.KindSetCommand, model.KindSetCMPCommand:
		texts = []string{n.Object, n.Field, n.Value, n.CompareValue}
	case model.KindComment:
		texts = []string{n.Text}
	case model.KindHotfixWrapper:
		texts = []string{n.Name, n.Parameter}
	}
	for _, t := range texts {
		if ctx.Constants.FindForbidden(t) != "" {
			return true, nil
		}
	}
	return false, nil
}

func checkHotfixParameter(ctx *Context, n *model.Node, _ *subject) (bool, error) {
	if n.Kind != model.KindHotfixWrapper {
		return false, nil
	}
	switch n.HotfixType {
	case model.HotfixLevel:
		return !ctx.Constants.ValidLevel(n.Parameter), nil
	case model.HotfixOnDemand:
		return !ctx.Constants.ValidPackage(n.Parameter), nil
	}
	return n.Parameter != "", nil
}

// fieldValueInvalid looks for assignments to target, both as the statement
// field itself (or its last path segment) and as "target=" inside a struct
// value, and runs invalid on the text following each one. All arguments are
// lowercase.
func fieldValueInvalid(target, field, value string, invalid func(value string, from int) bool) bool {
	if field == target || strings.HasSuffix(field, "."+target) {
		if invalid(value, 0) {
			return true
		}
	}
	for from := 0; from < len(value); {
		rel := strings.Index(value[from:], target)
		if rel < 0 {
			return false
		}
		idx := from + rel
		from = idx + 1
		if idx > 0 {
			c := rune(value[idx-1])
			if !unicode.IsSpace(c) && c != ',' && c != '(' {
				continue
			}
		}
		end := idx + len(target)
		pos, equals := end, false
		for pos < len(value) && (unicode.IsSpace(rune(value[pos])) || value[pos] == '=') {
			if value[pos] == '=' {
				if equals {
					return false
				}
				equals = true
			}
			pos++
		}
		if pos == len(value) || pos == end || !equals {
			return false
		}
		if invalid(value, pos) {
			return true
		}
	}
	return false
}

// token returns the text from 'from' up to the next ')', ',' or whitespace.
func token(value string, from int) string {
	end := from
	for end < len(value) {
		c := value[end]
		if c == ')' || c == ',' || unicode.IsSpace(rune(c)) {
			break
		}
		end++
	}
	return value[from:end]
}

func invalidNumber(value string, from int) bool {
	_, err := strconv.ParseFloat(token(value, from), 64)
	return err != nil
}

func invalidInteger(value string, from int) bool {
	_, err := strconv.Atoi(token(value, from))
	return err != nil
}

func invalidRestricted(valid []string) func(string, int) bool {
	return func(value string, from int) bool {
		rest := value[from:]
		for _, v := range valid {
			if len(rest) >= len(v) && strings.EqualFold(rest[:len(v)], v) {
				return false
			}
		}
		return true
	}
}

func checkEmptyCategory(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind == model.KindCategory && len(n.Children) == 0, nil
}

func isClass(ctx *Context, object string) (bool, error) {
	if ctx.Classes == nil {
		return false, nil
	}
	return ctx.Classes.IsClass(object)
}

func checkClassHotfix(ctx *Context, n *model.Node, s *subject) (bool, error) {
	if !n.Kind.IsStatement() || !s.inHotfix {
		return false, nil
	}
	return isClass(ctx, s.object)
}

func checkCompleteClass(ctx *Context, n *model.Node, s *subject) (bool, error) {
	if !n.Kind.IsStatement() || s.inHotfix {
		return false, nil
	}
	return isClass(ctx, s.object)
}

// lastObjectPart is the final dotted segment of object, cut at its last
// underscore when there is one, so "pkg.behavior_delay_12" gives
// "behavior_delay".
func lastObjectPart(object string) string {
	dot := strings.LastIndexByte(object, '.')
	if dot < 0 {
		return object
	}
	under := strings.LastIndexByte(object, '_')
	if under < dot {
		return object[dot+1:]
	}
	return object[dot+1 : under]
}

func checkGameWillOverwrite(_ *Context, n *model.Node, s *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	last := lastObjectPart(s.object)
	switch {
	case s.field == "delay" && last == "behavior_delay":
	case strings.HasPrefix(s.field, "conditions") && last == "behavior_randombranch":
	case strings.HasPrefix(s.field, "value") && strings.HasPrefix(last, "behavior_compare"):
	case len(s.field) == 1 && strings.HasPrefix(last, "behavior_") && strings.HasSuffix(last, "math"):
	default:
		return false, nil
	}
	return true, nil
}

var bvcStarts = []string{"basevalueconstant", "basevalueattribute", "initializationdefinition", "basevaluescaleconstant"}

// checkIncompleteBVC requires every attribute-initialization tuple to have
// all four members.
func checkIncompleteBVC(_ *Context, n *model.Node, s *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	value := s.value
	shortest := len(bvcStarts[0])
	for i := 0; i < len(value); i++ {
		if value[i] != '(' || !hasAnyPrefix(value[i+1:], bvcStarts) {
			continue
		}
		commas := 0
		for j := i + shortest + 1; j < len(value); j++ {
			if value[j] == ')' {
				if commas != 3 {
					return true, nil
				}
				break
			}
			if value[j] == ',' {
				commas++
			}
		}
	}
	return false, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func checkMismatchingQuotes(_ *Context, n *model.Node, _ *subject) (bool, error) {
	if !n.Kind.IsStatement() {
		return false, nil
	}
	return strings.Count(n.Value, `"`)%2 == 1, nil
}

func checkMutuallyExclusive(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind == model.KindCategory && n.MutuallyExclusive, nil
}

func commandComment(word string) checkFunc {
	return func(_ *Context, n *model.Node, _ *subject) (bool, error) {
		return n.Kind == model.KindComment && startsWithWord(n.Text, word), nil
	}
}

func checkHotfixLeaf(_ *Context, n *model.Node, s *subject) (bool, error) {
	return n.Kind.IsStatement() && s.inHotfix, nil
}

func checkLeafCommand(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind.IsStatement(), nil
}

func checkLeafComment(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind == model.KindComment, nil
}

func checkLeafSelected(_ *Context, n *model.Node, _ *subject) (bool, error) {
	return n.Kind.IsStatement() && n.Selected, nil
}
