package overwrite

import (
	"sort"
	"strings"

	"github.com/openblcmm/blcmm/internal/model"
)

// DefaultSeparators end the head of a field path: "Field.Sub" and
// "Field[3]" both have the head "Field".
const DefaultSeparators = ".["

// Keyer builds the lookup keys statements are compared on.
type Keyer struct {
	Separators string
}

func (k Keyer) separators() string {
	if k.Separators == "" {
		return DefaultSeparators
	}
	return k.Separators
}

// StrippedObject lowercases an object name and unwraps Class'Object'.
func StrippedObject(object string) string {
	base := strings.ToLower(object)
	i := strings.IndexByte(base, '\'')
	if i < 0 {
		return base
	}
	j := strings.IndexByte(base[i+1:], '\'')
	if j < 0 {
		return base
	}
	return base[i+1 : i+1+j]
}

// splitHead splits field at the first separator.
func (k Keyer) splitHead(field string) (head, tail string) {
	i := strings.IndexAny(field, k.separators())
	if i < 0 {
		return field, ""
	}
	return field[:i], field[i:]
}

// Start is the full key of a statement. Statements in a level or on-demand
// hotfix with a parameter other than "none" get ".<parameter>" inserted
// after the head field, so writes for different levels never collide.
func (k Keyer) Start(n, wrapper *model.Node) string {
	field := strings.ToLower(n.Field)
	if wrapper != nil && wrapper.HotfixType != model.HotfixPatch && !strings.EqualFold(wrapper.Parameter, "none") && wrapper.Parameter != "" {
		head, tail := k.splitHead(field)
		field = head + "." + strings.ToLower(wrapper.Parameter) + tail
	}
	return StrippedObject(n.Object) + " " + field
}

// HotfixFreeStart is the key of the object and head field only.
func (k Keyer) HotfixFreeStart(n *model.Node) string {
	head, _ := k.splitHead(n.Field)
	return StrippedObject(n.Object) + " " + strings.ToLower(head)
}

// IsValidSuperString reports whether the longer of a and b extends the
// shorter one at a path boundary: the next character is a separator, and a
// '[' must open a "[digits]" group. One argument must be a prefix of the other.
func (k Keyer) IsValidSuperString(a, b string) bool {
	if len(a) == len(b) {
		return true
	}
	short, long := a, b
	if len(long) < len(short) {
		short, long = long, short
	}
	x := len(short)
	next := long[x]
	if next != '[' {
		return strings.IndexByte(k.separators(), next) >= 0
	}
	x++
	for x < len(long) && long[x] >= '0' && long[x] <= '9' {
		x++
	}
	return x < len(long) && long[x] == ']'
}

// keySet is a sorted set of keys supporting prefix range scans.
type keySet []string

func (s *keySet) add(key string) {
	i := sort.SearchStrings(*s, key)
	if i < len(*s) && (*s)[i] == key {
		return
	}
	*s = append(*s, "")
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = key
}

// withPrefix returns the keys starting with prefix, in sorted order.
func (s keySet) withPrefix(prefix string) []string {
	lo := sort.SearchStrings(s, prefix)
	hi := lo
	for hi < len(s) && strings.HasPrefix(s[hi], prefix) {
		hi++
	}
	return s[lo:hi]
}
