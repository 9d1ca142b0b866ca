package model

import (
	"fmt"
	"strings"
)

// NodeID is the stable identity token of an element. IDs are never reused
// within a Patch, so profiles and external indexes can refer to leaves by ID
// across structural edits.
type NodeID uint32

// NoNode is the parent of detached elements.
const NoNode NodeID = 0

// Kind is the closed set of element types.
type Kind uint8

const (
	KindCategory Kind = iota + 1
	KindSetCommand
	KindSetCMPCommand
	KindComment
	KindHotfixWrapper
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindSetCommand:
		return "set"
	case KindSetCMPCommand:
		return "set_cmp"
	case KindComment:
		return "comment"
	case KindHotfixWrapper:
		return "hotfix"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindCategory; k <= KindHotfixWrapper; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

// IsStatement reports whether elements of this kind write an (object, field).
func (k Kind) IsStatement() bool {
	return k == KindSetCommand || k == KindSetCMPCommand
}

// IsContainer reports whether elements of this kind own children.
func (k Kind) IsContainer() bool {
	return k == KindCategory || k == KindHotfixWrapper
}

// IsLeaf reports whether the element is a statement or a comment.
func (k Kind) IsLeaf() bool {
	return k.IsStatement() || k == KindComment
}

// HotfixType selects the runtime delivery mechanism of a hotfix wrapper.
type HotfixType uint8

const (
	HotfixPatch HotfixType = iota
	HotfixLevel
	HotfixOnDemand
)

func (t HotfixType) String() string {
	switch t {
	case HotfixPatch:
		return "patch"
	case HotfixLevel:
		return "level"
	case HotfixOnDemand:
		return "ondemand"
	default:
		return fmt.Sprintf("hotfix(%d)", t)
	}
}

// ParseHotfixType accepts the String form as well as the in-game key prefixes.
func ParseHotfixType(s string) (HotfixType, error) {
	switch strings.ToLower(s) {
	case "patch", "sparkpatchentry":
		return HotfixPatch, nil
	case "level", "sparklevelpatchentry":
		return HotfixLevel, nil
	case "ondemand", "on_demand", "sparkondemandpatchentry":
		return HotfixOnDemand, nil
	}
	return 0, fmt.Errorf("unknown hotfix type %q", s)
}

// KeyPrefix is the prefix the game uses for hotfix keys of this type.
func (t HotfixType) KeyPrefix() string {
	switch t {
	case HotfixLevel:
		return "SparkLevelPatchEntry"
	case HotfixOnDemand:
		return "SparkOnDemandPatchEntry"
	default:
		return "SparkPatchEntry"
	}
}

// onDemandCharacters maps streaming packages to the character they belong to.
var onDemandCharacters = map[string]string{
	"gd_soldier_streaming":      "Axton",
	"gd_tulip_mechro_streaming": "Gaige",
	"gd_lilac_psycho_streaming": "Krieg",
	"gd_siren_streaming":        "Maya",
	"gd_mercenary_streaming":    "Salvador",
	"gd_assassin_streaming":     "Zer0",
	"gd_gladiator_streaming":    "Athena",
	"crocus_baroness_streaming": "Aurelia",
	"gd_prototype_streaming":    "Claptrap",
	"quince_doppel_streaming":   "Jack",
	"gd_lawbringer_streaming":   "Nisha",
	"gd_enforcer_streaming":     "Wilhelm",
}

// Node is the common record of every element in the arena. Fields that do
// not apply to Kind are left zero. Callers must treat a *Node returned by
// Patch as read-only and go through Patch methods for every change.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID

	// Category and HotfixWrapper
	Name string

	// Category
	Locked            bool
	MutuallyExclusive bool

	// SetCommand and SetCMPCommand
	Object       string
	Field        string
	Value        string
	CompareValue string // set_cmp only
	Selected     bool

	// Comment
	Text string

	// HotfixWrapper
	HotfixType HotfixType
	Parameter  string

	Transient *TransientData
}

// Code is the canonical textual form of the element.
func (n *Node) Code() string {
	switch n.Kind {
	case KindSetCommand:
		return fmt.Sprintf("set %s %s %s", n.Object, n.Field, n.Value)
	case KindSetCMPCommand:
		return fmt.Sprintf("set_cmp %s %s %s %s", n.Object, n.Field, n.CompareValue, n.Value)
	case KindComment:
		return n.Text
	case KindCategory:
		return n.Name
	case KindHotfixWrapper:
		return n.Name + " " + n.HotfixPrefix()
	}
	return ""
}

// HotfixPrefix is the short human description of where a hotfix applies.
func (n *Node) HotfixPrefix() string {
	switch n.HotfixType {
	case HotfixPatch:
		return "(hotfix)"
	case HotfixLevel:
		if strings.EqualFold(n.Parameter, "none") || n.Parameter == "" {
			return "(in any level)"
		}
		level := n.Parameter
		if strings.HasSuffix(strings.ToLower(level), "_p") {
			level = level[:len(level)-2]
		}
		return fmt.Sprintf("(in %s)", level)
	case HotfixOnDemand:
		if who, ok := onDemandCharacters[strings.ToLower(n.Parameter)]; ok {
			return fmt.Sprintf("(with %s)", who)
		}
		return fmt.Sprintf("(with %s)", n.Parameter)
	}
	return ""
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d %s", n.Kind, n.ID, n.Code())
}
