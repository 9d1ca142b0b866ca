package api

// SchemaVersion is the current snapshot schema version.
const SchemaVersion = "1"

// Patch is the serialised form of a patch: the element tree in document
// order plus the selection profiles.
type Patch struct {
	// Version of the snapshot schema.
	Version string `json:"version" yaml:"version" toml:"version"`
	// GameType is the game the patch targets (e.g. BL2, TPS).
	GameType string `json:"game_type,omitempty" yaml:"game_type,omitempty" toml:"game_type,omitempty"`
	// CurrentProfile names the active profile.
	CurrentProfile string `json:"current_profile,omitempty" yaml:"current_profile,omitempty" toml:"current_profile,omitempty"`
	// Profiles in creation order.
	Profiles []Profile `json:"profiles,omitempty" yaml:"profiles,omitempty" toml:"profiles,omitempty"`
	// Root category.
	Root Element `json:"root" yaml:"root" toml:"root"`
}

// Element is one node of the tree. Only the attributes of its Kind are set.
type Element struct {
	// ID identifies the element inside one snapshot; profiles refer to it.
	ID uint32 `json:"id" yaml:"id" toml:"id"`
	// Kind is one of category, set, set_cmp, comment, hotfix.
	Kind string `json:"kind" yaml:"kind" toml:"kind"`

	// Name of a category or hotfix wrapper.
	Name              string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Locked            bool   `json:"locked,omitempty" yaml:"locked,omitempty" toml:"locked,omitempty"`
	MutuallyExclusive bool   `json:"mutually_exclusive,omitempty" yaml:"mutually_exclusive,omitempty" toml:"mutually_exclusive,omitempty"`

	// Parts of a statement, stored verbatim. CompareValue is set_cmp only.
	Object       string `json:"object,omitempty" yaml:"object,omitempty" toml:"object,omitempty"`
	Field        string `json:"field,omitempty" yaml:"field,omitempty" toml:"field,omitempty"`
	CompareValue string `json:"compare_value,omitempty" yaml:"compare_value,omitempty" toml:"compare_value,omitempty"`
	Value        string `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	// Code is a statement written as "set Obj Field Value". It is read only
	// when Object is empty, and loses surrounding whitespace of the value.
	Code     string `json:"code,omitempty" yaml:"code,omitempty" toml:"code,omitempty"`
	Selected bool   `json:"selected,omitempty" yaml:"selected,omitempty" toml:"selected,omitempty"`

	// Text of a comment.
	Text string `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`

	HotfixType string `json:"hotfix_type,omitempty" yaml:"hotfix_type,omitempty" toml:"hotfix_type,omitempty"`
	Parameter  string `json:"parameter,omitempty" yaml:"parameter,omitempty" toml:"parameter,omitempty"`

	Children []Element `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// Profile is a named selection: the IDs of the selected statements.
type Profile struct {
	Name     string   `json:"name" yaml:"name" toml:"name"`
	Selected []uint32 `json:"selected,omitempty" yaml:"selected,omitempty" toml:"selected,omitempty"`
}
