// Package properties annotates every element of a patch with the results of
// a fixed, ordered list of checkers and keeps those annotations current as
// the patch is edited.
package properties

import (
	"fmt"
	"strings"

	"github.com/openblcmm/blcmm/internal/config"
	"github.com/openblcmm/blcmm/internal/model"
)

// Kind is the closed set of checker types.
type Kind uint8

const (
	KindFilterToolSaved Kind = iota + 1
	KindHotfixImportError
	KindHotfixSyntaxInNormalCommand
	KindIncompleteSetCommand
	KindInvalidArgumentForSquareBracket
	KindMismatchingBrackets
	KindFieldSyntax
	KindObjectSyntax
	KindForbiddenSubstring
	KindInvalidHotfixParameter
	KindNumberField
	KindIntegerField
	KindBooleanField
	KindRestrictedField
	KindEmptyCategory
	KindClassHotfix
	KindGameWillOverwriteValue
	KindIncompleteBVC
	KindMismatchingQuotes
	KindMutuallyExclusive
	KindCompleteClass
	KindHotfix
	KindSayCommand
	KindExecCommand
	KindComment
	KindLeafHotfix
	KindLeafCommand
	KindLeafComment
	KindLeafSelected
)

// Checker names used for lookups. Field checkers are named
// "<Kind>(<field>)", e.g. "NumberField(BaseValueConstant)".
const (
	FilterToolSaved                 = "FilterToolSaved"
	HotfixImportError               = "HotfixImportError"
	HotfixSyntaxInNormalCommand     = "HotfixSyntaxInNormalCommand"
	IncompleteSetCommand            = "IncompleteSetCommand"
	InvalidArgumentForSquareBracket = "InvalidArgumentForSquareBracket"
	MismatchingBrackets             = "MismatchingBrackets"
	FieldSyntax                     = "FieldSyntax"
	ObjectSyntax                    = "ObjectSyntax"
	ForbiddenSubstring              = "ForbiddenSubstring"
	InvalidHotfixParameter          = "InvalidHotfixParameter"
	EmptyCategory                   = "EmptyCategory"
	ClassHotfix                     = "ClassHotfix"
	GameWillOverwriteValue          = "GameWillOverwriteValue"
	IncompleteBVC                   = "IncompleteBVC"
	MismatchingQuotes               = "MismatchingQuotes"
	MutuallyExclusive               = "MutuallyExclusive"
	CompleteClass                   = "CompleteClass"
	Hotfix                          = "Hotfix"
	SayCommand                      = "SayCommand"
	ExecCommand                     = "ExecCommand"
	Comment                         = "Comment"
	LeafHotfix                      = "LeafHotfix"
	LeafCommand                     = "LeafCommand"
	LeafComment                     = "LeafComment"
	LeafSelected                    = "LeafSelected"

	// CheckerFailure marks an element on which some checker could not run.
	CheckerFailure = "CheckerFailure"
)

// Category names written by other tools to flag broken files.
const (
	InvalidHotfixCategoryName = "!!! Invalid hotfixes in the file that could not be converted, and that don't work in-game !!!"
	FilterToolSavedName       = "This was made in BLCMM, opened in Filtertool, then saved by FilterTool. This file is corrupt and unrepairable. Obtain a new copy!"
)

// ClassIndex tells whether a name is a game class rather than an object.
type ClassIndex interface {
	IsClass(name string) (bool, error)
}

// Context is what a checker may consult besides the element itself.
type Context struct {
	Patch     *model.Patch
	Constants *config.Constants
	Classes   ClassIndex
}

// subject caches the lowercased statement parts shared by many checkers.
type subject struct {
	object, field, value string
	inHotfix             bool
}

func newSubject(ctx *Context, n *model.Node) *subject {
	if !n.Kind.IsStatement() {
		return &subject{}
	}
	return &subject{
		object:   strings.ToLower(n.Object),
		field:    strings.ToLower(n.Field),
		value:    strings.ToLower(n.Value),
		inHotfix: ctx.Patch.IsInHotfix(n.ID),
	}
}

type checkFunc func(ctx *Context, n *model.Node, s *subject) (bool, error)

// Checker is one entry of the registry.
type Checker struct {
	Kind        Kind
	Name        string
	Severity    model.Severity
	Description string
	// Propagating checkers are counted in every ancestor.
	Propagating bool
	// DependsOnChildren checkers are re-run on a container when its
	// children change.
	DependsOnChildren bool

	check checkFunc
}

func (c *Checker) String() string { return c.Name }

// Registry is an ordered list of checkers; earlier entries are reported
// first.
type Registry []*Checker

var (
	numberFields  = []string{"BaseValueConstant", "BaseValueScaleConstant", "R", "G", "B", "A"}
	integerFields = []string{"MinimumGrade", "MaximumGrade"}
	booleanFields = []string{
		"bExternalSlot", "bRunEffectsAsSkill", "bDisabled", "IsEnabled", "bIncludeInFunStats",
		"bIncludeAlliesAsTarget", "bEnforceMinimumGrade", "bEnforceMaximumGrade",
	}
	restrictedFields = []struct {
		field  string
		values []string
	}{
		{"EffectTarget", []string{"TARGET_Allies", "TARGET_None", "TARGET_Pets", "TARGET_Self", "TARGET_Enemies", "TARGET_All"}},
		{"ModifierType", []string{"MT_PreAdd", "MT_Scale", "MT_PostAdd"}},
	}
)

// DefaultRegistry returns the built-in checkers in reporting order.
func DefaultRegistry() Registry {
	r := Registry{
		{Kind: KindFilterToolSaved, Name: FilterToolSaved, Severity: model.SeverityInformational,
			Description: FilterToolSavedName, Propagating: true, check: checkFilterToolSaved},
		{Kind: KindHotfixImportError, Name: HotfixImportError, Severity: model.SeveritySyntaxError,
			Description: "Invalid hotfixes found in file - could not be fully imported", Propagating: true, check: checkHotfixImportError},
		{Kind: KindHotfixSyntaxInNormalCommand, Name: HotfixSyntaxInNormalCommand, Severity: model.SeveritySyntaxError,
			Description: "This normal set command uses hotfix syntax", Propagating: true, check: checkHotfixSyntaxInNormalCommand},
		{Kind: KindIncompleteSetCommand, Name: IncompleteSetCommand, Severity: model.SeveritySyntaxError,
			Description: "This command has too few arguments", Propagating: true, check: checkIncompleteSetCommand},
		{Kind: KindInvalidArgumentForSquareBracket, Name: InvalidArgumentForSquareBracket, Severity: model.SeveritySyntaxError,
			Description: "The argument in square braces must be an integer", Propagating: true, check: checkSquareBrackets},
		{Kind: KindMismatchingBrackets, Name: MismatchingBrackets, Severity: model.SeveritySyntaxError,
			Description: "This command has a faulty set of brackets", Propagating: true, check: checkMismatchingBrackets},
		{Kind: KindFieldSyntax, Name: FieldSyntax, Severity: model.SeveritySyntaxError,
			Description: "Field syntax error", Propagating: true, check: checkFieldSyntax},
		{Kind: KindObjectSyntax, Name: ObjectSyntax, Severity: model.SeveritySyntaxError,
			Description: "Object syntax error", Propagating: true, check: checkObjectSyntax},
		{Kind: KindForbiddenSubstring, Name: ForbiddenSubstring, Severity: model.SeveritySyntaxError,
			Description: "This element contains text that would corrupt the saved file", Propagating: true, check: checkForbiddenSubstring},
		{Kind: KindInvalidHotfixParameter, Name: InvalidHotfixParameter, Severity: model.SeverityContentError,
			Description: "The hotfix parameter is not a known level or package", Propagating: true, check: checkHotfixParameter},
	}
	for _, f := range numberFields {
		r = append(r, fieldChecker(KindNumberField, "NumberField", f, "must be a number", invalidNumber))
	}
	for _, f := range integerFields {
		r = append(r, fieldChecker(KindIntegerField, "IntegerField", f, "must be an integer", invalidInteger))
	}
	for _, f := range booleanFields {
		r = append(r, fieldChecker(KindBooleanField, "BooleanField", f,
			"must have one of the following values: [True, False]", invalidRestricted([]string{"True", "False"})))
	}
	for _, rf := range restrictedFields {
		r = append(r, fieldChecker(KindRestrictedField, "RestrictedField", rf.field,
			fmt.Sprintf("must have one of the following values: [%s]", strings.Join(rf.values, ", ")), invalidRestricted(rf.values)))
	}
	r = append(r, Registry{
		{Kind: KindEmptyCategory, Name: EmptyCategory, Severity: model.SeverityContentError,
			Description: "This category is empty", Propagating: true, DependsOnChildren: true, check: checkEmptyCategory},
		{Kind: KindClassHotfix, Name: ClassHotfix, Severity: model.SeverityContentError,
			Description: "Hotfixes can not be applied to an entire class, only to specific objects.", Propagating: true, check: checkClassHotfix},
		{Kind: KindGameWillOverwriteValue, Name: GameWillOverwriteValue, Severity: model.SeverityWarning,
			Description: "This command *may* be overwritten by the game, so it might have no effect - Check in-game", check: checkGameWillOverwrite},
		{Kind: KindIncompleteBVC, Name: IncompleteBVC, Severity: model.SeverityWarning,
			Description: "This command contains an incomplete BVC/BVA/ID/BVSC tuple.", check: checkIncompleteBVC},
		{Kind: KindMismatchingQuotes, Name: MismatchingQuotes, Severity: model.SeverityWarning,
			Description: "This command has mismatching quotes", check: checkMismatchingQuotes},
		{Kind: KindMutuallyExclusive, Name: MutuallyExclusive, Severity: model.SeverityInformational,
			Description: "This folder contains mutually-exclusive options", Propagating: true, check: checkMutuallyExclusive},
		{Kind: KindCompleteClass, Name: CompleteClass, Severity: model.SeverityInformational,
			Description: "This command affects ALL objects of a certain class", check: checkCompleteClass},
		{Kind: KindHotfix, Name: Hotfix, Severity: model.SeverityInformational, check: checkHotfixLeaf},
		{Kind: KindSayCommand, Name: SayCommand, Severity: model.SeverityInformational, Propagating: true, check: commandComment("say")},
		{Kind: KindExecCommand, Name: ExecCommand, Severity: model.SeverityInformational, Propagating: true, check: commandComment("exec")},
		{Kind: KindComment, Name: Comment, Severity: model.SeverityInformational, check: checkLeafComment},
		{Kind: KindLeafHotfix, Name: LeafHotfix, Severity: model.SeverityInvisible, Propagating: true, check: checkHotfixLeaf},
		{Kind: KindLeafCommand, Name: LeafCommand, Severity: model.SeverityInvisible, Propagating: true, check: checkLeafCommand},
		{Kind: KindLeafComment, Name: LeafComment, Severity: model.SeverityInvisible, Propagating: true, check: checkLeafComment},
		{Kind: KindLeafSelected, Name: LeafSelected, Severity: model.SeverityInvisible, Propagating: true, check: checkLeafSelected},
	}...)
	return r
}

func fieldChecker(kind Kind, prefix, field, what string, invalid func(value string, from int) bool) *Checker {
	lower := strings.ToLower(field)
	return &Checker{
		Kind:        kind,
		Name:        fmt.Sprintf("%s(%s)", prefix, field),
		Severity:    model.SeverityContentError,
		Description: fmt.Sprintf("The field %s %s", lower, what),
		Propagating: true,
		check: func(_ *Context, n *model.Node, s *subject) (bool, error) {
			if !n.Kind.IsStatement() {
				return false, nil
			}
			return fieldValueInvalid(lower, s.field, s.value, invalid), nil
		},
	}
}

// Lookup returns the checker with the given name.
func (r Registry) Lookup(name string) (*Checker, bool) {
	for _, c := range r {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Names returns the checker names in registry order.
func (r Registry) Names() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Name
	}
	return out
}
