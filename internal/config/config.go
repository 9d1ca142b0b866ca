// Package config holds the validation constants consumed by the patch model:
// substrings that would break the on-disk format, reserved category names and
// the allow-lists for hotfix parameters.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (BLCMM_FIELD_SEPARATORS, ...).
const EnvPrefix = "BLCMM"

// Constants is the set of validation rules shared by the model and the checkers.
type Constants struct {
	// ForbiddenSubstrings may not appear in any user-supplied text
	// (names, objects, fields, values, comments).
	ForbiddenSubstrings []string `mapstructure:"forbidden_substrings" hcl:"forbidden_substrings,optional"`
	// CategoryForbiddenSubstrings may additionally not appear in category names.
	CategoryForbiddenSubstrings []string `mapstructure:"category_forbidden_substrings" hcl:"category_forbidden_substrings,optional"`
	// ReservedCategoryNames are names a category may not have (exact match).
	ReservedCategoryNames []string `mapstructure:"reserved_category_names" hcl:"reserved_category_names,optional"`
	// LevelPatterns is the allow-list for LEVEL hotfix parameters (doublestar globs).
	LevelPatterns []string `mapstructure:"level_patterns" hcl:"level_patterns,optional"`
	// PackagePatterns is the allow-list for ONDEMAND hotfix parameters (doublestar globs).
	PackagePatterns []string `mapstructure:"package_patterns" hcl:"package_patterns,optional"`
	// FieldSeparators are the characters that end the base field of a path.
	FieldSeparators string `mapstructure:"field_separators" hcl:"field_separators,optional"`
}

// Default returns the built-in constants.
func Default() *Constants {
	return &Constants{
		ForbiddenSubstrings: []string{
			"<code>", "</code>", "<key>", "</key>", "<value>", "</value>",
			"<profile = ", "<on>", "<off>", "<hotfix>", "<MUT>", "<inProfile",
			"<comment>", "</comment>",
		},
		CategoryForbiddenSubstrings: []string{"<", ">"},
		ReservedCategoryNames: []string{
			"code", "key", "value", "profile = ", "on", "off", "hotfix", "MUT", "inProfile", "comment",
		},
		LevelPatterns:   []string{"*_P", "*_p"},
		PackagePatterns: []string{"GD_*", "*_Streaming"},
		FieldSeparators: ".[",
	}
}

// Load reads constants from path. An empty path yields the defaults with
// environment overrides applied. Files ending in .hcl are decoded with HCL;
// everything else goes through viper (yaml, toml, json).
func Load(path string) (*Constants, error) {
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		return loadHCL(path)
	}

	defaults := Default()
	v := viper.New()
	v.SetDefault("forbidden_substrings", defaults.ForbiddenSubstrings)
	v.SetDefault("category_forbidden_substrings", defaults.CategoryForbiddenSubstrings)
	v.SetDefault("reserved_category_names", defaults.ReservedCategoryNames)
	v.SetDefault("level_patterns", defaults.LevelPatterns)
	v.SetDefault("package_patterns", defaults.PackagePatterns)
	v.SetDefault("field_separators", defaults.FieldSeparators)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read constants %s: %w", path, err)
		}
	}

	var c Constants
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse constants: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadHCL(path string) (*Constants, error) {
	var c Constants
	if err := hclsimple.DecodeFile(path, nil, &c); err != nil {
		return nil, fmt.Errorf("decode constants %s: %w", path, err)
	}
	c.fillDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// fillDefaults replaces unset lists with the built-in values. HCL has no
// notion of defaults, so optional attributes come back empty.
func (c *Constants) fillDefaults() {
	d := Default()
	if c.ForbiddenSubstrings == nil {
		c.ForbiddenSubstrings = d.ForbiddenSubstrings
	}
	if c.CategoryForbiddenSubstrings == nil {
		c.CategoryForbiddenSubstrings = d.CategoryForbiddenSubstrings
	}
	if c.ReservedCategoryNames == nil {
		c.ReservedCategoryNames = d.ReservedCategoryNames
	}
	if c.LevelPatterns == nil {
		c.LevelPatterns = d.LevelPatterns
	}
	if c.PackagePatterns == nil {
		c.PackagePatterns = d.PackagePatterns
	}
	if c.FieldSeparators == "" {
		c.FieldSeparators = d.FieldSeparators
	}
}

func (c *Constants) validate() error {
	if c.FieldSeparators == "" {
		return fmt.Errorf("field_separators must not be empty")
	}
	for _, p := range append(append([]string{}, c.LevelPatterns...), c.PackagePatterns...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid allow-list pattern %q", p)
		}
	}
	for _, s := range c.ForbiddenSubstrings {
		if s == "" {
			return fmt.Errorf("forbidden_substrings contains an empty entry")
		}
	}
	return nil
}

// FindForbidden returns the first forbidden substring contained in s, or "".
func (c *Constants) FindForbidden(s string) string {
	for _, f := range c.ForbiddenSubstrings {
		if strings.Contains(s, f) {
			return f
		}
	}
	return ""
}

// CategoryNameProblem describes why name is not a valid category name, or
// returns "" when it is.
func (c *Constants) CategoryNameProblem(name string) string {
	if strings.TrimSpace(name) == "" {
		return "name must not be empty"
	}
	if f := c.FindForbidden(name); f != "" {
		return fmt.Sprintf("name contains forbidden text %q", f)
	}
	for _, f := range c.CategoryForbiddenSubstrings {
		if strings.Contains(name, f) {
			return fmt.Sprintf("name contains forbidden text %q", f)
		}
	}
	for _, r := range c.ReservedCategoryNames {
		if name == r {
			return fmt.Sprintf("%q is a reserved name", name)
		}
	}
	return ""
}

// ValidLevel reports whether level is an allowed LEVEL hotfix parameter.
// "None" (any level) is always allowed.
func (c *Constants) ValidLevel(level string) bool {
	if strings.EqualFold(level, "none") {
		return true
	}
	return matchAny(c.LevelPatterns, level)
}

// ValidPackage reports whether pkg is an allowed ONDEMAND hotfix parameter.
func (c *Constants) ValidPackage(pkg string) bool {
	return matchAny(c.PackagePatterns, pkg)
}

func matchAny(patterns []string, s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, s); ok {
			return true
		}
	}
	return false
}
