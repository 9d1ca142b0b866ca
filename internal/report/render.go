package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/openblcmm/blcmm/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts text, json, yaml (or yml) and toml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, yaml or toml)", s)
}

// Palette shared by the text renderer.
const (
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorTitle   = lipgloss.Color("#7C3AED")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	sectionStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
)

func severityStyle(name string) lipgloss.Style {
	s, err := model.ParseSeverity(name)
	if err != nil {
		return mutedStyle
	}
	switch {
	case s >= model.SeverityContentError:
		return errorStyle
	case s == model.SeverityWarning:
		return warningStyle
	case s == model.SeverityInformational:
		return infoStyle
	}
	return mutedStyle
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case model.FullyOverwritten.String():
		return errorStyle
	case model.PartiallyOverwritten.String():
		return warningStyle
	}
	return infoStyle
}

// Write renders r to w.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatText:
		_, err := io.WriteString(w, Text(r))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("unknown output format %q", f)
}

// Text renders r for a terminal.
func Text(r *Report) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(r.Name))
	sb.WriteString(" ")
	sb.WriteString(mutedStyle.Render("digest " + shortDigest(r.Digest)))
	sb.WriteString("\n")

	if len(r.Totals) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Totals") + "\n")
		for _, k := range slices.Sorted(maps.Keys(r.Totals)) {
			fmt.Fprintf(&sb, "  %-40s %d\n", k, r.Totals[k])
		}
	}

	if len(r.Annotations) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Annotations") + "\n")
		for _, a := range r.Annotations {
			fmt.Fprintf(&sb, "  %s %s\n", severityStyle(a.Severity).Render("["+a.Severity+"]"), location(a.Path, a.Code))
			for _, s := range a.Statuses {
				fmt.Fprintf(&sb, "      %s %s\n", severityStyle(s.Severity).Render(s.Checker+":"), s.Description)
			}
		}
	}

	if len(r.Overwrites) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Overwrites") + "\n")
		for _, o := range r.Overwrites {
			fmt.Fprintf(&sb, "  %s %s\n", stateStyle(o.State).Render("["+o.State+"]"), location(o.Path, o.Code))
			for _, ref := range o.Overwriters {
				fmt.Fprintf(&sb, "      %s #%d %s\n", mutedStyle.Render(verb("overwritten by", ref.Partial)), ref.ID, ref.Code)
			}
			for _, ref := range o.Overwritten {
				fmt.Fprintf(&sb, "      %s #%d %s\n", mutedStyle.Render(verb("overwrites", ref.Partial)), ref.ID, ref.Code)
			}
		}
	}

	if len(r.Annotations) == 0 && len(r.Overwrites) == 0 {
		sb.WriteString(mutedStyle.Render("no findings") + "\n")
	}
	return sb.String()
}

func verb(v string, partial bool) string {
	if partial {
		return v + " (partly)"
	}
	return v
}

func location(path, code string) string {
	if path == "" {
		return code
	}
	return mutedStyle.Render(path+" >") + " " + code
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
