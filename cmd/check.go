package cmd

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/report"
)

var (
	checkDict     string
	checkFormat   string
	minSeverity   string
	withOverwrite bool
	failOn        string
)

// ErrFindings is returned by check when --fail-on matched something.
var ErrFindings = errors.New("findings at or above the --fail-on severity")

var checkCmd = &cobra.Command{
	Use:   "check [patch]",
	Short: "Annotate a patch and print the findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(checkFormat)
		if err != nil {
			return err
		}
		opts := report.Options{Overwrites: withOverwrite}
		if minSeverity != "" {
			if opts.MinSeverity, err = model.ParseSeverity(minSeverity); err != nil {
				return err
			}
		}

		r, highest, err := checkPatch(args[0], checkDict, opts)
		if err != nil {
			return err
		}
		if err := report.Write(cmd.OutOrStdout(), r, format); err != nil {
			return err
		}

		if failOn != "" {
			threshold, err := model.ParseSeverity(failOn)
			if err != nil {
				return err
			}
			if highest >= threshold {
				return ErrFindings
			}
		}
		return nil
	},
}

// checkPatch loads and annotates the patch at path and returns its report
// together with the highest severity found anywhere in it. dictDB may be
// empty.
func checkPatch(path, dictDB string, opts report.Options) (*report.Report, model.Severity, error) {
	constants, err := loadConstants()
	if err != nil {
		return nil, model.SeverityNone, err
	}
	p, err := loadPatch(path, constants)
	if err != nil {
		return nil, model.SeverityNone, err
	}
	dict, err := openDictionary(dictDB)
	if err != nil {
		return nil, model.SeverityNone, err
	}
	if dict != nil {
		defer func() { _ = dict.Close() }()
	}

	e := annotate(p, constants, dict)
	return report.Build(filepath.Base(path), p, e, opts), e.SubtreeSeverity(p.Root()), nil
}

func init() {
	checkCmd.Flags().StringVar(&checkDict, "dict", "", "Object dictionary built with 'blcmm build' (enables class checks)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "o", "text", "Output format (text, json, yaml, toml)")
	checkCmd.Flags().StringVar(&minSeverity, "min-severity", "", "Lowest severity to report (default info)")
	checkCmd.Flags().BoolVar(&withOverwrite, "overwrites", false, "Include the overwrite section")
	checkCmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero when a finding reaches this severity")
	rootCmd.AddCommand(checkCmd)
}
