package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/invert"
)

var (
	invertDict    string
	invertOut     string
	invertWorkers int
	invertMissing bool
	invertDryRun  bool
)

var invertCmd = &cobra.Command{
	Use:   "invert [patch] [category path]",
	Short: "Add a category that undoes the statements of another",
	Long: `Invert looks up the current value of every field written below the
category in the object dictionary and adds a sibling category,
"<name>'s inversion", that writes those values back. Statements that cannot
be resolved land in a "Could not be inverted" sub-category.

The category path is a slash separated list of category names below the
root; an empty path inverts the whole patch.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if invertDict == "" {
			return errors.New("invert needs an object dictionary (--dict)")
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}

		constants, err := loadConstants()
		if err != nil {
			return err
		}
		p, err := loadPatch(args[0], constants)
		if err != nil {
			return err
		}
		category, err := findCategory(p, path)
		if err != nil {
			return err
		}
		dict, err := openDictionary(invertDict)
		if err != nil {
			return err
		}
		defer func() { _ = dict.Close() }()

		r, err := invert.Plan(cmd.Context(), p, category, dict, invert.Options{
			Workers:        invertWorkers,
			MissingAsEmpty: invertMissing,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d inverted, %d could not be inverted\n", r.Name, len(r.Inverted), len(r.Uninverted))
		for _, s := range r.Uninverted {
			fmt.Fprintf(out, "  #%d %s: %s\n", s.Source, s.Code(), s.Ambiguity.Reason)
		}
		if invertDryRun {
			return nil
		}

		top, err := invert.Apply(p, category, r)
		if err != nil {
			return err
		}
		dest := invertOut
		if dest == "" {
			dest = args[0]
		}
		if err := savePatch(dest, p); err != nil {
			return err
		}
		log.Info("inversion written", "category", top, "path", dest)
		return nil
	},
}

func init() {
	invertCmd.Flags().StringVar(&invertDict, "dict", "", "Object dictionary built with 'blcmm build'")
	invertCmd.Flags().StringVar(&invertOut, "out", "", "Write the result here instead of over the input")
	invertCmd.Flags().IntVar(&invertWorkers, "workers", 0, "Classes streamed in parallel (default GOMAXPROCS)")
	invertCmd.Flags().BoolVar(&invertMissing, "missing-as-empty", false, "Invert fields absent from the dump to an empty value")
	invertCmd.Flags().BoolVar(&invertDryRun, "dry-run", false, "Print the plan without modifying the patch")
	rootCmd.AddCommand(invertCmd)
}
