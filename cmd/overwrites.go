package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/report"
)

var (
	overwritesFormat string
	gotoID           uint32
	gotoPartial      bool
)

var overwritesCmd = &cobra.Command{
	Use:   "overwrites [patch]",
	Short: "List statements that overwrite or are overwritten by others",
	Long: `Without --goto, print every statement that takes part in an overwrite
relation. With --goto ID, print the statement that the given one jumps to:
its last full overwriter, or with --partial the most recent statement it
shares a partial overwrite with.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		constants, err := loadConstants()
		if err != nil {
			return err
		}
		p, err := loadPatch(args[0], constants)
		if err != nil {
			return err
		}
		e := annotate(p, constants, nil)

		if cmd.Flags().Changed("goto") {
			id := model.NodeID(gotoID)
			if _, err := p.Node(id); err != nil {
				return err
			}
			res := e.Resolver()
			target, ok := res.GoToOverwriter(id)
			if gotoPartial {
				target, ok = res.GoToPartialOverwritten(id)
			}
			if !ok {
				return fmt.Errorf("#%d has no %s", id, gotoLabel(gotoPartial))
			}
			n, err := p.Node(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", target, n.Code())
			return nil
		}

		format, err := report.ParseFormat(overwritesFormat)
		if err != nil {
			return err
		}
		r := report.Build(filepath.Base(args[0]), p, e, report.Options{MinSeverity: model.SeveritySyntaxError + 1, Overwrites: true})
		r.Totals = nil
		return report.Write(cmd.OutOrStdout(), r, format)
	},
}

func gotoLabel(partial bool) string {
	if partial {
		return "partial overwrite relation"
	}
	return "full overwriter"
}

func init() {
	overwritesCmd.Flags().StringVarP(&overwritesFormat, "format", "o", "text", "Output format (text, json, yaml, toml)")
	overwritesCmd.Flags().Uint32Var(&gotoID, "goto", 0, "Print the jump target of this statement id")
	overwritesCmd.Flags().BoolVar(&gotoPartial, "partial", false, "With --goto, follow partial overwrites")
	rootCmd.AddCommand(overwritesCmd)
}
