package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/model"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List and manage the selection profiles of a patch",
}

var profilesListCmd = &cobra.Command{
	Use:   "list [patch]",
	Short: "List profiles; the current one is marked with *",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openForProfiles(args[0])
		if err != nil {
			return err
		}
		total := len(p.Statements(p.Root()))
		for _, name := range p.Profiles() {
			pr, _ := p.Profile(name)
			mark := " "
			if name == p.CurrentProfile() {
				mark = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d/%d selected)\n", mark, name, pr.Len(), total)
		}
		return nil
	},
}

// profileEdit builds a subcommand that mutates the profiles of a patch and
// saves it.
func profileEdit(use, short string, nargs int, fn func(p *model.Patch, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openForProfiles(args[0])
			if err != nil {
				return err
			}
			if err := fn(p, args[1:]); err != nil {
				return err
			}
			return savePatch(args[0], p)
		},
	}
}

func openForProfiles(path string) (*model.Patch, error) {
	constants, err := loadConstants()
	if err != nil {
		return nil, err
	}
	return loadPatch(path, constants)
}

func init() {
	profilesCmd.AddCommand(
		profilesListCmd,
		profileEdit("create [patch] [name]", "Save the current selection as a new profile", 2,
			func(p *model.Patch, args []string) error { return p.CreateProfile(args[0]) }),
		profileEdit("use [patch] [name]", "Make a profile current and apply its selection", 2,
			func(p *model.Patch, args []string) error { return p.SetCurrentProfile(args[0]) }),
		profileEdit("rename [patch] [old] [new]", "Rename a profile", 3,
			func(p *model.Patch, args []string) error { return p.RenameProfile(args[0], args[1]) }),
		profileEdit("delete [patch] [name]", "Delete a profile", 2,
			func(p *model.Patch, args []string) error { return p.DeleteProfile(args[0]) }),
	)
	rootCmd.AddCommand(profilesCmd)
}
