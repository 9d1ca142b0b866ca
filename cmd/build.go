package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/dictionary"
)

var buildAppend bool

var buildCmd = &cobra.Command{
	Use:   "build [dumps dir] [output.db]",
	Short: "Build an object dictionary database from a directory of object dumps",
	Long: `Build reads every .dump or .txt file below the dumps directory (optionally
zstd or gzip compressed) and indexes the objects it finds by name and class.
The resulting database is what check --dict and invert --dict read.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]

		if !buildAppend {
			if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", output, err)
			}
		}
		b, err := dictionary.NewBuilder(output)
		if err != nil {
			return err
		}

		start := time.Now()
		log.Info("building dictionary", "source", source, "output", output)
		stats, err := dictionary.BuildFromDumps(cmd.Context(), osfs.New(source), "/", b)
		if cerr := b.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d dumps from %d files in %v.\n", stats.Dumps, stats.Files, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildAppend, "append", false, "Add to an existing database instead of replacing it")
	rootCmd.AddCommand(buildCmd)
}
