package cmd

import (
	"github.com/jcdickinson/doxyrst/internal/autodoc"
	"github.com/spf13/cobra"
)

var autodocOpts autodoc.ModuleOptions

var autodocCmd = &cobra.Command{
	Use:     "autodoc <module>",
	Short:   "Print the reference page of a module or namespace",
	Example: `  doxyrst autodoc physics --types --methods`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAutodoc,
}

func init() {
	autodocCmd.Flags().BoolVar(&autodocOpts.Types, "types", false, "document derived types")
	autodocCmd.Flags().BoolVar(&autodocOpts.Methods, "methods", false, "document functions and subroutines")
}

func runAutodoc(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	opts := autodocOpts
	opts.Render = renderOptions()
	lines, err := autodoc.Module(idx, args[0], opts)
	if err != nil {
		return err
	}
	printLines(lines)
	return nil
}
