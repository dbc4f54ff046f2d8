package cmd

import (
	"github.com/jcdickinson/doxyrst/internal/rst"
	"github.com/spf13/cobra"
)

var renderBrief bool

var renderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Print the description of a compound or member as reStructuredText",
	Example: `  doxyrst render OpenMM::Force
  doxyrst render OpenMM.Force.getName --brief`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderBrief, "brief", false, "render the brief description")
}

func runRender(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	sym, err := idx.Lookup(args[0])
	if err != nil {
		return err
	}

	tag := "detaileddescription"
	if renderBrief {
		tag = "briefdescription"
	}
	lines, err := rst.FormatParagraph(sym.Element.SelectElement(tag), idx, renderOptions()...)
	if err != nil {
		return err
	}
	printLines(lines)
	return nil
}
