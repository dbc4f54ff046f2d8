package cmd

import (
	"fmt"

	"github.com/jcdickinson/doxyrst/internal/autosummary"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate [rst files...]",
	Short: "Write stub pages for autodoxysummary entries",
	Long: `Scans the given reStructuredText files for autodoxysummary directives and
writes a stub page for every listed name. Without files, every namespace
and page in the Doxygen output gets a stub. Existing files are left alone.`,
	Example: `  doxyrst generate docs/index.rst
  doxyrst generate -o docs/api`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("output-dir", "o", "", "directory for generated stubs (default: each directive's :toctree:)")
	generateCmd.Flags().String("template-dir", "", "directory with templates overriding the built-in ones")
	generateCmd.Flags().String("suffix", "", "file suffix for stubs (default \".rst\")")
	viper.BindPFlag("output.dir", generateCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("output.template_dir", generateCmd.Flags().Lookup("template-dir"))
	viper.BindPFlag("output.suffix", generateCmd.Flags().Lookup("suffix"))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}

	var items []autosummary.Item
	if len(args) > 0 {
		items, err = autosummary.FindInFiles(args)
		if err != nil {
			return err
		}
	} else {
		items = autosummary.FindDocumented(idx)
	}

	written, err := autosummary.Generate(cmd.Context(), idx, items, autosummary.Options{
		OutputDir:   string(cfg.Output.Dir),
		Suffix:      cfg.Output.Suffix,
		TemplateDir: string(cfg.Output.TemplateDir),
		Workers:     cfg.Workers,
		Render:      renderOptions(),
	})
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Println(p)
	}
	return nil
}
