package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/doxyrst/internal/config"
	"github.com/jcdickinson/doxyrst/internal/db"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/rst"
	"github.com/spf13/cobra"
)

var lookupLimit int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Record every documented symbol in the local inventory",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <pattern>",
	Short: "Search the inventory by qualified name",
	Example: `  doxyrst lookup Force
  doxyrst lookup "Force::get" --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().IntVar(&lookupLimit, "limit", 20, "maximum number of results")
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}

	path := config.InventoryPath(string(cfg.XMLDir))
	database, err := db.New(path)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer database.Close()

	symbols := inventorySymbols(idx)
	if err := database.ReplaceSymbols(symbols); err != nil {
		return err
	}
	n, err := database.CountSymbols()
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d symbols into %s\n", n, path)
	return nil
}

func inventorySymbols(idx *doxygen.Index) []db.Symbol {
	opts := renderOptions()
	var out []db.Symbol
	for _, s := range idx.Symbols() {
		brief, err := rst.Summary(s.Element.SelectElement("briefdescription"), idx, opts...)
		if err != nil {
			slog.Warn("brief description not rendered", "symbol", s.QualifiedName(), "error", err)
		}
		out = append(out, db.Symbol{
			RefID:         s.ID,
			Kind:          s.Kind.String(),
			Element:       s.ElementKind(),
			Name:          s.Name,
			QualifiedName: s.QualifiedName(),
			Parent:        s.Parent,
			Brief:         brief,
		})
	}
	return out
}

func runLookup(cmd *cobra.Command, args []string) error {
	xmlPath := string(cfg.XMLDir)
	path := config.InventoryPath(xmlPath)
	if _, err := os.Stat(path); err == nil && !doxygen.SnapshotFresh(path, xmlPath) {
		slog.Warn("inventory is older than the XML; run `doxyrst index` to refresh it", "path", path)
	}
	database, err := db.New(path)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer database.Close()

	n, err := database.CountSymbols()
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("inventory is empty; run `doxyrst index` first")
		return nil
	}

	results, err := database.SearchSymbols(args[0], lookupLimit)
	if err != nil {
		return err
	}
	for _, s := range results {
		fmt.Printf("%s\t%s %s\t%s\n", s.QualifiedName, s.Kind, s.Element, s.Brief)
	}
	return nil
}
