package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/doxyrst/internal/config"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/rst"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	debug      bool
	noSnapshot bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "doxyrst",
	Short: "Render Doxygen XML documentation as reStructuredText for Sphinx",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noSnapshot, "no-snapshot", false, "always parse the XML instead of reusing a cached snapshot")
	rootCmd.PersistentFlags().String("xml-dir", "", "Doxygen XML output directory or combined XML file (default \"xml\")")
	viper.BindPFlag("xml_dir", rootCmd.PersistentFlags().Lookup("xml-dir"))

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(autodocCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadIndex builds the symbol index for the configured XML location,
// reusing the compressed snapshot of a directory while it is fresh.
func loadIndex(ctx context.Context) (*doxygen.Index, error) {
	xmlPath := string(cfg.XMLDir)
	info, err := os.Stat(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("doxygen xml: %w", err)
	}

	useSnapshot := info.IsDir() && !noSnapshot
	snap := config.SnapshotPath(xmlPath)
	if useSnapshot && doxygen.SnapshotFresh(snap, xmlPath) {
		doc, err := doxygen.LoadSnapshot(snap)
		if err == nil {
			slog.Debug("using snapshot", "path", snap)
			return doxygen.NewIndex(doc.Root()), nil
		}
		slog.Warn("ignoring unreadable snapshot", "path", snap, "error", err)
	}

	doc, err := doxygen.Load(ctx, xmlPath, cfg.Workers)
	if err != nil {
		return nil, err
	}
	if useSnapshot {
		if err := doxygen.SaveSnapshot(doc, snap); err != nil {
			slog.Warn("failed to save snapshot", "path", snap, "error", err)
		}
	}
	return doxygen.NewIndex(doc.Root()), nil
}

func renderOptions() []rst.Option {
	return []rst.Option{rst.WithCodeLanguage(cfg.Render.CodeLanguage)}
}

func printLines(lines []string) {
	for _, l := range lines {
		fmt.Println(l)
	}
}
