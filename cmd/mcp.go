package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcdickinson/doxyrst/internal/config"
	"github.com/jcdickinson/doxyrst/internal/db"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve symbol lookup and rendering over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}

	inventory, err := openInventory(string(cfg.XMLDir))
	if err != nil {
		return err
	}
	if inventory != nil {
		defer inventory.Close()
	}

	server := mcp.NewServer(idx, inventory, renderOptions()...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()
	return waitForSignal(errCh)
}

// openInventory opens the inventory built by `doxyrst index` for xmlPath. It
// returns nil when there is none, it is empty, or the XML has been
// regenerated since, so lookups fall back to the in-memory index.
func openInventory(xmlPath string) (*db.DB, error) {
	path := config.InventoryPath(xmlPath)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	if !doxygen.SnapshotFresh(path, xmlPath) {
		slog.Info("inventory is older than the XML; run `doxyrst index` to refresh it", "path", path)
		return nil, nil
	}

	database, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening inventory: %w", err)
	}
	if n, err := database.CountSymbols(); err != nil || n == 0 {
		database.Close()
		return nil, nil
	}
	return database, nil
}

func waitForSignal(errCh chan error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		slog.Info("received signal", "signal", sig)
		return nil
	case err := <-errCh:
		return err
	}
}
