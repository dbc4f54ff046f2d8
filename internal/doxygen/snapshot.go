package doxygen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/zstd"
)

// SaveSnapshot compresses and writes a combined tree to disk.
func SaveSnapshot(doc *etree.Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer os.Remove(tmp)

	w, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := doc.WriteTo(w); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a tree written by SaveSnapshot.
func LoadSnapshot(path string) (*etree.Document, error) {
	if filepath.Ext(path) != ".zst" {
		return nil, fmt.Errorf("snapshot %s: expected .zst suffix", path)
	}
	return readXML(path)
}

// SnapshotFresh reports whether the cache file at path (a snapshot or a
// symbol inventory) exists and is newer than the index file of the Doxygen
// output at xmlPath.
func SnapshotFresh(path, xmlPath string) bool {
	snap, err := os.Stat(path)
	if err != nil {
		return false
	}
	src := xmlPath
	if info, err := os.Stat(xmlPath); err == nil && info.IsDir() {
		if src, err = findXML(xmlPath, "index"); err != nil {
			return false
		}
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	return snap.ModTime().After(srcInfo.ModTime())
}
