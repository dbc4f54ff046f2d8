package doxygen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// RootTag is the tag of the synthetic root holding a combined tree.
const RootTag = "doxygen"

// Load reads Doxygen XML output into a single tree. A directory is read as
// index.xml plus one file per compound; a file is parsed as an already
// combined tree. Either may be zstd compressed with a .zst suffix.
func Load(ctx context.Context, path string, workers int) (*etree.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading doxygen output: %w", err)
	}
	if !info.IsDir() {
		return readXML(path)
	}
	return loadDir(ctx, path, workers)
}

func loadDir(ctx context.Context, dir string, workers int) (*etree.Document, error) {
	indexPath, err := findXML(dir, "index")
	if err != nil {
		return nil, err
	}
	indexDoc, err := readXML(indexPath)
	if err != nil {
		return nil, err
	}
	indexRoot := indexDoc.Root()
	if indexRoot == nil {
		return nil, fmt.Errorf("%s: empty document", indexPath)
	}

	entries := indexRoot.SelectElements("compound")
	defs := make([][]*etree.Element, len(entries))

	if workers <= 0 {
		workers = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range entries {
		refid := entry.SelectAttrValue("refid", "")
		if refid == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := findXML(dir, refid)
			if errors.Is(err, fs.ErrNotExist) {
				slog.Warn("missing compound file", "refid", refid, "dir", dir)
				return nil
			}
			if err != nil {
				return err
			}
			doc, err := readXML(p)
			if err != nil {
				return err
			}
			if root := doc.Root(); root != nil {
				defs[i] = root.SelectElements("compounddef")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := etree.NewDocument()
	combined.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := combined.CreateElement(RootTag)
	if v := indexRoot.SelectAttrValue("version", ""); v != "" {
		root.CreateAttr("version", v)
	}
	for _, entry := range entries {
		root.AddChild(entry.Copy())
	}
	count := 0
	for _, cds := range defs {
		for _, cd := range cds {
			root.AddChild(cd)
			count++
		}
	}
	slog.Debug("loaded doxygen output", "dir", dir, "compounds", count)
	return combined, nil
}

// findXML returns the path of name.xml or name.xml.zst inside dir.
func findXML(dir, name string) (string, error) {
	for _, suffix := range []string{".xml", ".xml.zst"} {
		p := filepath.Join(dir, name+suffix)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s.xml in %s: %w", name, dir, fs.ErrNotExist)
}

func readXML(path string) (*etree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	doc, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a single XML document.
func Parse(r io.Reader) (*etree.Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseString is Parse for in-memory XML.
func ParseString(s string) (*etree.Document, error) {
	return Parse(strings.NewReader(s))
}
