// Package autosummary finds autodoxysummary directives in reStructuredText
// sources and writes one stub page per documented compound.
package autosummary

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/rst"
	"golang.org/x/sync/errgroup"
)

// ErrNoTemplate is returned for compounds no stub template applies to.
var ErrNoTemplate = errors.New("no template for compound")

//go:embed templates/*.rst
var builtinTemplates embed.FS

const (
	classTemplate     = "doxyclass.rst"
	namespaceTemplate = "doxynamespace.rst"
	pageTemplate      = "doxypage.rst"
)

var (
	directiveRe = regexp.MustCompile(`^(\s*)\.\.\s+autodoxysummary::\s*`)
	itemRe      = regexp.MustCompile(`^\s+(~?[_a-zA-Z][a-zA-Z0-9_.:]*)\s*.*?`)
	toctreeRe   = regexp.MustCompile(`^\s+:toctree:\s*(.*?)\s*$`)
	templateRe  = regexp.MustCompile(`^\s+:template:\s*(.*?)\s*$`)
)

// Item is one documented name and the options of the directive listing it.
type Item struct {
	Name     string
	Toctree  string
	Template string
}

// FindInLines scans lines for autodoxysummary directives and returns their
// items. Toctree paths are made relative to filename's directory when
// filename is set.
func FindInLines(lines []string, filename string) []Item {
	var (
		items      []Item
		toctree    string
		tmpl       string
		inside     bool
		baseIndent string
	)

	for _, line := range lines {
		if inside {
			if m := toctreeRe.FindStringSubmatch(line); m != nil {
				toctree = m[1]
				if filename != "" {
					toctree = filepath.Join(filepath.Dir(filename), toctree)
				}
				continue
			}
			if m := templateRe.FindStringSubmatch(line); m != nil {
				tmpl = strings.TrimSpace(m[1])
				continue
			}
			if strings.HasPrefix(strings.TrimSpace(line), ":") {
				continue
			}
			if m := itemRe.FindStringSubmatch(line); m != nil {
				name := strings.TrimPrefix(strings.TrimSpace(m[1]), "~")
				items = append(items, Item{Name: name, Toctree: toctree, Template: tmpl})
				continue
			}
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, baseIndent+" ") {
				continue
			}
			inside = false
		}

		if m := directiveRe.FindStringSubmatch(line); m != nil {
			inside = true
			baseIndent = m[1]
			toctree = ""
			tmpl = ""
		}
	}
	return items
}

// FindInFiles runs FindInLines over each file.
func FindInFiles(paths []string) ([]Item, error) {
	var items []Item
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		var lines []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		items = append(items, FindInLines(lines, p)...)
	}
	return items, nil
}

// FindDocumented lists every namespace and page in the index except the
// main page.
func FindDocumented(idx *doxygen.Index) []Item {
	var items []Item
	for _, c := range idx.IndexEntries("namespace", "page") {
		if c.SelectAttrValue("kind", "") == "page" && c.SelectAttrValue("refid", "") == "indexpage" {
			continue
		}
		if name := c.SelectElement("name"); name != nil {
			items = append(items, Item{Name: name.Text()})
		}
	}
	return items
}

// Options controls stub generation.
type Options struct {
	// OutputDir receives the stubs; when empty each item's toctree is used.
	OutputDir string
	Suffix    string
	// TemplateDir holds templates that override the built-in ones by name.
	TemplateDir string
	Workers     int
	Render      []rst.Option
}

type stub struct {
	path     string
	template string
	data     templateData
}

type templateData struct {
	Fullname  string
	Module    string
	Objname   string
	Name      string
	Underline string
	Objtype   string

	Methods []string
	Enums   []string
	Types   []string

	Title string
	Text  []string
}

// Generate writes a stub for every item that resolves to a compound and
// has no file yet. It returns the paths written, sorted.
func Generate(ctx context.Context, idx *doxygen.Index, items []Item, opts Options) ([]string, error) {
	if opts.Suffix == "" {
		opts.Suffix = ".rst"
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	tmpl, err := loadTemplates(opts.TemplateDir)
	if err != nil {
		return nil, err
	}

	sorted := append([]Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Toctree != b.Toctree {
			return a.Toctree < b.Toctree
		}
		return a.Template < b.Template
	})

	seen := make(map[string]bool)
	var stubs []stub
	for _, it := range sorted {
		name := strings.ReplaceAll(it.Name, ".", doxygen.ScopeSeparator)
		cd := idx.FindByCompoundName(name)
		if cd == nil {
			slog.Warn("autosummary item not found", "name", it.Name)
			continue
		}

		dir := opts.OutputDir
		if dir == "" {
			dir = it.Toctree
		}
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, strings.ReplaceAll(name, doxygen.ScopeSeparator, ".")+opts.Suffix)
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); err == nil {
			slog.Debug("stub exists", "path", path)
			continue
		}

		s, err := newStub(idx, cd, name, it.Template, opts.Render)
		if err != nil {
			return nil, err
		}
		if tmpl.Lookup(s.template) == nil {
			return nil, fmt.Errorf("%s: %w %q", name, ErrNoTemplate, s.template)
		}
		s.path = path
		stubs = append(stubs, s)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, s := range stubs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeStub(tmpl, s)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	written := make([]string, len(stubs))
	for i, s := range stubs {
		written[i] = s.path
	}
	sort.Strings(written)
	slog.Info("generated autosummary stubs", "count", len(written))
	return written, nil
}

func newStub(idx *doxygen.Index, cd *etree.Element, name, override string, render []rst.Option) (stub, error) {
	parts := strings.Split(name, doxygen.ScopeSeparator)
	data := templateData{
		Fullname:  name,
		Module:    strings.Join(parts[:len(parts)-1], doxygen.ScopeSeparator),
		Objname:   parts[len(parts)-1],
		Name:      parts[len(parts)-1],
		Underline: strings.Repeat("=", utf8.RuneCountInString(name)),
	}

	var tname string
	switch kind := cd.SelectAttrValue("kind", ""); kind {
	case "class":
		tname = classTemplate
		data.Objtype = "class"
		data.Methods = texts(cd, ".//sectiondef[@kind='public-func']/memberdef[@kind='function']/name")
		data.Enums = texts(cd, ".//sectiondef[@kind='public-type']/memberdef[@kind='enum']/name")
	case "namespace", "module":
		tname = namespaceTemplate
		data.Objtype = "namespace"
		data.Methods = texts(cd, "./sectiondef[@kind='func']/memberdef[@kind='function']/name")
		for _, inner := range cd.SelectElements("innerclass") {
			if td := idx.Compound(inner.SelectAttrValue("refid", "")); td != nil && td.SelectAttrValue("kind", "") == "type" {
				data.Types = append(data.Types, inner.Text())
			}
		}
	case "page":
		tname = pageTemplate
		if t := cd.SelectElement("title"); t != nil {
			data.Title = t.Text()
		}
		text, err := rst.FormatParagraph(cd.SelectElement("detaileddescription"), idx, render...)
		if err != nil {
			return stub{}, fmt.Errorf("page %s: %w", name, err)
		}
		data.Text = text
	default:
		if override == "" {
			return stub{}, fmt.Errorf("%s (kind %s): %w", name, kind, ErrNoTemplate)
		}
	}

	if override != "" {
		tname = override
	}
	return stub{template: tname, data: data}, nil
}

func writeStub(tmpl *template.Template, s stub) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, s.template, s.data); err != nil {
		return fmt.Errorf("rendering %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	slog.Debug("wrote stub", "path", s.path, "template", s.template)
	return nil
}

var templateFuncs = template.FuncMap{
	"underline": func(s, char string) string {
		return strings.Repeat(char, utf8.RuneCountInString(s))
	},
}

// loadTemplates parses the built-in templates, then any *.rst templates in
// dir, which replace built-ins of the same name.
func loadTemplates(dir string) (*template.Template, error) {
	tmpl, err := template.New("autosummary").Funcs(templateFuncs).ParseFS(builtinTemplates, "templates/*.rst")
	if err != nil {
		return nil, fmt.Errorf("parsing built-in templates: %w", err)
	}
	if dir == "" {
		return tmpl, nil
	}

	matches, err := fs.Glob(os.DirFS(dir), "*.rst")
	if err != nil {
		return nil, fmt.Errorf("listing templates in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		slog.Warn("template directory has no .rst templates", "dir", dir)
		return tmpl, nil
	}
	if _, err := tmpl.ParseFS(os.DirFS(dir), matches...); err != nil {
		return nil, fmt.Errorf("parsing templates in %s: %w", dir, err)
	}
	return tmpl, nil
}

func texts(e *etree.Element, path string) []string {
	var out []string
	for _, n := range e.FindElements(path) {
		out = append(out, n.Text())
	}
	return out
}
