// Package rst renders Doxygen XML description fragments as reStructuredText
// lines for Sphinx.
package rst

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
)

var (
	// ErrUnsupportedRef is returned by field-style refs to elements with no domain role.
	ErrUnsupportedRef = errors.New("reference to unsupported element")
	// ErrUnknownSection is returned for an xrefsect whose title is not a known admonition.
	ErrUnknownSection = errors.New("unsupported xrefsect")
	// ErrMalformedTable is returned for a table whose cols attribute is not a count.
	ErrMalformedTable = errors.New("malformed table")
)

// Resolver resolves ref targets. *doxygen.Index implements it.
type Resolver interface {
	Resolve(id, kindref string) (*doxygen.Symbol, bool)
}

// RefStyle selects how ref elements are rendered.
type RefStyle int

const (
	// ProseRefs renders refs as C++ domain links and tolerates unsupported targets.
	ProseRefs RefStyle = iota
	// FieldRefs renders refs as Fortran domain roles for structured
	// descriptions; unsupported targets are an error.
	FieldRefs
)

const unimplementedLink = "(unimplemented link)"

// Option configures a Formatter.
type Option func(*Formatter)

// WithRefStyle sets the cross-reference flavour.
func WithRefStyle(style RefStyle) Option {
	return func(f *Formatter) {
		f.refStyle = style
	}
}

// WithCodeLanguage sets the language named in code-block directives.
func WithCodeLanguage(lang string) Option {
	return func(f *Formatter) {
		if lang != "" {
			f.codeLang = lang
		}
	}
}

type handler func(f *Formatter, n *etree.Element) error

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"para":           (*Formatter).visitPara,
		"ref":            (*Formatter).visitRef,
		"formula":        (*Formatter).visitFormula,
		"parametername":  (*Formatter).visitParameterName,
		"parameterlist":  (*Formatter).visitParameterList,
		"simplesect":     (*Formatter).visitSimpleSect,
		"sect1":          sectHandler('='),
		"sect2":          sectHandler('-'),
		"sect3":          sectHandler('^'),
		"sect4":          sectHandler('"'),
		"listitem":       (*Formatter).visitListItem,
		"preformatted":   (*Formatter).visitPreformatted,
		"computeroutput": (*Formatter).visitComputerOutput,
		"xrefsect":       (*Formatter).visitXRefSect,
		"subscript":      (*Formatter).visitSubscript,
		"table":          (*Formatter).visitTable,
	}
}

// Formatter accumulates output lines while walking a description tree.
// A Formatter renders one fragment; nested renders use fresh instances.
type Formatter struct {
	resolver Resolver
	refStyle RefStyle
	codeLang string

	lines        []string
	continueLine bool
	// tailOwner is the last element whose handler emitted its own tail.
	tailOwner *etree.Element
}

// New returns a Formatter with an empty output buffer.
func New(resolver Resolver, opts ...Option) *Formatter {
	f := &Formatter{
		resolver: resolver,
		codeLang: "C++",
		lines:    []string{""},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FormatParagraph renders the children of node, typically a briefdescription
// or detaileddescription, with trailing whitespace stripped from every line.
func FormatParagraph(node *etree.Element, resolver Resolver, opts ...Option) ([]string, error) {
	f := New(resolver, opts...)
	if err := f.Render(node); err != nil {
		return nil, err
	}
	return f.Lines(), nil
}

// Summary renders node and joins its non-blank lines into one line, as used
// for inline brief descriptions.
func Summary(node *etree.Element, resolver Resolver, opts ...Option) (string, error) {
	lines, err := FormatParagraph(node, resolver, opts...)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// Render walks node's children into the buffer.
func (f *Formatter) Render(node *etree.Element) error {
	if node == nil {
		return nil
	}
	return f.visitChildren(node)
}

// Lines returns a copy of the buffer with trailing whitespace removed.
func (f *Formatter) Lines() []string {
	out := make([]string, len(f.lines))
	for i, l := range f.lines {
		out[i] = rstrip(l)
	}
	return out
}

func (f *Formatter) nested() *Formatter {
	return &Formatter{
		resolver: f.resolver,
		refStyle: f.refStyle,
		codeLang: f.codeLang,
		lines:    []string{""},
	}
}

// sub renders n's children in an isolated formatter and returns its raw lines.
func (f *Formatter) sub(n *etree.Element) ([]string, error) {
	nf := f.nested()
	if err := nf.visitChildren(n); err != nil {
		return nil, err
	}
	return nf.lines, nil
}

func (f *Formatter) visit(n *etree.Element) error {
	if h, ok := handlers[n.Tag]; ok {
		return h(f, n)
	}
	return f.visitChildren(n)
}

func (f *Formatter) visitChildren(n *etree.Element) error {
	for _, c := range n.ChildElements() {
		if err := f.visit(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) push(lines ...string) {
	f.lines = append(f.lines, lines...)
}

func (f *Formatter) appendLast(s string) {
	f.lines[len(f.lines)-1] += s
}

func (f *Formatter) paraText(text string) {
	if text == "" {
		return
	}
	if f.continueLine {
		f.appendLast(text)
	} else {
		f.push(strings.TrimLeftFunc(text, unicode.IsSpace))
	}
}

func (f *Formatter) visitPara(n *etree.Element) error {
	f.paraText(n.Text())

	for _, c := range n.ChildElements() {
		if err := f.visit(c); err != nil {
			return err
		}
		if f.tailOwner != c {
			f.paraText(c.Tail())
		}
		f.continueLine = true
	}

	f.push("")
	f.continueLine = false
	return nil
}

func (f *Formatter) visitFormula(n *etree.Element) error {
	text := strings.TrimSpace(n.Text())

	// \[...\] and bare text are display math; $...$ is inline
	if strings.HasPrefix(text, `\[`) || !strings.HasPrefix(text, "$") {
		if strings.HasPrefix(text, `\[`) && len(text) >= 4 {
			text = text[2 : len(text)-2]
		}
		f.push("", ".. math:: "+strings.TrimSpace(text), "")
		f.continueLine = false
		return nil
	}

	inner := ""
	if len(text) >= 2 {
		inner = strings.TrimSpace(text[1 : len(text)-1])
	}
	inline := ":math:`" + inner + "`"
	if f.continueLine {
		f.appendLast(inline)
	} else {
		f.push(inline)
	}
	f.continueLine = true
	return nil
}

func (f *Formatter) visitParameterName(n *etree.Element) error {
	direction := ""
	if attr := n.SelectAttr("direction"); attr != nil {
		direction = "[" + attr.Value + "] "
	}
	f.push(fmt.Sprintf(":param %s: %s", n.Text(), direction))
	f.continueLine = true
	return nil
}

func (f *Formatter) visitParameterList(n *etree.Element) error {
	sub, err := f.sub(n)
	if err != nil {
		return err
	}
	f.push("")
	for _, l := range sub {
		if strings.TrimSpace(l) != "" {
			f.push(l)
		}
	}
	f.push("")
	return nil
}

func (f *Formatter) visitSimpleSect(n *etree.Element) error {
	if n.SelectAttrValue("kind", "") == "return" {
		f.push(":returns: ")
		f.continueLine = true
	}
	return f.visitChildren(n)
}

func sectHandler(underline rune) handler {
	return func(f *Formatter, n *etree.Element) error {
		if title := n.SelectElement("title"); title != nil {
			t := title.Text()
			f.push(t, strings.Repeat(string(underline), utf8.RuneCountInString(t)), "")
		}
		return f.visitChildren(n)
	}
}

func (f *Formatter) visitListItem(n *etree.Element) error {
	f.push("   - ")
	f.continueLine = true
	return f.visitChildren(n)
}

func (f *Formatter) visitPreformatted(n *etree.Element) error {
	var b strings.Builder
	b.WriteString(n.Text())
	for _, c := range n.ChildElements() {
		b.WriteString(c.Text())
		b.WriteString(c.Tail())
	}

	f.push(".. code-block:: "+f.codeLang, "")
	for _, l := range strings.Split(b.String(), "\n") {
		f.push("  " + l)
	}
	return nil
}

func (f *Formatter) visitComputerOutput(n *etree.Element) error {
	if pre := n.SelectElement("preformatted"); pre != nil {
		return f.visitPreformatted(pre)
	}
	f.appendLast("``" + n.Text() + "``")
	return nil
}

// xrefTitles are the lists Doxygen generates for \deprecated, \todo, \test and \bug.
var xrefTitles = map[string]bool{
	"Deprecated": true,
	"Todo":       true,
	"Test":       true,
	"Bug":        true,
}

func (f *Formatter) visitXRefSect(n *etree.Element) error {
	title := "Deprecated"
	if t := n.SelectElement("xreftitle"); t != nil {
		title = strings.TrimSpace(t.Text())
	}
	if !xrefTitles[title] {
		return fmt.Errorf("%w: %q (id %s)", ErrUnknownSection, title, n.SelectAttrValue("id", ""))
	}

	sub, err := f.sub(n)
	if err != nil {
		return err
	}
	f.push(".. admonition:: " + title)
	for _, l := range sub {
		f.push("   " + l)
	}
	return nil
}

func (f *Formatter) visitSubscript(n *etree.Element) error {
	f.appendLast(`\ :sub:` + "`" + n.Text() + "` " + n.Tail())
	f.tailOwner = n
	return nil
}

func rstrip(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
