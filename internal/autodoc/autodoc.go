// Package autodoc assembles Sphinx Fortran-domain directive blocks for
// modules, procedures and derived types from a Doxygen symbol index.
package autodoc

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/rst"
)

const (
	domain        = "f"
	contentIndent = "   "
	undocumented  = "<undocumented>"
	moreLink      = "`More...`_"
	moreAnchor    = ".. _`More...`:"
)

var returnTypeRe = regexp.MustCompile(`(\S+)\s+function`)

// ModuleOptions selects the optional sections of a module page.
type ModuleOptions struct {
	Types   bool
	Methods bool
	// Render is passed to every paragraph render.
	Render []rst.Option
}

// writer collects directive lines. Non-blank lines get the current indent.
type writer struct {
	lines  []string
	indent string
}

func (w *writer) addLine(s string) {
	if strings.TrimSpace(s) == "" {
		w.lines = append(w.lines, "")
		return
	}
	w.lines = append(w.lines, w.indent+s)
}

func (w *writer) addLines(lines []string) {
	for _, l := range lines {
		w.addLine(l)
	}
}

func (w *writer) title(text string, char rune) {
	rule := strings.Repeat(string(char), utf8.RuneCountInString(text))
	w.addLine("")
	w.addLine(rule)
	w.addLine(text)
	w.addLine(rule)
	w.addLine("")
}

// Module renders the reference page for the named module or namespace.
// Dots in name are treated as scope separators.
func Module(idx *doxygen.Index, name string, opts ModuleOptions) ([]string, error) {
	name = strings.ReplaceAll(name, ".", doxygen.ScopeSeparator)
	cd := idx.FindByCompoundName(name)
	if cd == nil {
		return nil, fmt.Errorf("module %q: %w", name, doxygen.ErrNotFound)
	}

	w := &writer{}
	w.title(name+" module reference", '=')
	w.addLine(fmt.Sprintf(".. %s:module:: %s", domain, name))
	w.addLine("")

	brief, err := moduleDescription(idx, cd, true, opts.Render)
	if err != nil {
		return nil, fmt.Errorf("module %s brief: %w", name, err)
	}
	w.addLines(brief)
	w.addLine(moreLink)
	w.addLine("")

	w.addLine(moreAnchor)
	w.title("Detailed Description", '-')
	detailed, err := moduleDescription(idx, cd, false, opts.Render)
	if err != nil {
		return nil, fmt.Errorf("module %s description: %w", name, err)
	}
	w.addLines(detailed)

	if opts.Types {
		w.title("Type Documentation", '-')
		for _, inner := range cd.SelectElements("innerclass") {
			td := idx.Compound(inner.SelectAttrValue("refid", ""))
			if td == nil || td.SelectAttrValue("kind", "") != "type" {
				continue
			}
			lines, err := Type(idx, td, opts.Render...)
			if err != nil {
				return nil, err
			}
			w.addLines(lines)
		}
	}

	if opts.Methods {
		w.title("Function/Subroutine Documentation", '-')
		for _, m := range ModuleFunctions(cd) {
			lines, err := Method(idx, m, false, opts.Render...)
			if err != nil {
				return nil, err
			}
			w.addLines(lines)
		}
	}

	return w.lines, nil
}

// ModuleFunctions returns the function members declared directly in a module.
func ModuleFunctions(cd *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, sd := range cd.SelectElements("sectiondef") {
		switch sd.SelectAttrValue("kind", "") {
		case "func", "public-static-func":
		default:
			continue
		}
		for _, m := range sd.SelectElements("memberdef") {
			if m.SelectAttrValue("kind", "") == "function" {
				out = append(out, m)
			}
		}
	}
	return out
}

// moduleDescription renders the brief or detailed description. An empty
// detailed description falls back to the brief one.
func moduleDescription(idx *doxygen.Index, cd *etree.Element, brief bool, opts []rst.Option) ([]string, error) {
	var desc *etree.Element
	if brief {
		desc = cd.SelectElement("briefdescription")
	} else {
		desc = cd.SelectElement("detaileddescription")
		if desc == nil || (len(desc.ChildElements()) == 0 && strings.TrimSpace(desc.Text()) == "") {
			desc = cd.SelectElement("briefdescription")
		}
	}

	lines, err := rst.FormatParagraph(desc, idx, opts...)
	if err != nil {
		return nil, err
	}
	if blank(lines) {
		lines = append(lines, undocumented, "")
	}
	return lines, nil
}

// Method renders a function or subroutine directive for a memberdef. With
// brief set only the brief description is included.
func Method(idx *doxygen.Index, m *etree.Element, brief bool, opts ...rst.Option) ([]string, error) {
	name := childText(m, "name")
	typefield := typeField(m)

	directive := "function"
	if strings.Contains(typefield, "subroutine") {
		directive = "subroutine"
	}

	w := &writer{}
	w.addLine("")
	w.addLine(fmt.Sprintf(".. %s:%s:: %s%s%s", domain, directive,
		templatePrefix(m), returnPrefix(typefield), name+childText(m, "argsstring")))
	w.addLine("")
	w.indent = contentIndent

	lines, err := rst.FormatParagraph(m.SelectElement("briefdescription"), idx, opts...)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", name, err)
	}
	w.addLines(lines)

	if !brief {
		lines, err := rst.FormatParagraph(m.SelectElement("detaileddescription"), idx, opts...)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", name, err)
		}
		w.addLines(lines)

		for _, ref := range m.SelectElements("references") {
			w.addLine(callLine("callto", ref.Text()))
		}
		for _, ref := range m.SelectElements("referencedby") {
			w.addLine(callLine("calledfrom", ref.Text()))
		}
	}
	return w.lines, nil
}

func callLine(field, qualified string) string {
	short := qualified
	if i := strings.LastIndex(qualified, doxygen.ScopeSeparator); i >= 0 {
		short = qualified[i+len(doxygen.ScopeSeparator):]
	}
	return fmt.Sprintf(":%s: :%s:func:`%s <%s>`", field, domain, qualified, short)
}

// typeField is the definition without its trailing qualified name, e.g.
// "real(kind=8) function" for "real(kind=8) function physics::energy".
func typeField(m *etree.Element) string {
	words := strings.Fields(childText(m, "definition"))
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words[:len(words)-1], " ")
}

func returnPrefix(typefield string) string {
	switch {
	case strings.Contains(typefield, "function"):
		if match := returnTypeRe.FindString(typefield); match != "" {
			return match + " "
		}
		return "function "
	case strings.Contains(typefield, "subroutine"):
		return "subroutine "
	case typefield != "":
		return typefield + " "
	default:
		return ""
	}
}

func templatePrefix(m *etree.Element) string {
	var types []string
	for _, t := range m.FindElements("./templateparamlist/param/type") {
		types = append(types, t.Text())
	}
	if len(types) == 0 {
		return ""
	}
	return "template <" + strings.Join(types, ",") + "> "
}

// Type renders a derived type directive with one typefield per member.
func Type(idx *doxygen.Index, cd *etree.Element, opts ...rst.Option) ([]string, error) {
	sym := doxygen.Symbol{Kind: doxygen.KindCompound, Name: childText(cd, "compoundname")}

	w := &writer{}
	w.addLine("")
	w.addLine(fmt.Sprintf(".. %s:type:: %s", domain, sym.SimpleName()))
	w.addLine("")
	w.indent = contentIndent

	lines, err := rst.FormatParagraph(cd.SelectElement("briefdescription"), idx, opts...)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", sym.Name, err)
	}
	w.addLines(lines)

	fieldOpts := append(append([]rst.Option{}, opts...), rst.WithRefStyle(rst.FieldRefs))
	for _, m := range cd.FindElements("./sectiondef/memberdef") {
		field, err := typeFieldLine(idx, m, fieldOpts)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", sym.Name, err)
		}
		w.addLine(field)
	}
	return w.lines, nil
}

func typeFieldLine(idx *doxygen.Index, m *etree.Element, opts []rst.Option) (string, error) {
	attribs := strings.Split(strings.TrimSpace(Flatten(m.SelectElement("type"))), ", ")

	shape := ""
	var extras []string
	for i, word := range attribs {
		if strings.HasPrefix(word, "dimension") {
			shape = strings.ReplaceAll(strings.TrimPrefix(word, "dimension"), ":", `\:`)
		} else if i > 0 {
			extras = append(extras, word)
		}
	}
	if m.SelectAttrValue("prot", "") == "private" {
		extras = append(extras, "private")
	}
	rest := ""
	if len(extras) > 0 {
		rest = " [" + strings.Join(extras, ", ") + "]"
	}

	field := fmt.Sprintf(":typefield %s%s %s%s:", attribs[0], shape, childText(m, "name"), rest)

	if bd := m.SelectElement("briefdescription"); bd != nil && bd.SelectElement("para") != nil {
		text, err := rst.Summary(bd, idx, opts...)
		if err != nil {
			return "", err
		}
		if text != "" {
			field += " " + text
		}
	}
	return field, nil
}

// Flatten returns all text below node in document order.
func Flatten(node *etree.Element) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	flattenInto(&b, node)
	return b.String()
}

func flattenInto(b *strings.Builder, n *etree.Element) {
	b.WriteString(n.Text())
	for _, c := range n.ChildElements() {
		flattenInto(b, c)
		b.WriteString(c.Tail())
	}
}

func blank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}
