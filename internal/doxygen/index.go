package doxygen

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/beevik/etree"
)

// ScopeSeparator joins namespace, type and member names.
const ScopeSeparator = "::"

// ErrNotFound is returned when a named compound or member is not in the index.
var ErrNotFound = errors.New("not found")

// Kind classifies the element an id refers to.
type Kind int

const (
	KindUnsupported Kind = iota
	KindMember
	KindCompound
	KindEnumValue
)

func (k Kind) String() string {
	switch k {
	case KindMember:
		return "member"
	case KindCompound:
		return "compound"
	case KindEnumValue:
		return "enumvalue"
	default:
		return "unsupported"
	}
}

// Symbol is a resolved documentation object.
type Symbol struct {
	ID      string
	Kind    Kind
	Name    string // member or enum value name; full compound name for compounds
	Parent  string // name of the declaring compound, members only
	Element *etree.Element
}

// QualifiedName returns the name used as a cross-reference target.
func (s *Symbol) QualifiedName() string {
	if s.Kind == KindMember && s.Parent != "" {
		return s.Parent + ScopeSeparator + s.Name
	}
	return s.Name
}

// SimpleName returns the last scope component of the symbol's name.
func (s *Symbol) SimpleName() string {
	if i := strings.LastIndex(s.Name, ScopeSeparator); i >= 0 {
		return s.Name[i+len(ScopeSeparator):]
	}
	return s.Name
}

// ElementKind returns the Doxygen kind attribute of the underlying element.
func (s *Symbol) ElementKind() string {
	if s.Element == nil {
		return ""
	}
	return s.Element.SelectAttrValue("kind", "")
}

// Index is a read-only view over a combined Doxygen XML tree. It is built
// once and safe for concurrent lookups.
type Index struct {
	root      *etree.Element
	compounds map[string]*etree.Element
	members   map[string]*etree.Element
	names     map[string]*etree.Element
}

// NewIndex indexes every compounddef, memberdef and enumvalue below root.
func NewIndex(root *etree.Element) *Index {
	idx := &Index{
		root:      root,
		compounds: make(map[string]*etree.Element),
		members:   make(map[string]*etree.Element),
		names:     make(map[string]*etree.Element),
	}
	if root == nil {
		return idx
	}

	for _, cd := range root.SelectElements("compounddef") {
		if id := cd.SelectAttrValue("id", ""); id != "" {
			if _, ok := idx.compounds[id]; !ok {
				idx.compounds[id] = cd
			}
		}
		if name := childText(cd, "compoundname"); name != "" {
			if _, ok := idx.names[name]; !ok {
				idx.names[name] = cd
			}
		}
		for _, m := range cd.FindElements(".//memberdef") {
			idx.addMember(m)
			for _, ev := range m.SelectElements("enumvalue") {
				idx.addMember(ev)
			}
		}
	}
	return idx
}

func (idx *Index) addMember(e *etree.Element) {
	id := e.SelectAttrValue("id", "")
	if id == "" {
		return
	}
	if _, ok := idx.members[id]; !ok {
		idx.members[id] = e
	}
}

// Root returns the combined tree's root element.
func (idx *Index) Root() *etree.Element {
	return idx.root
}

// Compound returns the compounddef with the given id.
func (idx *Index) Compound(id string) *etree.Element {
	return idx.compounds[id]
}

// Member returns the memberdef or enumvalue with the given id.
func (idx *Index) Member(id string) *etree.Element {
	return idx.members[id]
}

// FindByCompoundName returns the compounddef whose compoundname equals name.
func (idx *Index) FindByCompoundName(name string) *etree.Element {
	return idx.names[name]
}

// FindByID searches the whole tree for the first element carrying the id.
// Unlike Compound and Member it is a linear walk and also finds anchors,
// sections and other elements outside the indexed kinds.
func (idx *Index) FindByID(id string) *etree.Element {
	if idx.root == nil || id == "" || strings.ContainsAny(id, `'"[]`) {
		return nil
	}
	path, err := etree.CompilePath(".//*[@id='" + id + "']")
	if err != nil {
		return nil
	}
	return idx.root.FindElementPath(path)
}

// Resolve looks up a reference target. kindref is the ref element's kindref
// attribute ("member" or "compound"); when it is empty or the typed lookup
// misses, the whole tree is searched.
func (idx *Index) Resolve(id, kindref string) (*Symbol, bool) {
	var e *etree.Element
	switch kindref {
	case "member":
		e = idx.members[id]
	case "compound":
		e = idx.compounds[id]
	}
	if e == nil {
		slog.Debug("unindexed reference lookup", "refid", id, "kindref", kindref)
		e = idx.FindByID(id)
	}
	if e == nil {
		return nil, false
	}
	return symbolFor(e), true
}

// Lookup resolves a name to a symbol, trying compound names first and then
// qualified member names.
func (idx *Index) Lookup(name string) (*Symbol, error) {
	name = strings.ReplaceAll(name, ".", ScopeSeparator)
	if cd := idx.names[name]; cd != nil {
		return symbolFor(cd), nil
	}
	if i := strings.LastIndex(name, ScopeSeparator); i >= 0 {
		parent, member := name[:i], name[i+len(ScopeSeparator):]
		if cd := idx.names[parent]; cd != nil {
			for _, m := range cd.FindElements(".//memberdef") {
				if childText(m, "name") == member {
					return symbolFor(m), nil
				}
			}
		}
	}
	return nil, ErrNotFound
}

// Compounds returns compounddefs in document order, optionally filtered by kind.
func (idx *Index) Compounds(kinds ...string) []*etree.Element {
	if idx.root == nil {
		return nil
	}
	var out []*etree.Element
	for _, cd := range idx.root.SelectElements("compounddef") {
		if hasKind(cd, kinds) {
			out = append(out, cd)
		}
	}
	return out
}

// IndexEntries returns the compound entries copied from index.xml.
func (idx *Index) IndexEntries(kinds ...string) []*etree.Element {
	if idx.root == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range idx.root.SelectElements("compound") {
		if hasKind(c, kinds) {
			out = append(out, c)
		}
	}
	return out
}

// Symbols lists every compound, member and enum value in document order.
func (idx *Index) Symbols() []Symbol {
	var out []Symbol
	for _, cd := range idx.Compounds() {
		out = append(out, *symbolFor(cd))
		for _, m := range cd.FindElements(".//memberdef") {
			out = append(out, *symbolFor(m))
			for _, ev := range m.SelectElements("enumvalue") {
				out = append(out, *symbolFor(ev))
			}
		}
	}
	return out
}

// Search returns symbols whose qualified name contains query, case-insensitively.
func (idx *Index) Search(query string, limit int) []Symbol {
	q := strings.ToLower(query)
	var out []Symbol
	for _, s := range idx.Symbols() {
		if !strings.Contains(strings.ToLower(s.QualifiedName()), q) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func symbolFor(e *etree.Element) *Symbol {
	s := &Symbol{ID: e.SelectAttrValue("id", ""), Element: e}
	switch e.Tag {
	case "memberdef":
		s.Kind = KindMember
		s.Name = childText(e, "name")
		if cd := ancestor(e, "compounddef"); cd != nil {
			s.Parent = childText(cd, "compoundname")
		}
	case "compounddef":
		s.Kind = KindCompound
		s.Name = childText(e, "compoundname")
	case "enumvalue":
		s.Kind = KindEnumValue
		s.Name = childText(e, "name")
	default:
		s.Kind = KindUnsupported
	}
	return s
}

func ancestor(e *etree.Element, tag string) *etree.Element {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Tag == tag {
			return p
		}
	}
	return nil
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

func hasKind(e *etree.Element, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	k := e.SelectAttrValue("kind", "")
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
