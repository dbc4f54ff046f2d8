package rst

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
)

func (f *Formatter) visitRef(n *etree.Element) error {
	var sym *doxygen.Symbol
	if f.resolver != nil {
		sym, _ = f.resolver.Resolve(n.SelectAttrValue("refid", ""), n.SelectAttrValue("kindref", ""))
	}
	if f.refStyle == FieldRefs {
		return f.fieldRef(n, sym)
	}
	f.proseRef(n, sym)
	return nil
}

// proseRef renders a ref in running text as a cpp:any link.
func (f *Formatter) proseRef(n *etree.Element, sym *doxygen.Symbol) {
	label := n.Text()

	target := ""
	if sym != nil {
		switch sym.Kind {
		case doxygen.KindMember, doxygen.KindCompound, doxygen.KindEnumValue:
			target = sym.QualifiedName()
		default:
			// the para loop still emits the tail
			f.appendLast(label + " " + unimplementedLink)
			return
		}
	}

	val := ":cpp:any:`" + label
	if target != "" {
		val += " <" + target + ">`"
	} else {
		val += "`"
	}
	f.appendLast(val + n.Tail())
	f.tailOwner = n
}

// fieldRef renders a ref inside a structured description with Fortran
// domain roles. Unresolved targets degrade to emphasis.
func (f *Formatter) fieldRef(n *etree.Element, sym *doxygen.Symbol) error {
	label := n.Text()

	var val string
	switch {
	case sym == nil:
		val = "*" + label + "*"
	case sym.Kind == doxygen.KindMember:
		val = fmt.Sprintf(":f:func:`%s <%s>`", label, sym.QualifiedName())
	case sym.Kind == doxygen.KindCompound:
		val = fmt.Sprintf(":f:type:`%s <%s>`", label, sym.QualifiedName())
	case sym.Kind == doxygen.KindEnumValue:
		val = fmt.Sprintf(":f:var:`%s <%s>`", label, sym.QualifiedName())
	default:
		return fmt.Errorf("%w: <%s id=%q>", ErrUnsupportedRef, sym.Element.Tag, sym.ID)
	}

	f.appendLast(val + n.Tail())
	f.tailOwner = n
	return nil
}
