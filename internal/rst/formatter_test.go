package rst

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
)

const symbolsXML = `<doxygen>
<compounddef id="classOpenMM_1_1Force" kind="class">
  <compoundname>OpenMM::Force</compoundname>
  <sectiondef kind="public-func">
    <memberdef kind="function" id="classOpenMM_1_1Force_1a1"><name>getName</name></memberdef>
    <memberdef kind="enum" id="classOpenMM_1_1Force_1e1">
      <name>Method</name>
      <enumvalue id="classOpenMM_1_1Force_1ev1"><name>NoCutoff</name></enumvalue>
    </memberdef>
  </sectiondef>
</compounddef>
<compounddef id="indexpage" kind="page">
  <compoundname>index</compoundname>
  <detaileddescription><sect1 id="indexpage_1intro"><title>Intro</title></sect1></detaileddescription>
</compounddef>
</doxygen>`

func testIndex(t *testing.T) *doxygen.Index {
	t.Helper()
	doc, err := doxygen.ParseString(symbolsXML)
	if err != nil {
		t.Fatalf("parsing symbols: %v", err)
	}
	return doxygen.NewIndex(doc.Root())
}

func parseNode(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc, err := doxygen.ParseString(xml)
	if err != nil {
		t.Fatalf("parsing fragment: %v", err)
	}
	return doc.Root()
}

func render(t *testing.T, xml string, r Resolver, opts ...Option) []string {
	t.Helper()
	lines, err := FormatParagraph(parseNode(t, xml), r, opts...)
	if err != nil {
		t.Fatalf("FormatParagraph: %v", err)
	}
	return lines
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatParagraph(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		xml  string
		want []string
	}{
		{
			name: "plain paragraph",
			xml:  `<detaileddescription><para>  Hello world  </para></detaileddescription>`,
			want: []string{"", "Hello world", ""},
		},
		{
			name: "inline formula",
			xml:  `<d><para>Energy <formula id="1">$E=mc^2$</formula> holds.</para></d>`,
			want: []string{"", "Energy", ":math:`E=mc^2` holds.", ""},
		},
		{
			name: "display formula",
			xml:  `<d><para><formula id="0">\[ E = mc^2 \]</formula></para></d>`,
			want: []string{"", "", ".. math:: E = mc^2", "", ""},
		},
		{
			name: "formula without delimiters is display math",
			xml:  `<d><para><formula id="0">x^2</formula></para></d>`,
			want: []string{"", "", ".. math:: x^2", "", ""},
		},
		{
			name: "parameters and return",
			xml: `<d><para>Compute.<parameterlist kind="param"><parameteritem><parameternamelist>` +
				`<parametername direction="in">x</parametername></parameternamelist>` +
				`<parameterdescription><para>the input</para></parameterdescription></parameteritem>` +
				`<parameteritem><parameternamelist><parametername>y</parametername></parameternamelist>` +
				`<parameterdescription><para>scale</para></parameterdescription></parameteritem></parameterlist>` +
				`<simplesect kind="return"><para>the result</para></simplesect></para></d>`,
			want: []string{"", "Compute.", "", ":param x: [in] the input", ":param y: scale", "",
				":returns: the result", "", ""},
		},
		{
			name: "other simplesect kinds descend only",
			xml:  `<d><para><simplesect kind="note"><para>careful</para></simplesect></para></d>`,
			want: []string{"", "careful", "", ""},
		},
		{
			name: "section titles",
			xml: `<d><sect1 id="a"><title>Usage</title><para>Text</para>` +
				`<sect2 id="b"><title>More</title></sect2></sect1></d>`,
			want: []string{"", "Usage", "=====", "", "Text", "", "More", "----", ""},
		},
		{
			name: "section levels three and four",
			xml:  `<d><sect3 id="c"><title>Sub</title></sect3><sect4 id="d"><title>Tiny</title></sect4></d>`,
			want: []string{"", "Sub", "^^^", "", "Tiny", `""""`, ""},
		},
		{
			name: "section without title",
			xml:  `<d><sect1 id="a"><para>Body</para></sect1></d>`,
			want: []string{"", "Body", ""},
		},
		{
			name: "list items",
			xml: `<d><para><itemizedlist><listitem><para>first</para></listitem>` +
				`<listitem><para>second</para></listitem></itemizedlist></para></d>`,
			want: []string{"", "   - first", "", "   - second", "", ""},
		},
		{
			name: "preformatted",
			xml:  "<d><para><preformatted>a\nb</preformatted></para></d>",
			want: []string{"", ".. code-block:: C++", "", "  a", "  b", ""},
		},
		{
			name: "inline code",
			xml:  `<d><para>Call <computeroutput>run()</computeroutput> now.</para></d>`,
			want: []string{"", "Call ``run()``", "now.", ""},
		},
		{
			name: "inline code wrapping a code block",
			xml:  "<d><para><computeroutput><preformatted>x = 1</preformatted></computeroutput></para></d>",
			want: []string{"", ".. code-block:: C++", "", "  x = 1", ""},
		},
		{
			name: "deprecation notice",
			xml: `<d><para><xrefsect id="deprecated_1_dep1"><xreftitle>Deprecated</xreftitle>` +
				`<xrefdescription><para>Use foo instead.</para></xrefdescription></xrefsect></para></d>`,
			want: []string{"", ".. admonition:: Deprecated", "", "   Use foo instead.", "", ""},
		},
		{
			name: "xrefsect without title is a deprecation notice",
			xml:  `<d><para><xrefsect id="x"><xrefdescription><para>old</para></xrefdescription></xrefsect></para></d>`,
			want: []string{"", ".. admonition:: Deprecated", "", "   old", "", ""},
		},
		{
			name: "subscript",
			xml:  `<d><para>H<subscript>2</subscript>O</para></d>`,
			want: []string{"", "H\\ :sub:`2` O", ""},
		},
		{
			name: "unknown tags descend without emitting their text",
			xml:  `<d><para>a<bold>b</bold>c</para><unknown>ignored<para>kept</para></unknown></d>`,
			want: []string{"", "a", "c", "", "kept", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertLines(t, render(t, tt.xml, nil), tt.want)
		})
	}
}

func TestFormatParagraph_TrailingWhitespaceStripped(t *testing.T) {
	t.Parallel()
	lines := render(t, `<d><para><parametername>x</parametername></para></d>`, nil)
	for _, l := range lines {
		if l != strings.TrimRight(l, " \t\n") {
			t.Errorf("line %q has trailing whitespace", l)
		}
	}
}

func TestFormatParagraph_NilNode(t *testing.T) {
	t.Parallel()
	lines, err := FormatParagraph(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, lines, []string{""})
}

func TestFormatParagraph_Idempotent(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)
	node := parseNode(t, `<d><para>See <ref refid="classOpenMM_1_1Force_1a1" kindref="member">getName</ref>.`+
		`<parameterlist><parameteritem><parameternamelist><parametername>a</parametername></parameternamelist>`+
		`<parameterdescription><para>value</para></parameterdescription></parameteritem></parameterlist></para></d>`)

	first, err := FormatParagraph(node, idx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := FormatParagraph(node, idx)
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, second, first)
}

func TestFormatParagraph_CodeLanguage(t *testing.T) {
	t.Parallel()
	lines := render(t, "<d><preformatted>x</preformatted></d>", nil, WithCodeLanguage("fortran"))
	assertLines(t, lines, []string{"", ".. code-block:: fortran", "", "  x"})
}

func TestFormatParagraph_UnknownXRefSect(t *testing.T) {
	t.Parallel()
	node := parseNode(t, `<d><para><xrefsect id="x"><xreftitle>Custom</xreftitle>`+
		`<xrefdescription><para>?</para></xrefdescription></xrefsect></para></d>`)
	_, err := FormatParagraph(node, nil)
	if !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("err = %v, want ErrUnknownSection", err)
	}
}

func TestListItem_ContinuesWithChildText(t *testing.T) {
	t.Parallel()
	lines := render(t, `<d><listitem><para>item text</para></listitem></d>`, nil)
	var bullet string
	for _, l := range lines {
		if strings.HasPrefix(l, "   - ") {
			bullet = l
		}
	}
	if bullet != "   - item text" {
		t.Errorf("bullet line = %q, lines = %q", bullet, lines)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	node := parseNode(t, `<briefdescription><para>Returns the <computeroutput>name</computeroutput>
of the force.</para></briefdescription>`)
	got, err := Summary(node, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Returns the ``name`` of the force." {
		t.Errorf("Summary = %q", got)
	}

	empty, err := Summary(nil, nil)
	if err != nil || empty != "" {
		t.Errorf("Summary(nil) = %q, %v", empty, err)
	}
}
