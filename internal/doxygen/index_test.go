package doxygen

import (
	"testing"
)

const sampleTree = `<doxygen>
<compound refid="namespaceOpenMM" kind="namespace"><name>OpenMM</name></compound>
<compounddef id="classOpenMM_1_1Force" kind="class">
  <compoundname>OpenMM::Force</compoundname>
  <sectiondef kind="public-func">
    <memberdef kind="function" id="classOpenMM_1_1Force_1a1"><name>getName</name></memberdef>
    <memberdef kind="enum" id="classOpenMM_1_1Force_1e1">
      <name>Method</name>
      <enumvalue id="classOpenMM_1_1Force_1ev1"><name>CutoffPeriodic</name></enumvalue>
    </memberdef>
  </sectiondef>
</compounddef>
<compounddef id="namespaceOpenMM" kind="namespace">
  <compoundname>OpenMM</compoundname>
  <sectiondef kind="func">
    <memberdef kind="function" id="namespaceOpenMM_1a2"><name>version</name></memberdef>
  </sectiondef>
</compounddef>
<compounddef id="indexpage" kind="page">
  <compoundname>index</compoundname>
  <detaileddescription><sect1 id="indexpage_1intro"><title>Intro</title></sect1></detaileddescription>
</compounddef>
</doxygen>`

func testIndex(t *testing.T) *Index {
	t.Helper()
	doc, err := ParseString(sampleTree)
	if err != nil {
		t.Fatalf("parsing sample tree: %v", err)
	}
	return NewIndex(doc.Root())
}

func TestResolve(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	tests := []struct {
		name      string
		id        string
		kindref   string
		wantKind  Kind
		wantQName string
	}{
		{"member", "classOpenMM_1_1Force_1a1", "member", KindMember, "OpenMM::Force::getName"},
		{"namespace member", "namespaceOpenMM_1a2", "member", KindMember, "OpenMM::version"},
		{"compound", "classOpenMM_1_1Force", "compound", KindCompound, "OpenMM::Force"},
		{"enum value", "classOpenMM_1_1Force_1ev1", "member", KindEnumValue, "CutoffPeriodic"},
		{"no kindref", "classOpenMM_1_1Force_1a1", "", KindMember, "OpenMM::Force::getName"},
		{"section anchor", "indexpage_1intro", "member", KindUnsupported, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, ok := idx.Resolve(tt.id, tt.kindref)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tt.id)
			}
			if sym.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", sym.Kind, tt.wantKind)
			}
			if got := sym.QualifiedName(); got != tt.wantQName {
				t.Errorf("QualifiedName() = %q, want %q", got, tt.wantQName)
			}
		})
	}
}

func TestResolve_Missing(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	if _, ok := idx.Resolve("nope", "member"); ok {
		t.Error("expected missing member id to be unresolved")
	}
	if _, ok := idx.Resolve("bad'id", ""); ok {
		t.Error("expected quoted id to be unresolved")
	}
}

func TestFindByCompoundName(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	cd := idx.FindByCompoundName("OpenMM::Force")
	if cd == nil {
		t.Fatal("expected compound")
	}
	if got := cd.SelectAttrValue("id", ""); got != "classOpenMM_1_1Force" {
		t.Errorf("id = %q", got)
	}
	if idx.FindByCompoundName("OpenMM::Missing") != nil {
		t.Error("expected nil for unknown compound")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	sym, err := idx.Lookup("OpenMM.Force")
	if err != nil {
		t.Fatal(err)
	}
	if sym.Kind != KindCompound || sym.SimpleName() != "Force" {
		t.Errorf("got %v %q", sym.Kind, sym.SimpleName())
	}

	sym, err = idx.Lookup("OpenMM::Force::getName")
	if err != nil {
		t.Fatal(err)
	}
	if sym.Kind != KindMember || sym.Parent != "OpenMM::Force" {
		t.Errorf("got %v parent %q", sym.Kind, sym.Parent)
	}

	if _, err := idx.Lookup("OpenMM::nothing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCompoundsAndEntries(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	if got := len(idx.Compounds()); got != 3 {
		t.Errorf("Compounds() = %d, want 3", got)
	}
	if got := len(idx.Compounds("namespace", "class")); got != 2 {
		t.Errorf("Compounds(namespace, class) = %d, want 2", got)
	}
	if got := len(idx.IndexEntries("namespace")); got != 1 {
		t.Errorf("IndexEntries(namespace) = %d, want 1", got)
	}
}

func TestSymbolsAndSearch(t *testing.T) {
	t.Parallel()
	idx := testIndex(t)

	// 3 compounds, 3 memberdefs, 1 enum value
	if got := len(idx.Symbols()); got != 7 {
		t.Errorf("Symbols() = %d, want 7", got)
	}

	got := idx.Search("getname", 0)
	if len(got) != 1 || got[0].QualifiedName() != "OpenMM::Force::getName" {
		t.Errorf("Search(getname) = %+v", got)
	}

	if got := idx.Search("openmm", 2); len(got) != 2 {
		t.Errorf("Search limit not applied: %d results", len(got))
	}
}

func TestNewIndex_NilRoot(t *testing.T) {
	t.Parallel()
	idx := NewIndex(nil)
	if _, ok := idx.Resolve("x", ""); ok {
		t.Error("expected empty index to resolve nothing")
	}
	if idx.Compounds() != nil {
		t.Error("expected no compounds")
	}
}
