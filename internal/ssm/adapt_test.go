package ssm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ssm2txt/internal/schema"
	"ssm2txt/internal/tree"
)

// outline lists the tree as "<indent><tag> oid=<oid>" lines, falling back to
// the table name for table elements.
func outline(n *tree.Node) []string {
	var out []string
	var walk func(n *tree.Node, depth int)
	walk = func(n *tree.Node, depth int) {
		label := n.Tag
		if id, ok := n.Get("oid"); ok {
			label += " oid=" + id
		} else if name, ok := n.Get("table_name"); ok {
			label += " " + name
		}
		out = append(out, strings.Repeat("  ", depth)+label)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return out
}

func parse(t *testing.T, src string) *tree.Node {
	t.Helper()
	root, err := tree.Parse(strings.NewReader(src), "project.ssm")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return root
}

func table(name string, rows ...string) string {
	return fmt.Sprintf(`<table table_name=%q><rows>%s</rows></table>`, name, strings.Join(rows, ""))
}

const project = `<SISTEMA version="2"><tables>` +
	// Tables appear out of tree order on purpose.
	`<table table_name="blocops"><rows>` +
	`<row oid="40" parentopoid="30" name="B1" dcmeasureopoid="90"/>` +
	`<row oid="41" parentopoid="31" name="B2"/>` +
	`</rows></table>` +
	`<table table_name="projectops"><rows><row oid="1" name="Press"/></rows></table>` +
	`<table table_name="sfops"><rows>` +
	`<row oid="10" projectopoid="1" name="SF1"/>` +
	`<row oid="11" projectopoid="1" name="SF2"/>` +
	`</rows></table>` +
	`<table table_name="componentops"><rows><row oid="20" sfopoid="10" name="SB1"/></rows></table>` +
	`<table table_name="channelops"><rows>` +
	`<row oid="30" componentopoid="20" channeltype="ch1"/>` +
	`<row oid="31" componentopoid="20" channeltype="chTest"/>` +
	`</rows></table>` +
	`<table table_name="elementops"><rows><row oid="50" parentopoid="40" name="E1"/></rows></table>` +
	`<table table_name="ccfmeasureops"><rows><row oid="60" componentopoid="20" score="15"/></rows></table>` +
	`<table table_name="dcmeasureops"><rows><row oid="90" heading="Plausibility" dc="0.99"/></rows></table>` +
	`</tables></SISTEMA>`

func TestAdaptNestsRows(t *testing.T) {
	root := parse(t, project)
	got := outline(Adapt(root, schema.Default().Layout))
	want := []string{
		"SISTEMA",
		"  Project oid=1",
		"    SafetyFunction oid=10",
		"      Subsystem oid=20",
		"        Channel oid=30",
		"          Block oid=40",
		"            DCMeasure oid=90",
		"            Element oid=50",
		"        Channel oid=31",
		"          Block oid=41",
		"        CCFMeasure oid=60",
		"    SafetyFunction oid=11",
		"  tables",
		"    table dcmeasureops",
		"      rows",
		"        row oid=90",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestAdaptKeepsRowContent(t *testing.T) {
	root := parse(t, project)
	out := Adapt(root, schema.Default().Layout)
	sf := out.Children[0].Children[0]
	if sf.Attr("name") != "SF1" || sf.Attr("projectopoid") != "1" {
		t.Errorf("row attributes lost: %+v", sf.Attrs)
	}
	dc := sf.Children[0].Children[0].Children[0].Children[0]
	if dc.Tag != "DCMeasure" || dc.Attr("heading") != "Plausibility" {
		t.Errorf("referenced measure not copied: %+v", dc)
	}
}

func TestAdaptDoesNotModifyInput(t *testing.T) {
	root := parse(t, project)
	before := outline(root)
	Adapt(root, schema.Default().Layout)
	if diff := cmp.Diff(before, outline(root)); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestAdaptOrphans(t *testing.T) {
	src := `<SISTEMA><tables>` +
		table("projectops", `<row oid="1"/>`) +
		table("sfops",
			`<row oid="10" projectopoid="99"/>`, // unknown parent
			`<row oid="11"/>`,                   // no parent attribute
			`<row oid="12" projectopoid="12"/>`, // its own parent
		) +
		table("componentops",
			`<row oid="20" sfopoid="21"/>`,
			`<row oid="21" sfopoid="20"/>`, // cycle
		) +
		`</tables></SISTEMA>`
	got := outline(Adapt(parse(t, src), schema.Default().Layout))
	want := []string{
		"SISTEMA",
		"  Project oid=1",
		"  SafetyFunction oid=10",
		"  SafetyFunction oid=11",
		"  SafetyFunction oid=12",
		"  Subsystem oid=21",
		"    Subsystem oid=20",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestAdaptKeepsExtraTableContent(t *testing.T) {
	src := `<SISTEMA><tables>` +
		`<table table_name="projectops"><columns><column name="oid"/></columns><rows><row oid="1"/></rows></table>` +
		`</tables><settings lang="en"/></SISTEMA>`
	got := outline(Adapt(parse(t, src), schema.Default().Layout))
	want := []string{
		"SISTEMA",
		"  Project oid=1",
		"  tables",
		"    table projectops",
		"      columns",
		"        column",
		"  settings",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestAdaptNestedDocumentUnchanged(t *testing.T) {
	root := parse(t, `<Project name="P"><SafetyFunction name="S"/></Project>`)
	if got := Adapt(root, schema.Default().Layout); got != root {
		t.Error("document without tables should be returned as is")
	}
}

func TestAdaptWithoutLayout(t *testing.T) {
	root := parse(t, project)
	if got := Adapt(root, schema.Layout{}); got != root {
		t.Error("empty layout should return the document as is")
	}
}
