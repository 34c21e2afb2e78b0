package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `apiVersion: script/v1
meta:
  name: checkout
  vars:
    env: staging
branches:
  - title: happy path
    steps:
      - text: open the cart
        run: "true"
      - text: with one item
        depth: 1
        run: "1 + 1 == 2"
        set:
          items: "1"
      - text: totals add up
        depth: 1
        expectFail: true
        run: "false"
  - title: empty cart
    after: [happy path]
    steps:
      - text: execute in browser
`

// TestLoadDocument verifies decoding of the full document shape.
func TestLoadDocument(t *testing.T) {
	doc, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	if doc.APIVersion != "script/v1" || doc.Meta.Name != "checkout" {
		t.Errorf("header = %q %q", doc.APIVersion, doc.Meta.Name)
	}
	if len(doc.Branches) != 2 {
		t.Fatalf("branches = %d, want 2", len(doc.Branches))
	}
	b := doc.Branches[0]
	if len(b.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(b.Steps))
	}
	if b.Steps[1].Depth != 1 || !b.Steps[2].ExpectFail {
		t.Errorf("step fields lost: %+v %+v", b.Steps[1], b.Steps[2])
	}
	if doc.Branches[1].After[0] != "happy path" {
		t.Errorf("after = %v", doc.Branches[1].After)
	}
}

// TestLoadCapturesLines verifies each step records its source line.
func TestLoadCapturesLines(t *testing.T) {
	doc, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	steps := doc.Branches[0].Steps
	if steps[0].Line == 0 {
		t.Error("step line not captured")
	}
	if !(steps[0].Line < steps[1].Line && steps[1].Line < steps[2].Line) {
		t.Errorf("lines not increasing: %d %d %d", steps[0].Line, steps[1].Line, steps[2].Line)
	}
}

// TestLoadRejectsUnknownFields verifies strict decoding catches misspelled
// keys.
func TestLoadRejectsUnknownFields(t *testing.T) {
	src := `apiVersion: script/v1
meta:
  name: bad
branches:
  - title: b
    stpes:
      - text: x
`
	if _, err := Load(strings.NewReader(src)); err == nil {
		t.Error("unknown field should be rejected")
	}
}

// TestLoadPreservesAssignmentOrder verifies set: mappings keep document
// order, which later assignments rely on.
func TestLoadPreservesAssignmentOrder(t *testing.T) {
	src := `apiVersion: script/v1
meta:
  name: order
branches:
  - title: b
    steps:
      - text: chain
        set:
          zeta: "1"
          alpha: "zeta + 1"
          mid: "alpha + 1"
`
	doc, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	as := doc.Branches[0].Steps[0].Assigns
	want := []string{"zeta", "alpha", "mid"}
	if len(as) != len(want) {
		t.Fatalf("assignments = %d, want %d", len(as), len(want))
	}
	for i, name := range want {
		if as[i].Name != name {
			t.Errorf("assignment %d = %q, want %q", i, as[i].Name, name)
		}
	}
}

// TestLoadFileCompiles verifies LoadFile binds payloads and stamps the file
// path.
func TestLoadFileCompiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := doc.Branches[0].Steps[0]
	if s.Payload == nil {
		t.Error("run: not compiled into a payload")
	}
	if s.File != path {
		t.Errorf("file = %q, want %q", s.File, path)
	}
}

// TestLoadFileRejectsBadExpression verifies compile errors surface with
// location context.
func TestLoadFileRejectsBadExpression(t *testing.T) {
	src := `apiVersion: script/v1
meta:
  name: bad
branches:
  - title: b
    steps:
      - text: broken
        run: "1 +"
`
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "doc.yaml") {
		t.Errorf("error lacks file context: %v", err)
	}
}

// TestCanonical verifies directive text normalization.
func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"Execute In Browser":     "execute in browser",
		"  execute   in browser": "execute in browser",
		"EXECUTE\tIN\nBROWSER":   "execute in browser",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}
