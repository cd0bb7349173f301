package diff

import (
	"strings"
	"testing"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/classfile"
)

func mustArchive(t *testing.T, source string, files map[string]string) *archive.Archive {
	t.Helper()
	var entries []archive.Entry
	for p, data := range files {
		entries = append(entries, archive.NewEntry(p, []byte(data)))
	}
	a, err := archive.New(source, entries)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	return a
}

// buildClass assembles demo/Widget with the given methods; each method maps
// to its body.
func buildClass(t *testing.T, fields []string, methods map[string][]byte, static ...string) []byte {
	t.Helper()
	cf, err := classfile.New(classfile.Java8, classfile.AccPublic|classfile.AccSuper, "demo/Widget", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, f := range fields {
		if _, err := cf.AddField(classfile.AccPrivate, f, "I"); err != nil {
			t.Fatalf("AddField: %v", err)
		}
	}
	isStatic := map[string]bool{}
	for _, s := range static {
		isStatic[s] = true
	}
	for _, name := range []string{"alpha", "beta", "gamma"} {
		body, ok := methods[name]
		if !ok {
			continue
		}
		access := classfile.AccPublic
		if isStatic[name] {
			access |= classfile.AccStatic
		}
		code := &classfile.Code{MaxStack: 1, MaxLocals: 1, Code: body}
		if _, err := cf.AddMethod(access, name, "()I", code); err != nil {
			t.Fatalf("AddMethod: %v", err)
		}
	}
	return cf.Bytes()
}

var (
	retZero  = []byte{classfile.OpIconst0, classfile.OpIreturn}
	retSeven = []byte{classfile.OpBipush, 7, classfile.OpIreturn}
)

func TestDiffArchivesDetectsAllChangeTypes(t *testing.T) {
	before := mustArchive(t, "before.jar", map[string]string{
		"a.txt":    "same",
		"b.txt":    "old",
		"gone.txt": "bye",
	})
	after := mustArchive(t, "after.jar", map[string]string{
		"a.txt":   "same",
		"b.txt":   "new!",
		"new.txt": "hi",
	})

	d := DiffArchives(before, after)

	want := []struct {
		typ  ChangeType
		path string
	}{
		{Modified, "b.txt"},
		{Removed, "gone.txt"},
		{Added, "new.txt"},
	}
	if len(d.Changes) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(d.Changes), d.Changes)
	}
	for i, w := range want {
		c := d.Changes[i]
		if c.Type != w.typ || c.Path != w.path {
			t.Errorf("change %d = %v %s, want %v %s", i, c.Type, c.Path, w.typ, w.path)
		}
	}
	if d.Changes[1].After != nil {
		t.Error("Removed change should have nil After")
	}
	if d.Changes[2].Before != nil {
		t.Error("Added change should have nil Before")
	}
}

func TestDiffArchivesIdentical(t *testing.T) {
	a := mustArchive(t, "a.jar", map[string]string{"x": "1", "y": "2"})
	d := DiffArchives(a, a)
	if len(d.Changes) != 0 {
		t.Fatalf("expected no changes, got %+v", d.Changes)
	}
	if FormatArchiveDiff(d) != "" {
		t.Error("FormatArchiveDiff should be empty for no changes")
	}
}

func TestDiffClassesMembers(t *testing.T) {
	before := buildClass(t, []string{"count", "old"}, map[string][]byte{
		"alpha": retZero,
		"beta":  retZero,
		"gamma": retZero,
	})
	after := buildClass(t, []string{"count", "fresh"}, map[string][]byte{
		"alpha": retZero,
		"beta":  retSeven,
		"gamma": retZero,
	}, "gamma")

	d, err := DiffClasses("demo/Widget.class", before, after)
	if err != nil {
		t.Fatalf("DiffClasses: %v", err)
	}

	got := make([]string, 0, len(d.Changes))
	for _, c := range d.Changes {
		got = append(got, c.Type.String()+" "+memberDisplayName(c))
	}
	want := []string{
		"removed field old:I",
		"modified method beta()I",
		"modified method gamma()I",
		"added field fresh:I",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("changes:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if !strings.Contains(d.Changes[2].Detail, "access") {
		t.Errorf("gamma detail = %q, want access change", d.Changes[2].Detail)
	}
}

func TestDiffClassesRejectsMalformed(t *testing.T) {
	good := buildClass(t, nil, nil)
	if _, err := DiffClasses("x.class", good, []byte("nope")); err == nil {
		t.Fatal("expected error for malformed class")
	}
}

func TestFormatArchiveDiff(t *testing.T) {
	before := mustArchive(t, "before.jar", map[string]string{"b.txt": "old", "gone.txt": "bye"})
	after := mustArchive(t, "after.jar", map[string]string{"b.txt": "newer", "new.txt": "hi"})

	out := FormatArchiveDiff(DiffArchives(before, after))
	for _, want := range []string{
		"~ b.txt     (modified, 3 B -> 5 B)",
		"- gone.txt     (removed)",
		"+ new.txt     (added, 2 B)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
}

func TestFormatClassDiff(t *testing.T) {
	d := &ClassDiff{
		Path: "demo/Widget.class",
		Changes: []MemberChange{
			{Type: Added, Method: true, Name: "tick", Descriptor: "()V"},
			{Type: Modified, Name: "count", Descriptor: "I", Detail: "access 0x0001 -> 0x0002"},
			{Type: Removed, Method: true, Name: "render", Descriptor: "()V"},
		},
	}
	out := FormatClassDiff(d)

	if !strings.HasPrefix(out, "demo/Widget.class:\n") {
		t.Errorf("missing header, got:\n%s", out)
	}
	for _, want := range []string{
		"  + method tick()V     (added)",
		"  ~ field count:I     (modified: access 0x0001 -> 0x0002)",
		"  - method render()V     (removed)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
}

func TestFormatClassDiffEmpty(t *testing.T) {
	if out := FormatClassDiff(&ClassDiff{Path: "x.class"}); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}
