package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/jarmerge/pkg/classfile"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

func TestReconcileDropsMarkerPaths(t *testing.T) {
	side, annotation := sideonly.Paths()[0], sideonly.Paths()[1]
	client := files{
		annotation: []byte("client marker"),
		"a.txt":    []byte("a"),
	}.archive(t, "client.jar")
	server := files{
		annotation: []byte("server marker"),
		side:       []byte("server enum"),
	}.archive(t, "server.jar")

	plan, err := Reconcile(client, server, ReconcileOptions{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	var paths []string
	for _, e := range plan.Entries {
		paths = append(paths, e.Path)
	}
	if diff := cmp.Diff([]string{"a.txt"}, paths); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{side, annotation}, plan.Overridden); diff != "" {
		t.Fatalf("overridden mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileClassifiesEntries(t *testing.T) {
	client := files{
		"same.txt":    []byte("same"),
		"diff.txt":    []byte("client"),
		"C.class":     []byte("client class"),
		"client.only": []byte("c"),
	}.archive(t, "client.jar")
	server := files{
		"same.txt":    []byte("same"),
		"diff.txt":    []byte("server"),
		"C.class":     []byte("server class"),
		"server.only": []byte("s"),
	}.archive(t, "server.jar")

	plan, err := Reconcile(client, server, ReconcileOptions{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	type row struct {
		Path       string
		Origin     Origin
		Resolution Resolution
		Data       string
	}
	var got []row
	for _, e := range plan.Entries {
		got = append(got, row{e.Path, e.Origin, e.Resolution, string(e.Data)})
	}
	want := []row{
		{"C.class", Divergent, ClassMerge, ""},
		{"client.only", ClientOnly, PassThrough, "c"},
		{"diff.txt", Divergent, ClientWins, "client"},
		{"same.txt", Identical, PassThrough, "same"},
		{"server.only", ServerOnly, PassThrough, "s"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	if n := plan.Count(Divergent); n != 2 {
		t.Errorf("Count(Divergent) = %d, want 2", n)
	}
}

func TestReconcileRejectsUnknownPolicy(t *testing.T) {
	a := files{}.archive(t, "a.jar")
	if _, err := Reconcile(a, a, ReconcileOptions{Policy: "newest"}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestExcludeSetMatch(t *testing.T) {
	set, err := newExcludeSet([]string{"META-INF/*.SF", "assets/**", "*.txt"})
	if err != nil {
		t.Fatalf("newExcludeSet: %v", err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{"META-INF/CERT.SF", true},
		{"META-INF/MANIFEST.MF", false},
		{"assets/a/b/c.png", true},
		{"assetsx/c.png", false},
		{"readme.txt", true},
		{"docs/readme.txt", false},
	}
	for _, tt := range tests {
		if got := set.match(tt.path); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOriginString(t *testing.T) {
	got := []string{ClientOnly.String(), ServerOnly.String(), Identical.String(), Divergent.String(), Origin(9).String()}
	want := []string{"ClientOnly", "ServerOnly", "Identical", "Divergent", "Origin(9)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestMatchMembersAnchorsInsertions(t *testing.T) {
	list := func(names ...string) *memberList {
		l := &memberList{members: map[MemberRef]*classfile.Member{}}
		for _, n := range names {
			ref := MemberRef{Kind: MethodMember, Name: n, Descriptor: "()V"}
			l.refs = append(l.refs, ref)
			l.members[ref] = &classfile.Member{}
		}
		return l
	}

	tests := []struct {
		name   string
		client []string
		server []string
		want   []string
	}{
		{"disjoint", []string{"a"}, []string{"b"}, []string{"b", "a"}},
		{"after anchor", []string{"a", "c"}, []string{"a", "b"}, []string{"a", "b", "c"}},
		{"keeps server order", []string{"a"}, []string{"a", "y", "x"}, []string{"a", "y", "x"}},
		{"identical", []string{"a", "b"}, []string{"b", "a"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range matchMembers(list(tt.client...), list(tt.server...)) {
				got = append(got, m.Ref.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}
