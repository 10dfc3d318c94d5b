package conflict

import (
	"errors"
	"reflect"
	"testing"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

func parseEntry(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc.Root()
}

func resolver(t *testing.T, strategy Strategy) *Resolver {
	t.Helper()
	tree, err := xmltree.Parse([]byte(`<config/>`))
	if err != nil {
		t.Fatalf("parse tree: %v", err)
	}
	r, err := New(tree, strategy, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestStrategy_Valid(t *testing.T) {
	for _, s := range Strategies() {
		if !s.Valid() {
			t.Errorf("strategy %q should be valid", s)
		}
	}
	if Strategy("bogus").Valid() {
		t.Error("bogus strategy should be invalid")
	}
}

func TestNew_Defaults(t *testing.T) {
	r := resolver(t, "")
	if r.Strategy() != DefaultStrategy {
		t.Errorf("empty strategy should default to %q, got %q", DefaultStrategy, r.Strategy())
	}

	tree, _ := xmltree.Parse([]byte(`<config/>`))
	if _, err := New(tree, Strategy("bogus"), ""); err == nil {
		t.Error("unknown strategy should be rejected")
	} else if !errors.Is(err, util.ErrInvalidArgument) {
		t.Errorf("error should unwrap to ErrInvalidArgument, got %v", err)
	}
}

func TestResolve_Basic(t *testing.T) {
	src := parseEntry(t, `<entry name="web"><ip-netmask>10.0.0.1/32</ip-netmask></entry>`)
	tgt := parseEntry(t, `<entry name="web"><ip-netmask>10.0.0.2/32</ip-netmask></entry>`)

	tests := []struct {
		strategy Strategy
		outcome  Outcome
		proceed  bool
	}{
		{Skip, OutcomeSkip, false},
		{KeepTarget, OutcomeSkip, false},
		{Overwrite, OutcomeReplace, true},
		{KeepSource, OutcomeReplace, true},
		{Rename, OutcomeRename, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			d, err := resolver(t, tt.strategy).Resolve("address", "web", src, tgt)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if d.Outcome != tt.outcome {
				t.Errorf("Outcome = %v, want %v", d.Outcome, tt.outcome)
			}
			if d.Proceed() != tt.proceed {
				t.Errorf("Proceed = %v, want %v", d.Proceed(), tt.proceed)
			}
		})
	}
}

func TestResolve_Rename(t *testing.T) {
	src := parseEntry(t, `<entry name="web"/>`)
	tgt := parseEntry(t, `<entry name="web"/>`)

	d, err := resolver(t, Rename).Resolve("address", "web", src, tgt)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Name != "web"+DefaultRenameSuffix {
		t.Errorf("renamed to %q", d.Name)
	}

	tree, _ := xmltree.Parse([]byte(`<config/>`))
	r, _ := New(tree, Rename, "-copy")
	d, _ = r.Resolve("address", "web", src, tgt)
	if d.Name != "web-copy" {
		t.Errorf("custom suffix: renamed to %q", d.Name)
	}
}

func TestResolve_MergeStaticGroups(t *testing.T) {
	src := parseEntry(t, `<entry name="servers">
		<static><member>db</member><member>web</member></static>
		<tag><member>dmz</member></tag>
	</entry>`)
	tgt := parseEntry(t, `<entry name="servers">
		<static><member>web</member><member>dns</member></static>
		<tag><member>prod</member></tag>
	</entry>`)

	d, err := resolver(t, Merge).Resolve("address-group", "servers", src, tgt)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Outcome != OutcomeMerged || d.Proceed() {
		t.Errorf("merge decision = %+v", d)
	}

	got := object.WrapAddressGroup(tgt).StaticMembers()
	want := []string{"web", "dns", "db"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("members after merge = %v, want %v", got, want)
	}
	if !xmltree.ContainsMember(tgt, "tag", "dmz") || !xmltree.ContainsMember(tgt, "tag", "prod") {
		t.Errorf("tags after merge = %v", xmltree.Members(tgt, "tag"))
	}
}

func TestResolve_MergeDynamicGroups(t *testing.T) {
	src := parseEntry(t, `<entry name="g"><dynamic><filter>'web'</filter></dynamic></entry>`)
	tgt := parseEntry(t, `<entry name="g"><dynamic><filter>'prod'</filter></dynamic></entry>`)

	if _, err := resolver(t, Merge).Resolve("address-group", "g", src, tgt); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := object.WrapAddressGroup(tgt).DynamicFilter(); got != "('prod') and ('web')" {
		t.Errorf("filter after merge = %q", got)
	}
}

func TestResolve_MergeMixedGroupsFails(t *testing.T) {
	src := parseEntry(t, `<entry name="g"><static><member>web</member></static></entry>`)
	tgt := parseEntry(t, `<entry name="g"><dynamic><filter>'prod'</filter></dynamic></entry>`)

	_, err := resolver(t, Merge).Resolve("address-group", "g", src, tgt)
	if err == nil {
		t.Fatal("static/dynamic merge should fail")
	}
	if !errors.Is(err, util.ErrConflict) {
		t.Errorf("error should unwrap to ErrConflict, got %v", err)
	}
}

func TestResolve_MergeTag(t *testing.T) {
	src := parseEntry(t, `<entry name="prod"><color>color2</color><comments>src note</comments></entry>`)
	tgt := parseEntry(t, `<entry name="prod"><color>color1</color></entry>`)

	if _, err := resolver(t, Merge).Resolve("tag", "prod", src, tgt); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	tag := object.WrapTag(tgt)
	if tag.Color() != "color1" {
		t.Errorf("existing color should win: %q", tag.Color())
	}
	if tag.Comments() != "src note" {
		t.Errorf("missing comments should fill from source: %q", tag.Comments())
	}
}

func TestResolve_KeepNewer(t *testing.T) {
	newer := parseEntry(t, `<entry name="web"><last-modified>2026-08-01T00:00:00Z</last-modified></entry>`)
	older := parseEntry(t, `<entry name="web"><last-modified>2026-01-01T00:00:00Z</last-modified></entry>`)
	undated := parseEntry(t, `<entry name="web"/>`)

	r := resolver(t, KeepNewer)

	d, _ := r.Resolve("address", "web", newer, older)
	if d.Outcome != OutcomeReplace {
		t.Error("newer source should replace older target")
	}

	d, _ = r.Resolve("address", "web", older, newer)
	if d.Outcome != OutcomeSkip {
		t.Error("older source should yield to newer target")
	}

	// Missing timestamps fall back to overwrite.
	d, _ = r.Resolve("address", "web", undated, older)
	if d.Outcome != OutcomeReplace {
		t.Error("undated comparison should fall back to overwrite")
	}
}

func TestResolve_Interactive(t *testing.T) {
	src := parseEntry(t, `<entry name="web"/>`)
	tgt := parseEntry(t, `<entry name="web"/>`)

	r := resolver(t, Interactive)
	r.Prompt = func(kind, name string) (Strategy, error) {
		if kind != "address" || name != "web" {
			t.Errorf("prompt called with %q %q", kind, name)
		}
		return Overwrite, nil
	}
	d, err := r.Resolve("address", "web", src, tgt)
	if err != nil || d.Outcome != OutcomeReplace {
		t.Errorf("prompted overwrite: %+v, %v", d, err)
	}

	// A prompt returning interactive again is rejected.
	r.Prompt = func(string, string) (Strategy, error) { return Interactive, nil }
	if _, err := r.Resolve("address", "web", src, tgt); err == nil {
		t.Error("recursive interactive answer should fail")
	}

	// No prompt installed falls back to the default strategy.
	r.Prompt = nil
	d, err = r.Resolve("address", "web", src, tgt)
	if err != nil || d.Outcome != OutcomeSkip {
		t.Errorf("promptless interactive should skip: %+v, %v", d, err)
	}
}
