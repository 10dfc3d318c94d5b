package engine

import (
	"errors"
	"testing"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/internal/testutil"
	"github.com/panflow-net/panflow/pkg/panflow/dedup"
	"github.com/panflow-net/panflow/pkg/panflow/merge"
	"github.com/panflow-net/panflow/pkg/panflow/natsplit"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

func firewallEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testutil.Firewall(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func panoramaEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testutil.Panorama(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func parseEntry(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc.Root()
}

func TestNew_Inference(t *testing.T) {
	fw := firewallEngine(t)
	if fw.DeviceType() != pan.Firewall {
		t.Errorf("firewall inferred as %q", fw.DeviceType())
	}
	if fw.Version() != (pan.Version{Major: 11, Minor: 2}) {
		t.Errorf("firewall version = %s", fw.Version())
	}

	pano := panoramaEngine(t)
	if pano.DeviceType() != pan.Panorama {
		t.Errorf("panorama inferred as %q", pano.DeviceType())
	}
}

func TestNew_Overrides(t *testing.T) {
	e, err := New(testutil.Firewall(t),
		WithDeviceType(pan.Panorama),
		WithVersion(pan.MustVersion("10.1")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.DeviceType() != pan.Panorama {
		t.Errorf("pinned device type = %q", e.DeviceType())
	}
	if e.Version() != (pan.Version{Major: 10, Minor: 1}) {
		t.Errorf("pinned version = %s", e.Version())
	}

	// Unknown intermediate versions snap down to the nearest schema.
	e, err = New(testutil.Firewall(t), WithVersion(pan.Version{Major: 10, Minor: 3}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.Version() != (pan.Version{Major: 10, Minor: 2}) {
		t.Errorf("snapped version = %s", e.Version())
	}
}

func TestNew_Rejections(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, util.ErrInvalidArgument) {
		t.Errorf("nil tree error = %v", err)
	}
	if _, err := New(testutil.Firewall(t), WithDeviceType("router")); !errors.Is(err, util.ErrInvalidArgument) {
		t.Errorf("bad device type error = %v", err)
	}
}

func TestContexts(t *testing.T) {
	fw := firewallEngine(t)
	ctxs := fw.Contexts()
	if len(ctxs) != 2 {
		t.Fatalf("firewall contexts = %v", ctxs)
	}
	if !ctxs[0].Equal(pan.Shared()) || !ctxs[1].Equal(pan.Vsys("vsys1")) {
		t.Errorf("firewall contexts = %v", ctxs)
	}

	pano := panoramaEngine(t)
	if got := len(pano.Contexts()); got != 3 {
		t.Errorf("panorama context count = %d", got)
	}
}

// ====================================================================
// objects
// ====================================================================

func TestGetObjects(t *testing.T) {
	e := firewallEngine(t)

	entries, err := e.GetObjects(pan.KindAddress, pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("GetObjects failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("vsys1 addresses = %d", len(entries))
	}

	// Device-group contexts do not exist on a firewall.
	if _, err := e.GetObjects(pan.KindAddress, pan.DeviceGroup("dg")); err == nil {
		t.Error("device-group context on a firewall should be rejected")
	}
}

func TestGetObject(t *testing.T) {
	e := firewallEngine(t)

	el, err := e.GetObject(pan.KindAddress, "dns-server", pan.Shared())
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if xmltree.EntryName(el) != "dns-server" {
		t.Errorf("entry = %q", xmltree.EntryName(el))
	}

	if _, err := e.GetObject(pan.KindAddress, "nope", pan.Vsys("vsys1")); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing object error = %v", err)
	}
}

func TestAddObject(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	entry := parseEntry(t, `<entry name="app-server"><ip-netmask>10.1.3.30/32</ip-netmask></entry>`)
	if err := e.AddObject(pan.KindAddress, ctx, entry); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}
	if _, err := e.GetObject(pan.KindAddress, "app-server", ctx); err != nil {
		t.Errorf("added object not found: %v", err)
	}

	dup := parseEntry(t, `<entry name="app-server"><ip-netmask>10.1.3.31/32</ip-netmask></entry>`)
	if err := e.AddObject(pan.KindAddress, ctx, dup); !errors.Is(err, util.ErrConflict) {
		t.Errorf("duplicate add error = %v", err)
	}

	anon := parseEntry(t, `<entry><ip-netmask>10.1.3.32/32</ip-netmask></entry>`)
	if err := e.AddObject(pan.KindAddress, ctx, anon); !errors.Is(err, util.ErrInvalidArgument) {
		t.Errorf("nameless add error = %v", err)
	}

	bad := parseEntry(t, `<entry name="broken"><ip-netmask>not-an-ip</ip-netmask></entry>`)
	if err := e.AddObject(pan.KindAddress, ctx, bad); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("invalid object error = %v", err)
	}
}

func TestUpdateObject(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	// The replacement keeps the original name and slot even when the new
	// element is named differently.
	entry := parseEntry(t, `<entry name="renamed"><ip-netmask>10.1.1.11/32</ip-netmask></entry>`)
	if err := e.UpdateObject(pan.KindAddress, "web-server", ctx, entry); err != nil {
		t.Fatalf("UpdateObject failed: %v", err)
	}
	entries, _ := e.GetObjects(pan.KindAddress, ctx)
	if xmltree.EntryName(entries[0]) != "web-server" {
		t.Errorf("first entry = %q", xmltree.EntryName(entries[0]))
	}
	if xmltree.ChildText(entries[0], "ip-netmask") != "10.1.1.11/32" {
		t.Errorf("value = %q", xmltree.ChildText(entries[0], "ip-netmask"))
	}

	missing := parseEntry(t, `<entry name="x"><ip-netmask>10.0.0.1/32</ip-netmask></entry>`)
	if err := e.UpdateObject(pan.KindAddress, "nope", ctx, missing); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing update error = %v", err)
	}
}

func TestDeleteObject(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	if err := e.DeleteObject(pan.KindAddress, "db-server", ctx); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if err := e.DeleteObject(pan.KindAddress, "db-server", ctx); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestFilterObjects(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	got, err := e.FilterObjects(pan.KindAddress, ctx, Criteria{"value": "10.1.1.10/32"})
	if err != nil {
		t.Fatalf("FilterObjects failed: %v", err)
	}
	if len(got) != 1 || xmltree.EntryName(got[0]) != "web-server" {
		t.Errorf("value filter hit = %v", got)
	}

	got, err = e.FilterObjects(pan.KindAddress, ctx, Criteria{"name": []string{"web-server", "db-server"}})
	if err != nil {
		t.Fatalf("FilterObjects failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("name list filter = %d entries", len(got))
	}

	got, err = e.FilterObjects(pan.KindAddress, ctx, Criteria{"xpath:./ip-netmask": nil})
	if err != nil {
		t.Fatalf("FilterObjects failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("xpath filter = %d entries", len(got))
	}

	got, err = e.FilterObjects(pan.KindAddress, ctx, Criteria{"has-tag": "prod"})
	if err != nil {
		t.Fatalf("FilterObjects failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("untagged fixture matched has-tag: %v", got)
	}

	if _, err := e.FilterObjects(pan.KindAddress, ctx, Criteria{"xpath:./ip-netmask[": nil}); !errors.Is(err, util.ErrInvalidXPath) {
		t.Errorf("bad xpath error = %v", err)
	}
}

// ====================================================================
// policies
// ====================================================================

const newRuleXML = `<entry name="deny-db">
  <from><member>untrust</member></from>
  <to><member>trust</member></to>
  <source><member>any</member></source>
  <destination><member>db-server</member></destination>
  <service><member>any</member></service>
  <application><member>any</member></application>
  <action>deny</action>
</entry>`

func ruleNames(t *testing.T, e *Engine) []string {
	t.Helper()
	rules, err := e.GetPolicies(pan.RuleSecurity, pan.RulebaseLocal, pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("GetPolicies failed: %v", err)
	}
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = xmltree.EntryName(r)
	}
	return names
}

func TestPolicyAddAndGet(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	if err := e.AddPolicy(pan.RuleSecurity, pan.RulebaseLocal, ctx, parseEntry(t, newRuleXML), merge.PositionTop, ""); err != nil {
		t.Fatalf("AddPolicy failed: %v", err)
	}
	if names := ruleNames(t, e); names[0] != "deny-db" || names[1] != "allow-web" {
		t.Errorf("rule order = %v", names)
	}

	if _, err := e.GetPolicy(pan.RuleSecurity, pan.RulebaseLocal, "deny-db", ctx); err != nil {
		t.Errorf("added rule not found: %v", err)
	}
	if _, err := e.GetPolicy(pan.RuleSecurity, pan.RulebaseLocal, "nope", ctx); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing rule error = %v", err)
	}

	if err := e.AddPolicy(pan.RuleSecurity, pan.RulebaseLocal, ctx, parseEntry(t, newRuleXML), merge.PositionBottom, ""); !errors.Is(err, util.ErrConflict) {
		t.Errorf("duplicate rule error = %v", err)
	}
}

func TestMovePolicy(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	if err := e.AddPolicy(pan.RuleSecurity, pan.RulebaseLocal, ctx, parseEntry(t, newRuleXML), merge.PositionTop, ""); err != nil {
		t.Fatalf("AddPolicy failed: %v", err)
	}
	if err := e.MovePolicy(pan.RuleSecurity, pan.RulebaseLocal, "deny-db", ctx, merge.PositionAfter, "allow-web"); err != nil {
		t.Fatalf("MovePolicy failed: %v", err)
	}
	if names := ruleNames(t, e); names[0] != "allow-web" || names[1] != "deny-db" {
		t.Errorf("rule order after move = %v", names)
	}
}

func TestClonePolicy(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	if err := e.ClonePolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", "allow-web-clone", ctx); err != nil {
		t.Fatalf("ClonePolicy failed: %v", err)
	}
	// The clone lands directly after its original.
	if names := ruleNames(t, e); names[0] != "allow-web" || names[1] != "allow-web-clone" {
		t.Errorf("rule order after clone = %v", names)
	}

	if err := e.ClonePolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", "allow-web-clone", ctx); !errors.Is(err, util.ErrConflict) {
		t.Errorf("clone onto existing name error = %v", err)
	}
}

func TestUpdateAndDeletePolicy(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	updated := parseEntry(t, newRuleXML)
	if err := e.UpdatePolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", ctx, updated); err != nil {
		t.Fatalf("UpdatePolicy failed: %v", err)
	}
	rule, err := e.GetPolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", ctx)
	if err != nil {
		t.Fatalf("updated rule lost: %v", err)
	}
	if xmltree.ChildText(rule, "action") != "deny" {
		t.Errorf("action = %q", xmltree.ChildText(rule, "action"))
	}

	if err := e.DeletePolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", ctx); err != nil {
		t.Fatalf("DeletePolicy failed: %v", err)
	}
	if _, err := e.GetPolicy(pan.RuleSecurity, pan.RulebaseLocal, "allow-web", ctx); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("deleted rule still resolves: %v", err)
	}
}

// ====================================================================
// merge, dedup, split
// ====================================================================

func TestMergeObject(t *testing.T) {
	e := firewallEngine(t)

	merged, sum, err := e.MergeObject(pan.KindAddress, "dns-server", pan.Shared(), pan.Vsys("vsys1"), merge.Options{})
	if err != nil {
		t.Fatalf("MergeObject failed: %v", err)
	}
	if !merged {
		t.Error("copy reported not merged")
	}
	if m, s := sum.Counts(); m != 1 || s != 0 {
		t.Errorf("counts = %d/%d", m, s)
	}
	if _, err := e.GetObject(pan.KindAddress, "dns-server", pan.Vsys("vsys1")); err != nil {
		t.Errorf("copied object not found: %v", err)
	}
	// The shared original stays.
	if _, err := e.GetObject(pan.KindAddress, "dns-server", pan.Shared()); err != nil {
		t.Errorf("source object lost: %v", err)
	}
}

const profileCascadeXML = `<config version="11.2.0">
  <devices>
    <entry name="localhost.localdomain">
      <vsys><entry name="vsys1"/></vsys>
    </entry>
  </devices>
  <shared>
    <external-list>
      <entry name="bad-domains">
        <type><domain><url>https://feeds.example.com/bad.txt</url></domain></type>
      </entry>
    </external-list>
    <profiles>
      <custom-url-category>
        <entry name="blocked-sites">
          <type>URL List</type>
          <list><member>bad-domains</member></list>
        </entry>
      </custom-url-category>
      <url-filtering>
        <entry name="corp-web">
          <block><member>blocked-sites</member></block>
        </entry>
      </url-filtering>
    </profiles>
  </shared>
</config>`

func TestMergeObject_ProfileCascade(t *testing.T) {
	e, err := New(testutil.LoadTree(t, profileCascadeXML))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := pan.Vsys("vsys1")

	// Copying the url-filtering profile with its dependency closure pulls
	// the custom category and, through it, the external list.
	merged, sum, err := e.MergeObject(pan.KindURLFilteringProfile, "corp-web", pan.Shared(), ctx,
		merge.Options{CopyWithDependencies: true})
	if err != nil {
		t.Fatalf("MergeObject failed: %v", err)
	}
	if !merged {
		t.Error("copy reported not merged")
	}
	if m, _ := sum.Counts(); m != 3 {
		t.Errorf("merged = %v", sum.Merged)
	}
	for kind, name := range map[pan.Kind]string{
		pan.KindURLFilteringProfile: "corp-web",
		pan.KindURLCategory:         "blocked-sites",
		pan.KindExternalList:        "bad-domains",
	} {
		if _, err := e.GetObject(kind, name, ctx); err != nil {
			t.Errorf("%s %q not copied: %v", kind, name, err)
		}
	}
}

func TestMergeAll(t *testing.T) {
	e := firewallEngine(t)

	sum, err := e.MergeAll(pan.Shared(), pan.Vsys("vsys1"), false, merge.Options{})
	if err != nil {
		t.Fatalf("MergeAll failed: %v", err)
	}
	if m, s := sum.Counts(); m != 1 || s != 0 {
		t.Errorf("first pass counts = %d/%d", m, s)
	}

	// A second pass finds everything already in place.
	sum, err = e.MergeAll(pan.Shared(), pan.Vsys("vsys1"), false, merge.Options{})
	if err != nil {
		t.Fatalf("second MergeAll failed: %v", err)
	}
	if m, s := sum.Counts(); m != 0 || s != 1 {
		t.Errorf("second pass counts = %d/%d", m, s)
	}
}

func TestMergeFrom(t *testing.T) {
	src := panoramaEngine(t)
	dst, err := New(testutil.LoadTree(t, `<config version="11.2.0"><devices><entry name="localhost.localdomain"><device-group/></entry></devices><shared/></config>`),
		WithDeviceType(pan.Panorama))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	merged, _, err := dst.MergeFrom(src).CopyObject(pan.KindAddress, "hq-dns", pan.Shared(), pan.Shared(), merge.Options{})
	if err != nil {
		t.Fatalf("CopyObject failed: %v", err)
	}
	if !merged {
		t.Error("cross-tree copy reported not merged")
	}
	if _, err := dst.GetObject(pan.KindAddress, "hq-dns", pan.Shared()); err != nil {
		t.Errorf("copied object not found in destination: %v", err)
	}
}

func TestDeduplicate(t *testing.T) {
	e, err := New(testutil.LoadTree(t, `<config version="11.2.0">
	  <devices><entry name="localhost.localdomain"><vsys><entry name="vsys1">
	    <address>
	      <entry name="web"><ip-netmask>10.1.1.10/32</ip-netmask></entry>
	      <entry name="web-copy"><ip-netmask>10.1.1.10</ip-netmask></entry>
	    </address>
	  </entry></vsys></entry></devices>
	  <shared/>
	</config>`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := e.Deduplicate(pan.KindAddress, pan.Vsys("vsys1"), dedup.First, false, false)
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if res.Removed != 1 {
		t.Errorf("Removed = %d", res.Removed)
	}
	if _, err := e.GetObject(pan.KindAddress, "web-copy", pan.Vsys("vsys1")); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("duplicate still present: %v", err)
	}
}

func TestSplitBidirectionalNAT(t *testing.T) {
	e, err := New(testutil.LoadTree(t, `<config version="11.2.0">
	  <devices><entry name="localhost.localdomain"><vsys><entry name="vsys1">
	    <rulebase><nat><rules>
	      <entry name="outbound">
	        <from><member>trust</member></from>
	        <to><member>untrust</member></to>
	        <source><member>web-internal</member></source>
	        <destination><member>any</member></destination>
	        <source-translation>
	          <static-ip>
	            <translated-address>203.0.113.10</translated-address>
	            <bi-directional>yes</bi-directional>
	          </static-ip>
	        </source-translation>
	      </entry>
	    </rules></nat></rulebase>
	  </entry></vsys></entry></devices>
	  <shared/>
	</config>`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := pan.Vsys("vsys1")

	warnings, err := e.SplitBidirectionalNAT("outbound", ctx, pan.RulebaseLocal, natsplit.DefaultOptions())
	if err != nil {
		t.Fatalf("SplitBidirectionalNAT failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if _, err := e.GetPolicy(pan.RuleNAT, pan.RulebaseLocal, "outbound"+natsplit.DefaultSuffix, ctx); err != nil {
		t.Errorf("reverse rule not found: %v", err)
	}

	// The batch form finds nothing left to split.
	res, err := e.SplitAllBidirectionalNAT(ctx, pan.RulebaseLocal, natsplit.DefaultOptions())
	if err != nil {
		t.Fatalf("SplitAllBidirectionalNAT failed: %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("batch after split = %+v", res)
	}
}

func TestValidateObject(t *testing.T) {
	e := firewallEngine(t)

	ok, errs, err := e.ValidateObject(pan.KindAddress, "web-server", pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("ValidateObject failed: %v", err)
	}
	if !ok || len(errs) != 0 {
		t.Errorf("fixture object invalid: %v", errs)
	}

	if _, _, err := e.ValidateObject(pan.KindAddress, "nope", pan.Vsys("vsys1")); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing object error = %v", err)
	}
}
