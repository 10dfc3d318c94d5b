package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/panflow-net/panflow/internal/testutil"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

func TestUnusedObjects(t *testing.T) {
	e := firewallEngine(t)

	// web-server is held by the security rule; db-server hangs loose.
	unused, err := e.UnusedObjects(pan.KindAddress, pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("UnusedObjects failed: %v", err)
	}
	if !reflect.DeepEqual(unused, []string{"db-server"}) {
		t.Errorf("unused = %v", unused)
	}
}

func TestDuplicateObjects(t *testing.T) {
	e, err := New(testutil.LoadTree(t, `<config version="11.2.0">
	  <devices><entry name="localhost.localdomain"><vsys><entry name="vsys1">
	    <address>
	      <entry name="web"><ip-netmask>10.1.1.10/32</ip-netmask></entry>
	      <entry name="web-copy"><ip-netmask>10.1.1.10</ip-netmask></entry>
	      <entry name="db"><ip-netmask>10.1.2.20/32</ip-netmask></entry>
	    </address>
	  </entry></vsys></entry></devices>
	  <shared/>
	</config>`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dups, err := e.DuplicateObjects(pan.KindAddress, pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("DuplicateObjects failed: %v", err)
	}
	if len(dups) != 1 {
		t.Fatalf("dups = %v", dups)
	}
	for _, names := range dups {
		if !reflect.DeepEqual(names, []string{"web", "web-copy"}) {
			t.Errorf("class members = %v", names)
		}
	}
}

func TestRuleCoverage(t *testing.T) {
	e, err := New(testutil.LoadTree(t, `<config version="11.2.0">
	  <devices><entry name="localhost.localdomain"><vsys><entry name="vsys1">
	    <rulebase><security><rules>
	      <entry name="permit-all">
	        <from><member>any</member></from>
	        <to><member>any</member></to>
	        <source><member>any</member></source>
	        <destination><member>any</member></destination>
	        <service><member>any</member></service>
	        <application><member>any</member></application>
	        <action>allow</action>
	        <disabled>yes</disabled>
	      </entry>
	      <entry name="allow-web">
	        <from><member>untrust</member></from>
	        <to><member>trust</member></to>
	        <source><member>any</member></source>
	        <destination><member>web-server</member></destination>
	        <service><member>any</member></service>
	        <application><member>web-browsing</member></application>
	        <action>allow</action>
	        <log-end>yes</log-end>
	      </entry>
	    </rules></security></rulebase>
	  </entry></vsys></entry></devices>
	  <shared/>
	</config>`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	entries, err := e.RuleCoverage()
	if err != nil {
		t.Fatalf("RuleCoverage failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("coverage entries = %+v", entries)
	}
	got := entries[0]
	if got.Context != "vsys[vsys1]" || got.RuleKind != "security" {
		t.Errorf("slice = %+v", got)
	}
	if got.Total != 2 || got.Disabled != 1 || got.AnyAny != 1 || got.NoLog != 1 {
		t.Errorf("counts = %+v", got)
	}
}

func TestReferenceCheck(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	group := parseEntry(t, `<entry name="servers"><static><member>web-server</member><member>ghost</member></static></entry>`)
	if err := e.AddObject(pan.KindAddressGroup, ctx, group); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}

	report, err := e.ReferenceCheck(pan.KindAddressGroup, "servers", ctx)
	if err != nil {
		t.Fatalf("ReferenceCheck failed: %v", err)
	}
	if len(report.DependsOn) != 2 {
		t.Errorf("DependsOn = %v", report.DependsOn)
	}
	if len(report.Dangling) != 1 || report.Dangling[0].Name != "ghost" {
		t.Errorf("Dangling = %v", report.Dangling)
	}

	// The address now shows both the rule and the group as referrers.
	report, err = e.ReferenceCheck(pan.KindAddress, "web-server", ctx)
	if err != nil {
		t.Fatalf("ReferenceCheck failed: %v", err)
	}
	if len(report.ReferencedBy) != 2 {
		t.Errorf("ReferencedBy = %v", report.ReferencedBy)
	}
	if len(report.Dangling) != 0 {
		t.Errorf("address should have no dangling refs: %v", report.Dangling)
	}
}

func TestHitCountAnalysis(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	report, err := e.HitCountAnalysis(ctx, pan.RulebaseLocal, map[string]int{"allow-web": 12})
	if err != nil {
		t.Fatalf("HitCountAnalysis failed: %v", err)
	}
	if report.Total != 1 || report.Hit != 1 || len(report.ZeroHit) != 0 {
		t.Errorf("report = %+v", report)
	}

	report, err = e.HitCountAnalysis(ctx, pan.RulebaseLocal, map[string]int{"allow-web": 0})
	if err != nil {
		t.Fatalf("HitCountAnalysis failed: %v", err)
	}
	if !reflect.DeepEqual(report.ZeroHit, []string{"allow-web"}) {
		t.Errorf("zero-hit = %v", report.ZeroHit)
	}

	report, err = e.HitCountAnalysis(ctx, pan.RulebaseLocal, nil)
	if err != nil {
		t.Fatalf("HitCountAnalysis failed: %v", err)
	}
	if !reflect.DeepEqual(report.Unknown, []string{"allow-web"}) {
		t.Errorf("unknown = %v", report.Unknown)
	}
}

func TestAddressOverlaps(t *testing.T) {
	e := firewallEngine(t)
	ctx := pan.Vsys("vsys1")

	// Both fixture hosts sit inside this new supernet.
	net := parseEntry(t, `<entry name="dc-net"><ip-netmask>10.1.0.0/16</ip-netmask></entry>`)
	if err := e.AddObject(pan.KindAddress, ctx, net); err != nil {
		t.Fatalf("AddObject failed: %v", err)
	}

	overlaps, err := e.AddressOverlaps(ctx)
	if err != nil {
		t.Fatalf("AddressOverlaps failed: %v", err)
	}
	if len(overlaps) != 2 {
		t.Fatalf("overlaps = %+v", overlaps)
	}
	// Sorted by the covered object's name.
	if overlaps[0].Name != "db-server" || overlaps[1].Name != "web-server" {
		t.Errorf("order = %+v", overlaps)
	}
	for _, o := range overlaps {
		if o.Covers != "dc-net" || o.Covered != "10.1.0.0/16" {
			t.Errorf("cover = %+v", o)
		}
	}
}

func TestAddressOverlaps_None(t *testing.T) {
	e := firewallEngine(t)

	overlaps, err := e.AddressOverlaps(pan.Vsys("vsys1"))
	if err != nil {
		t.Fatalf("AddressOverlaps failed: %v", err)
	}
	if len(overlaps) != 0 {
		t.Errorf("disjoint hosts reported as overlapping: %+v", overlaps)
	}
}

func TestFormatSummaryLine(t *testing.T) {
	if got := FormatSummaryLine(3, 1, nil); got != "merged=3 skipped=1" {
		t.Errorf("line = %q", got)
	}
	got := FormatSummaryLine(0, 0, []string{"a", "b"})
	if !strings.Contains(got, "warnings=a; b") {
		t.Errorf("line = %q", got)
	}
}
