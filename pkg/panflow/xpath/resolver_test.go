package xpath

import (
	"errors"
	"strings"
	"testing"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/util"
)

var v112 = pan.MustVersion("11.2")

func TestContextXPath(t *testing.T) {
	r := New()

	tests := []struct {
		name    string
		dt      pan.DeviceType
		ctx     pan.Context
		want    string
		wantErr bool
	}{
		{"shared firewall", pan.Firewall, pan.Shared(), "/config/shared", false},
		{"shared panorama", pan.Panorama, pan.Shared(), "/config/shared", false},
		{"vsys", pan.Firewall, pan.Vsys("vsys1"),
			"/config/devices/entry[@name='localhost.localdomain']/vsys/entry[@name='vsys1']", false},
		{"device group", pan.Panorama, pan.DeviceGroup("branch"),
			"/config/devices/entry[@name='localhost.localdomain']/device-group/entry[@name='branch']", false},
		{"template", pan.Panorama, pan.Template("base"),
			"/config/devices/entry[@name='localhost.localdomain']/template/entry[@name='base']/config/shared", false},
		{"vsys on panorama", pan.Panorama, pan.Vsys("vsys1"), "", true},
		{"device group on firewall", pan.Firewall, pan.DeviceGroup("branch"), "", true},
		{"bad device type", pan.DeviceType("router"), pan.Shared(), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ContextXPath(tt.dt, tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ContextXPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, util.ErrInvalidContext) {
					t.Errorf("error should unwrap to ErrInvalidContext, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ContextXPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectXPath(t *testing.T) {
	r := New()

	got, err := r.ObjectXPath(pan.KindAddress, pan.Firewall, pan.Vsys("vsys1"), v112, "web-server")
	if err != nil {
		t.Fatalf("ObjectXPath failed: %v", err)
	}
	want := "/config/devices/entry[@name='localhost.localdomain']/vsys/entry[@name='vsys1']/address/entry[@name='web-server']"
	if got != want {
		t.Errorf("ObjectXPath = %q, want %q", got, want)
	}

	// Empty name returns the container.
	container, err := r.ObjectXPath(pan.KindAddress, pan.Firewall, pan.Vsys("vsys1"), v112, "")
	if err != nil {
		t.Fatalf("ObjectXPath(empty) failed: %v", err)
	}
	if !strings.HasSuffix(container, "/address") {
		t.Errorf("container path = %q", container)
	}
}

func TestObjectXPath_Profiles(t *testing.T) {
	r := New()

	got, err := r.ObjectContainerXPath(pan.KindVirusProfile, pan.Panorama, pan.Shared(), v112)
	if err != nil {
		t.Fatalf("ObjectContainerXPath failed: %v", err)
	}
	if got != "/config/shared/profiles/virus" {
		t.Errorf("virus profile container = %q", got)
	}

	got, err = r.ObjectContainerXPath(pan.KindURLCategory, pan.Panorama, pan.Shared(), v112)
	if err != nil {
		t.Fatalf("ObjectContainerXPath failed: %v", err)
	}
	if got != "/config/shared/profiles/custom-url-category" {
		t.Errorf("custom-url-category container = %q", got)
	}
}

func TestObjectXPath_VersionGates(t *testing.T) {
	r := New()

	// DNS Security exists from 10.2 onward.
	if _, err := r.ObjectContainerXPath(pan.KindDNSSecurityProfile, pan.Firewall, pan.Shared(), pan.MustVersion("10.1")); err == nil {
		t.Error("dns-security should not resolve at 10.1")
	}
	if _, err := r.ObjectContainerXPath(pan.KindDNSSecurityProfile, pan.Firewall, pan.Shared(), pan.MustVersion("10.2")); err != nil {
		t.Errorf("dns-security should resolve at 10.2: %v", err)
	}
}

func TestObjectXPath_BadNames(t *testing.T) {
	r := New()

	for _, name := range []string{"a'b", `a"b`, "a<b", "a&b"} {
		if _, err := r.ObjectXPath(pan.KindAddress, pan.Firewall, pan.Shared(), v112, name); err == nil {
			t.Errorf("name %q should be rejected", name)
		} else if !errors.Is(err, util.ErrInvalidArgument) {
			t.Errorf("name %q error should unwrap to ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestObjectXPath_UnknownKind(t *testing.T) {
	r := New()
	if _, err := r.ObjectContainerXPath(pan.Kind("bogus"), pan.Firewall, pan.Shared(), v112); err == nil {
		t.Error("unknown kind should be rejected")
	}
}

func TestPolicyXPath(t *testing.T) {
	r := New()

	tests := []struct {
		name    string
		rk      pan.RuleKind
		rb      pan.Rulebase
		dt      pan.DeviceType
		ctx     pan.Context
		want    string
		wantErr bool
	}{
		{"firewall security", pan.RuleSecurity, pan.RulebaseLocal, pan.Firewall, pan.Vsys("vsys1"),
			"/config/devices/entry[@name='localhost.localdomain']/vsys/entry[@name='vsys1']/rulebase/security/rules", false},
		{"panorama pre nat", pan.RuleNAT, pan.RulebasePre, pan.Panorama, pan.DeviceGroup("branch"),
			"/config/devices/entry[@name='localhost.localdomain']/device-group/entry[@name='branch']/pre-rulebase/nat/rules", false},
		{"panorama shared post", pan.RuleSecurity, pan.RulebasePost, pan.Panorama, pan.Shared(),
			"/config/shared/post-rulebase/security/rules", false},
		{"pre on firewall", pan.RuleSecurity, pan.RulebasePre, pan.Firewall, pan.Vsys("vsys1"), "", true},
		{"local on panorama", pan.RuleSecurity, pan.RulebaseLocal, pan.Panorama, pan.Shared(), "", true},
		{"firewall rules in shared", pan.RuleSecurity, pan.RulebaseLocal, pan.Firewall, pan.Shared(), "", true},
		{"unknown rule kind", pan.RuleKind("bogus"), pan.RulebaseLocal, pan.Firewall, pan.Vsys("vsys1"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.PolicyContainerXPath(tt.rk, tt.rb, tt.dt, tt.ctx, v112)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PolicyContainerXPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("PolicyContainerXPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPolicyXPath_Named(t *testing.T) {
	r := New()

	got, err := r.PolicyXPath(pan.RuleSecurity, pan.RulebaseLocal, pan.Firewall, pan.Vsys("vsys1"), v112, "allow-web")
	if err != nil {
		t.Fatalf("PolicyXPath failed: %v", err)
	}
	if !strings.HasSuffix(got, "/rulebase/security/rules/entry[@name='allow-web']") {
		t.Errorf("PolicyXPath = %q", got)
	}
}
