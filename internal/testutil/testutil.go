// Package testutil provides configuration fixtures shared across tests.
package testutil

import (
	"testing"

	"github.com/panflow-net/panflow/pkg/panflow/configio"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

// LoadTree parses an XML document and fails the test on error.
func LoadTree(t *testing.T, xml string) *xmltree.Tree {
	t.Helper()
	tree, err := configio.LoadBytes([]byte(xml))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return tree
}

// FirewallXML is a minimal single-vsys firewall configuration with a few
// objects and one security rule.
const FirewallXML = `<config version="11.2.0">
  <devices>
    <entry name="localhost.localdomain">
      <vsys>
        <entry name="vsys1">
          <address>
            <entry name="web-server"><ip-netmask>10.1.1.10/32</ip-netmask></entry>
            <entry name="db-server"><ip-netmask>10.1.2.20/32</ip-netmask></entry>
          </address>
          <service>
            <entry name="tcp-8080"><protocol><tcp><port>8080</port></tcp></protocol></entry>
          </service>
          <rulebase>
            <security>
              <rules>
                <entry name="allow-web">
                  <from><member>untrust</member></from>
                  <to><member>trust</member></to>
                  <source><member>any</member></source>
                  <destination><member>web-server</member></destination>
                  <service><member>tcp-8080</member></service>
                  <application><member>web-browsing</member></application>
                  <action>allow</action>
                </entry>
              </rules>
            </security>
          </rulebase>
        </entry>
      </vsys>
    </entry>
  </devices>
  <shared>
    <address>
      <entry name="dns-server"><ip-netmask>10.0.0.53/32</ip-netmask></entry>
    </address>
  </shared>
</config>`

// PanoramaXML is a minimal Panorama configuration with shared objects
// and a two-level device-group hierarchy (branch inherits from corp).
const PanoramaXML = `<config version="11.2.0">
  <devices>
    <entry name="localhost.localdomain">
      <device-group>
        <entry name="corp">
          <address>
            <entry name="corp-net"><ip-netmask>10.10.0.0/16</ip-netmask></entry>
          </address>
        </entry>
        <entry name="branch">
          <parent-dg>corp</parent-dg>
          <address>
            <entry name="branch-net"><ip-netmask>10.20.0.0/16</ip-netmask></entry>
          </address>
          <post-rulebase>
            <security>
              <rules>
                <entry name="allow-out">
                  <from><member>trust</member></from>
                  <to><member>untrust</member></to>
                  <source><member>branch-net</member></source>
                  <destination><member>any</member></destination>
                  <service><member>any</member></service>
                  <application><member>any</member></application>
                  <action>allow</action>
                </entry>
              </rules>
            </security>
          </post-rulebase>
        </entry>
      </device-group>
    </entry>
  </devices>
  <shared>
    <address>
      <entry name="hq-dns"><ip-netmask>10.0.0.53/32</ip-netmask></entry>
    </address>
    <tag>
      <entry name="prod"><color>color1</color></entry>
    </tag>
  </shared>
</config>`

// Firewall returns a parsed copy of FirewallXML.
func Firewall(t *testing.T) *xmltree.Tree {
	t.Helper()
	return LoadTree(t, FirewallXML)
}

// Panorama returns a parsed copy of PanoramaXML.
func Panorama(t *testing.T) *xmltree.Tree {
	t.Helper()
	return LoadTree(t, PanoramaXML)
}
