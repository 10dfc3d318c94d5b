package engine

import (
	"strings"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

const localhostEntry = "/config/devices/entry[@name='localhost.localdomain']"

// marker is one inference probe: an xpath whose presence adds weight
// toward a device type.
type marker struct {
	xpath  string
	weight int
}

var panoramaMarkers = []marker{
	{localhostEntry + "/device-group/entry", 10},
	{localhostEntry + "/template/entry", 8},
	{"/config/panorama", 6},
	{localhostEntry + "/log-collector", 4},
}

var firewallMarkers = []marker{
	{localhostEntry + "/vsys/entry", 10},
	{localhostEntry + "/network/interface", 6},
	{localhostEntry + "/network/virtual-router", 4},
	{localhostEntry + "/deviceconfig/system/ip-address", 2},
}

// InferDeviceType probes the tree for structural markers of each shape
// and picks the heavier side. Ties resolve to firewall, the more common
// input.
func InferDeviceType(tree *xmltree.Tree) pan.DeviceType {
	scorePanorama := score(tree, panoramaMarkers)
	scoreFirewall := score(tree, firewallMarkers)

	// A hostname mentioning panorama is a weak hint, never decisive on
	// its own.
	if hostname, err := tree.TextOf(localhostEntry + "/deviceconfig/system/hostname"); err == nil {
		if strings.Contains(strings.ToLower(hostname), "panorama") {
			scorePanorama += 2
		}
	}

	util.Debugf("device type inference: panorama=%d firewall=%d", scorePanorama, scoreFirewall)
	if scorePanorama > scoreFirewall {
		return pan.Panorama
	}
	return pan.Firewall
}

func score(tree *xmltree.Tree, markers []marker) int {
	total := 0
	for _, m := range markers {
		if ok, err := tree.Exists(m.xpath); err == nil && ok {
			total += m.weight
		}
	}
	return total
}

// InferVersion reads the version attribute of the config root when
// present; otherwise the newest known version applies.
func InferVersion(tree *xmltree.Tree) pan.Version {
	if attr := tree.Root().SelectAttrValue("version", ""); attr != "" {
		// Detailed versions carry a patch component (11.1.2-h3); the
		// engine keys on major.minor.
		parts := strings.SplitN(attr, ".", 3)
		if len(parts) >= 2 {
			if v, err := pan.ParseVersion(parts[0] + "." + parts[1]); err == nil {
				return pan.ResolveVersion(v)
			}
		}
	}
	return pan.DefaultVersion
}
