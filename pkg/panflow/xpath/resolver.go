// Package xpath maps logical (kind, device type, context, version) tuples
// to concrete PAN-OS xpaths. Path layout follows the conventions of the
// firewall and Panorama configuration trees: objects live directly under a
// context base, security profiles under the base's profiles node, rules
// under rulebase (firewall) or pre-/post-rulebase (Panorama).
package xpath

import (
	"fmt"
	"strings"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/util"
)

const localhostEntry = "/config/devices/entry[@name='localhost.localdomain']"

// Resolver answers "where does entity X live" for a given device type and
// schema version. It is stateless; one instance serves any number of
// trees.
type Resolver struct{}

// New returns a Resolver.
func New() *Resolver { return &Resolver{} }

// ContextXPath returns the base path under which all entities of the
// context live. Illegal device-type/context combinations return a typed
// ContextError.
func (r *Resolver) ContextXPath(dt pan.DeviceType, ctx pan.Context) (string, error) {
	if !dt.Valid() {
		return "", &util.ContextError{DeviceType: string(dt), Context: ctx.String(), Detail: "unknown device type"}
	}
	if err := ctx.Validate(dt); err != nil {
		return "", &util.ContextError{DeviceType: string(dt), Context: ctx.String(), Detail: err.Error()}
	}
	if ctx.Name != "" {
		if err := checkName(ctx.Name); err != nil {
			return "", err
		}
	}
	switch ctx.Type {
	case pan.CtxShared:
		return "/config/shared", nil
	case pan.CtxVsys:
		return fmt.Sprintf("%s/vsys/entry[@name='%s']", localhostEntry, ctx.Name), nil
	case pan.CtxDeviceGroup:
		return fmt.Sprintf("%s/device-group/entry[@name='%s']", localhostEntry, ctx.Name), nil
	case pan.CtxTemplate:
		return fmt.Sprintf("%s/template/entry[@name='%s']/config/shared", localhostEntry, ctx.Name), nil
	}
	return "", &util.ContextError{DeviceType: string(dt), Context: ctx.String(), Detail: "unknown context type"}
}

// ObjectContainerXPath returns the container path for a kind, e.g. the
// <address> node of the context.
func (r *Resolver) ObjectContainerXPath(kind pan.Kind, dt pan.DeviceType, ctx pan.Context, version pan.Version) (string, error) {
	base, err := r.ContextXPath(dt, ctx)
	if err != nil {
		return "", err
	}
	fragment, err := objectFragment(kind, version)
	if err != nil {
		return "", err
	}
	return base + "/" + fragment, nil
}

// ObjectXPath returns the leaf entry path for a named object, or the
// container path when name is empty.
func (r *Resolver) ObjectXPath(kind pan.Kind, dt pan.DeviceType, ctx pan.Context, version pan.Version, name string) (string, error) {
	container, err := r.ObjectContainerXPath(kind, dt, ctx, version)
	if err != nil {
		return "", err
	}
	if name == "" {
		return container, nil
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/entry[@name='%s']", container, name), nil
}

// PolicyContainerXPath returns the rules container for a rule kind in the
// given rulebase.
func (r *Resolver) PolicyContainerXPath(rk pan.RuleKind, rb pan.Rulebase, dt pan.DeviceType, ctx pan.Context, version pan.Version) (string, error) {
	if !rk.Valid() {
		return "", fmt.Errorf("%w: unknown rule kind %q", util.ErrInvalidArgument, rk)
	}
	if err := checkRulebase(rb, dt, ctx); err != nil {
		return "", err
	}
	base, err := r.ContextXPath(dt, ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s/rules", base, rb, rk), nil
}

// PolicyXPath returns the leaf entry path for a named rule, or the rules
// container when name is empty.
func (r *Resolver) PolicyXPath(rk pan.RuleKind, rb pan.Rulebase, dt pan.DeviceType, ctx pan.Context, version pan.Version, name string) (string, error) {
	container, err := r.PolicyContainerXPath(rk, rb, dt, ctx, version)
	if err != nil {
		return "", err
	}
	if name == "" {
		return container, nil
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/entry[@name='%s']", container, name), nil
}

// checkRulebase validates the rulebase against the device type and
// context: firewalls have one local rulebase under a vsys; Panorama splits
// pre/post under shared and device groups.
func checkRulebase(rb pan.Rulebase, dt pan.DeviceType, ctx pan.Context) error {
	switch dt {
	case pan.Firewall:
		if rb != pan.RulebaseLocal {
			return &util.ContextError{DeviceType: string(dt), Context: ctx.String(),
				Detail: fmt.Sprintf("%s does not exist on a firewall", rb)}
		}
		if ctx.Type != pan.CtxVsys {
			return &util.ContextError{DeviceType: string(dt), Context: ctx.String(),
				Detail: "firewall rules live under a vsys"}
		}
	case pan.Panorama:
		if rb != pan.RulebasePre && rb != pan.RulebasePost {
			return &util.ContextError{DeviceType: string(dt), Context: ctx.String(),
				Detail: fmt.Sprintf("%s does not exist on Panorama", rb)}
		}
		if ctx.Type != pan.CtxShared && ctx.Type != pan.CtxDeviceGroup {
			return &util.ContextError{DeviceType: string(dt), Context: ctx.String(),
				Detail: "Panorama rules live under shared or a device group"}
		}
	}
	return nil
}

// checkName rejects names that would break the generated predicate.
func checkName(name string) error {
	if strings.ContainsAny(name, `'"<>&`) {
		return fmt.Errorf("%w: name %q contains reserved characters", util.ErrInvalidArgument, name)
	}
	return nil
}
