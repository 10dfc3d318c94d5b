package pan

import "fmt"

// ContextType tags the scope a configuration entity lives in.
type ContextType string

const (
	CtxShared      ContextType = "shared"
	CtxDeviceGroup ContextType = "device_group"
	CtxVsys        ContextType = "vsys"
	CtxTemplate    ContextType = "template"
)

// Context is a tagged scope value. Shared carries no name; the other three
// carry the device-group, vsys, or template name.
type Context struct {
	Type ContextType
	Name string
}

// Shared returns the shared context.
func Shared() Context { return Context{Type: CtxShared} }

// DeviceGroup returns a device-group context (Panorama only).
func DeviceGroup(name string) Context { return Context{Type: CtxDeviceGroup, Name: name} }

// Vsys returns a vsys context (firewall only).
func Vsys(name string) Context { return Context{Type: CtxVsys, Name: name} }

// Template returns a template context (Panorama only).
func Template(name string) Context { return Context{Type: CtxTemplate, Name: name} }

// String renders the context for logs and error messages.
func (c Context) String() string {
	if c.Type == CtxShared {
		return "shared"
	}
	return fmt.Sprintf("%s[%s]", c.Type, c.Name)
}

// Validate checks the context against a device type: device groups and
// templates only exist on Panorama, vsys only on a firewall, and the named
// context types require a name.
func (c Context) Validate(dt DeviceType) error {
	switch c.Type {
	case CtxShared:
		return nil
	case CtxDeviceGroup, CtxTemplate:
		if dt != Panorama {
			return fmt.Errorf("context %s is not valid on a %s", c.Type, dt)
		}
	case CtxVsys:
		if dt != Firewall {
			return fmt.Errorf("context %s is not valid on a %s", c.Type, dt)
		}
	default:
		return fmt.Errorf("unknown context type %q", c.Type)
	}
	if c.Name == "" {
		return fmt.Errorf("context %s requires a name", c.Type)
	}
	return nil
}

// Equal reports whether two contexts are the same scope.
func (c Context) Equal(other Context) bool {
	return c.Type == other.Type && c.Name == other.Name
}
