package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/engine"
	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Manage configuration objects",
	Long: `Manage address, service, tag, group, and profile objects.

Object kinds: address, address-group, service, service-group, tag,
external-list, schedule, profile-group, and the security profiles.

Examples:
  panflow -c fw.xml object list address
  panflow -c fw.xml object show address web-server
  panflow -c fw.xml object add address web-server --type ip-netmask --value 10.1.1.1/32 -x
  panflow -c fw.xml object find address value=10.1.1.1/32
  panflow -c fw.xml object delete address web-server -x`,
}

var (
	objAddType  string
	objAddDesc  string
	objAddTags  []string
	objAddProto string
)

var objectListCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List objects of a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind := pan.Kind(args[0])
		entries, err := eng.GetObjects(kind, ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			names := make([]string, 0, len(entries))
			for _, el := range entries {
				names = append(names, xmltree.EntryName(el))
			}
			return json.NewEncoder(os.Stdout).Encode(names)
		}
		if len(entries) == 0 {
			fmt.Printf("No %s objects in %s\n", kind, ctx)
			return nil
		}
		t := cli.NewTable("NAME", "VALUE", "TAGS")
		for _, el := range entries {
			t.Row(xmltree.EntryName(el), objectValue(kind, el), strings.Join(xmltree.Members(el, "tag"), ","))
		}
		t.Flush()
		return nil
	},
}

var objectShowCmd = &cobra.Command{
	Use:   "show <kind> <name>",
	Short: "Show one object as XML",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		el, err := eng.GetObject(pan.Kind(args[0]), args[1], ctx)
		if err != nil {
			return err
		}
		return printElement(el)
	},
}

var objectAddCmd = &cobra.Command{
	Use:   "add <kind> <name> --value <value>",
	Short: "Add a new object",
	Long: `Add a new object built from flags.

The --type flag selects the address form (ip-netmask, ip-range, fqdn,
ip-wildcard) and defaults to ip-netmask. For services, --protocol
selects tcp or udp and --value carries the port specification.

Examples:
  panflow -c fw.xml object add address web --value 10.1.1.1/32 -x
  panflow -c fw.xml object add address site --type fqdn --value www.example.com -x
  panflow -c fw.xml object add service http --protocol tcp --value 80 -x
  panflow -c fw.xml object add tag dmz --value color3 -x`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind, name := pan.Kind(args[0]), args[1]
		value, _ := cmd.Flags().GetString("value")
		entry, err := buildEntry(kind, name, value)
		if err != nil {
			return err
		}
		if err := eng.AddObject(kind, ctx, entry); err != nil {
			auditEvent("object.add", string(kind), name, ctx, err)
			return err
		}
		auditEvent("object.add", string(kind), name, ctx, nil)
		fmt.Printf("Added %s '%s' in %s\n", kind, name, ctx)
		return commitTree(eng)
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete <kind> <name>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind, name := pan.Kind(args[0]), args[1]

		// Refuse to orphan references unless nothing points here.
		refs, err := eng.Graph().ReferencedBy(kind, name, ctx)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			fmt.Println(red(fmt.Sprintf("'%s' is referenced by %d configuration element(s):", name, len(refs))))
			for _, ref := range refs {
				fmt.Printf("  %s '%s' (%s)\n", ref.RefKind, ref.Name, ref.Context)
			}
			return fmt.Errorf("delete aborted: object is still referenced")
		}

		if err := eng.DeleteObject(kind, name, ctx); err != nil {
			auditEvent("object.delete", string(kind), name, ctx, err)
			return err
		}
		auditEvent("object.delete", string(kind), name, ctx, nil)
		fmt.Printf("Deleted %s '%s' from %s\n", kind, name, ctx)
		return commitTree(eng)
	},
}

var objectRenameCmd = &cobra.Command{
	Use:   "rename <kind> <name> <new-name>",
	Short: "Rename an object and rewrite every reference",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind, name, newName := pan.Kind(args[0]), args[1], args[2]
		el, err := eng.GetObject(kind, name, ctx)
		if err != nil {
			return err
		}
		if existing, err := eng.GetObject(kind, newName, ctx); err == nil && existing != nil {
			return fmt.Errorf("'%s' already exists in %s", newName, ctx)
		}
		el.RemoveAttr("name")
		el.CreateAttr("name", newName)
		eng.Tree().Invalidate()
		rewritten := eng.Graph().RewriteReferences(kind, name, newName, ctx)
		auditEvent("object.rename", string(kind), name, ctx, nil)
		fmt.Printf("Renamed %s '%s' to '%s' (%d reference(s) rewritten)\n", kind, name, newName, rewritten)
		return commitTree(eng)
	},
}

var objFindFile string

var objectFindCmd = &cobra.Command{
	Use:   "find <kind> [key=value ...]",
	Short: "Find objects matching criteria",
	Long: `Find objects where every criterion matches.

Criteria keys: any child field name, "value" (the kind's primary
value), "has-tag", or "xpath:<path>". Criteria can also be loaded from
a YAML file (a mapping of key to value or list); key=value arguments
override file entries.

Examples:
  panflow -c fw.xml object find address value=10.1.1.1/32
  panflow -c fw.xml object find address has-tag=dmz
  panflow -c fw.xml object find address --from-file criteria.yaml
  panflow -c fw.xml object find address-group xpath:.//filter=`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind := pan.Kind(args[0])
		criteria := engine.Criteria{}
		if objFindFile != "" {
			data, err := os.ReadFile(objFindFile)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(data, &criteria); err != nil {
				return fmt.Errorf("parsing %s: %w", objFindFile, err)
			}
		}
		for _, arg := range args[1:] {
			key, value, found := strings.Cut(arg, "=")
			if !found {
				return fmt.Errorf("invalid criterion %q (use key=value)", arg)
			}
			criteria[key] = value
		}
		matches, err := eng.FilterObjects(kind, ctx, criteria)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matching objects")
			return nil
		}
		t := cli.NewTable("NAME", "VALUE")
		for _, el := range matches {
			t.Row(xmltree.EntryName(el), objectValue(kind, el))
		}
		t.Flush()
		return nil
	},
}

var objectValidateCmd = &cobra.Command{
	Use:   "validate <kind> [name]",
	Short: "Validate objects structurally",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		kind := pan.Kind(args[0])

		var names []string
		if len(args) == 2 {
			names = []string{args[1]}
		} else {
			entries, err := eng.GetObjects(kind, ctx)
			if err != nil {
				return err
			}
			for _, el := range entries {
				names = append(names, xmltree.EntryName(el))
			}
		}

		failures := 0
		for _, name := range names {
			ok, errs, err := eng.ValidateObject(kind, name, ctx)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			failures++
			fmt.Printf("%s %s:\n", red("INVALID"), name)
			for _, msg := range errs {
				fmt.Printf("  - %s\n", msg)
			}
		}
		if failures == 0 {
			fmt.Println(green(fmt.Sprintf("All %d %s object(s) valid", len(names), kind)))
			return nil
		}
		return fmt.Errorf("%d invalid object(s)", failures)
	},
}

func init() {
	objectAddCmd.Flags().String("value", "", "Object value (address, port spec, or tag color)")
	objectAddCmd.Flags().StringVar(&objAddType, "type", "ip-netmask", "Address type (ip-netmask, ip-range, fqdn, ip-wildcard)")
	objectAddCmd.Flags().StringVar(&objAddProto, "protocol", "tcp", "Service protocol (tcp, udp, sctp)")
	objectAddCmd.Flags().StringVar(&objAddDesc, "description", "", "Object description")
	objectAddCmd.Flags().StringSliceVar(&objAddTags, "tag", nil, "Tags to attach (repeatable)")
	objectFindCmd.Flags().StringVar(&objFindFile, "from-file", "", "YAML file of criteria")

	for _, cmd := range []*cobra.Command{objectAddCmd, objectDeleteCmd, objectRenameCmd} {
		addWriteFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{objectListCmd, objectFindCmd} {
		addOutputFlags(cmd)
	}

	objectCmd.AddCommand(objectListCmd)
	objectCmd.AddCommand(objectShowCmd)
	objectCmd.AddCommand(objectAddCmd)
	objectCmd.AddCommand(objectDeleteCmd)
	objectCmd.AddCommand(objectRenameCmd)
	objectCmd.AddCommand(objectFindCmd)
	objectCmd.AddCommand(objectValidateCmd)
}

// engineAndContext is the standard preamble for object/policy commands.
func engineAndContext() (*engine.Engine, pan.Context, error) {
	ctx, err := currentContext()
	if err != nil {
		return nil, pan.Context{}, err
	}
	eng, err := loadEngine()
	if err != nil {
		return nil, pan.Context{}, err
	}
	return eng, ctx, nil
}

// buildEntry constructs an entry element from the add-command flags.
func buildEntry(kind pan.Kind, name, value string) (*etree.Element, error) {
	entry := etree.NewElement("entry")
	entry.CreateAttr("name", name)

	switch kind {
	case pan.KindAddress:
		if value == "" {
			return nil, fmt.Errorf("--value required for address objects")
		}
		entry.CreateElement(objAddType).SetText(value)
	case pan.KindService:
		if value == "" {
			return nil, fmt.Errorf("--value required for service objects")
		}
		entry.CreateElement("protocol").CreateElement(objAddProto).CreateElement("port").SetText(value)
	case pan.KindTag:
		if value != "" {
			entry.CreateElement("color").SetText(value)
		}
	default:
		return nil, fmt.Errorf("'object add' supports address, service, and tag (use merge for %s)", kind)
	}

	if objAddDesc != "" {
		entry.CreateElement("description").SetText(objAddDesc)
	}
	if len(objAddTags) > 0 {
		xmltree.SetMembers(entry, "tag", objAddTags)
	}
	return entry, nil
}

// objectValue renders the display value for list output.
func objectValue(kind pan.Kind, el *etree.Element) string {
	switch kind {
	case pan.KindAddress:
		return object.WrapAddress(el).Value()
	case pan.KindService:
		svc := object.WrapService(el)
		return svc.Protocol() + "/" + svc.Port()
	case pan.KindTag:
		return object.WrapTag(el).Color()
	case pan.KindAddressGroup:
		group := object.WrapAddressGroup(el)
		if group.IsDynamic() {
			return "dynamic: " + group.DynamicFilter()
		}
		return strings.Join(group.StaticMembers(), ",")
	case pan.KindServiceGroup:
		return strings.Join(object.WrapServiceGroup(el).Members(), ",")
	default:
		return ""
	}
}

// printElement writes one element as indented XML.
func printElement(el *etree.Element) error {
	doc := etree.NewDocument()
	doc.AddChild(xmltree.CloneDeep(el))
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
