package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/merge"
	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage policy rules",
	Long: `Manage security, NAT, decryption, and other policy rules.

Rule kinds: security, nat, decryption, authentication, pbf, qos, dos,
application-override, tunnel-inspect.

Rulebase selection: on a firewall every rule lives in the local
rulebase; on Panorama use --rulebase pre or --rulebase post.

Examples:
  panflow -c fw.xml policy list security
  panflow -c panorama.xml --context dg:branch policy list security --rulebase post
  panflow -c fw.xml policy show nat outbound-nat
  panflow -c fw.xml policy move security allow-web --position top -x
  panflow -c fw.xml policy clone security allow-web allow-web-v2 -x`,
}

var (
	policyRulebase string
	policyPosition string
	policyRef      string
)

var policyListCmd = &cobra.Command{
	Use:   "list <rule-kind>",
	Short: "List rules of a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		rk := pan.RuleKind(args[0])
		rules, err := eng.GetPolicies(rk, rulebaseFor(eng.DeviceType()), ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			names := make([]string, 0, len(rules))
			for _, el := range rules {
				names = append(names, xmltree.EntryName(el))
			}
			return json.NewEncoder(os.Stdout).Encode(names)
		}
		if len(rules) == 0 {
			fmt.Printf("No %s rules in %s\n", rk, ctx)
			return nil
		}
		if rk == pan.RuleSecurity {
			t := cli.NewTable("NAME", "ACTION", "SOURCE", "DESTINATION", "SERVICE", "DISABLED")
			for _, el := range rules {
				rule := object.WrapSecurityRule(el)
				t.Row(rule.Name(), rule.Action(),
					strings.Join(rule.Sources(), ","),
					strings.Join(rule.Destinations(), ","),
					strings.Join(rule.Services(), ","),
					xmltree.ChildText(el, "disabled"))
			}
			t.Flush()
			return nil
		}
		t := cli.NewTable("NAME", "DISABLED")
		for _, el := range rules {
			t.Row(xmltree.EntryName(el), xmltree.ChildText(el, "disabled"))
		}
		t.Flush()
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <rule-kind> <name>",
	Short: "Show one rule as XML",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		el, err := eng.GetPolicy(pan.RuleKind(args[0]), rulebaseFor(eng.DeviceType()), args[1], ctx)
		if err != nil {
			return err
		}
		return printElement(el)
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <rule-kind> <name>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		rk, name := pan.RuleKind(args[0]), args[1]
		if err := eng.DeletePolicy(rk, rulebaseFor(eng.DeviceType()), name, ctx); err != nil {
			auditEvent("policy.delete", "rule:"+string(rk), name, ctx, err)
			return err
		}
		auditEvent("policy.delete", "rule:"+string(rk), name, ctx, nil)
		fmt.Printf("Deleted %s rule '%s' from %s\n", rk, name, ctx)
		return commitTree(eng)
	},
}

var policyMoveCmd = &cobra.Command{
	Use:   "move <rule-kind> <name>",
	Short: "Reposition a rule within its rulebase",
	Long: `Reposition a rule within its rulebase.

Positions: top, bottom, before (with --ref), after (with --ref).

Examples:
  panflow -c fw.xml policy move security allow-web --position top -x
  panflow -c fw.xml policy move security allow-web --position after --ref allow-dns -x`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		rk, name := pan.RuleKind(args[0]), args[1]
		pos := merge.Position(policyPosition)
		if !pos.Valid() {
			return fmt.Errorf("invalid position %q (valid: top, bottom, before, after)", policyPosition)
		}
		if (pos == merge.PositionBefore || pos == merge.PositionAfter) && policyRef == "" {
			return fmt.Errorf("--ref required with --position %s", pos)
		}
		if err := eng.MovePolicy(rk, rulebaseFor(eng.DeviceType()), name, ctx, pos, policyRef); err != nil {
			auditEvent("policy.move", "rule:"+string(rk), name, ctx, err)
			return err
		}
		auditEvent("policy.move", "rule:"+string(rk), name, ctx, nil)
		fmt.Printf("Moved %s rule '%s' to %s\n", rk, name, pos)
		return commitTree(eng)
	},
}

var policyCloneCmd = &cobra.Command{
	Use:   "clone <rule-kind> <name> <new-name>",
	Short: "Duplicate a rule under a new name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		rk, name, newName := pan.RuleKind(args[0]), args[1], args[2]
		if err := eng.ClonePolicy(rk, rulebaseFor(eng.DeviceType()), name, newName, ctx); err != nil {
			auditEvent("policy.clone", "rule:"+string(rk), name, ctx, err)
			return err
		}
		auditEvent("policy.clone", "rule:"+string(rk), name, ctx, nil)
		fmt.Printf("Cloned %s rule '%s' as '%s'\n", rk, name, newName)
		return commitTree(eng)
	},
}

func init() {
	policyCmd.PersistentFlags().StringVar(&policyRulebase, "rulebase", "", "Rulebase (pre, post; firewall default is local)")

	policyMoveCmd.Flags().StringVar(&policyPosition, "position", "top", "Position (top, bottom, before, after)")
	policyMoveCmd.Flags().StringVar(&policyRef, "ref", "", "Reference rule for before/after")

	for _, cmd := range []*cobra.Command{policyDeleteCmd, policyMoveCmd, policyCloneCmd} {
		addWriteFlags(cmd)
	}
	addOutputFlags(policyListCmd)

	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyDeleteCmd)
	policyCmd.AddCommand(policyMoveCmd)
	policyCmd.AddCommand(policyCloneCmd)
}

// rulebaseFor resolves the --rulebase flag against the device type.
// An empty flag means the local rulebase on firewalls and pre on
// Panorama.
func rulebaseFor(dt pan.DeviceType) pan.Rulebase {
	switch policyRulebase {
	case "":
		if dt == pan.Panorama {
			return pan.RulebasePre
		}
		return pan.RulebaseLocal
	case "pre":
		return pan.RulebasePre
	case "post":
		return pan.RulebasePost
	case "local":
		return pan.RulebaseLocal
	default:
		return pan.Rulebase(policyRulebase)
	}
}
