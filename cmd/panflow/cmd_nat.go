package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/natsplit"
)

var natCmd = &cobra.Command{
	Use:   "nat",
	Short: "NAT rule transformations",
}

var (
	natAll        bool
	natSuffix     string
	natNoZoneSwap bool
	natNoAddrSwap bool
	natAnyAny     bool
	natKeepBiDir  bool
	natFilter     string
)

var natSplitCmd = &cobra.Command{
	Use:   "split [rule-name ...]",
	Short: "Split bidirectional NAT rules into explicit pairs",
	Long: `Split bidirectional static NAT rules into an original plus an
explicit reverse rule, inserted directly after the original.

By default the reverse rule swaps zones and addresses and the original
rule loses its bi-directional flag. The reverse rule is named after the
original with the "-reverse" suffix.

Examples:
  panflow -c fw.xml nat split static-dmz -x
  panflow -c fw.xml nat split --all -x
  panflow -c fw.xml nat split --all --filter "dmz" --return-any-any -x`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		if !natAll && len(args) == 0 {
			return fmt.Errorf("name at least one rule or use --all")
		}

		opts := natsplit.DefaultOptions()
		opts.Suffix = natSuffix
		opts.ZoneSwap = !natNoZoneSwap
		opts.AddressSwap = !natNoAddrSwap
		opts.ReturnRuleAnyAny = natAnyAny
		opts.DisableOrigBidirectional = !natKeepBiDir
		opts.NameFilter = natFilter

		rb := rulebaseFor(eng.DeviceType())

		if natAll {
			res, err := eng.SplitAllBidirectionalNAT(ctx, rb, opts)
			auditEvent("split.nat", "rule:nat", "", ctx, err)
			if err != nil {
				return err
			}
			if res.Processed == 0 {
				fmt.Println("No bidirectional NAT rules found.")
				return nil
			}
			t := cli.NewTable("RULE", "REVERSE", "STATUS", "MESSAGE")
			for _, d := range res.Details {
				status := green(d.Status)
				if d.Status != "ok" {
					status = red(d.Status)
				}
				t.Row(d.Rule, d.Reverse, status, d.Message)
			}
			t.Flush()
			fmt.Printf("\nprocessed=%d succeeded=%d failed=%d\n", res.Processed, res.Succeeded, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d rule(s) failed to split", res.Failed)
			}
			return commitTree(eng)
		}

		for _, name := range args {
			warnings, err := eng.SplitBidirectionalNAT(name, ctx, rb, opts)
			auditEvent("split.nat", "rule:nat", name, ctx, err)
			if err != nil {
				return err
			}
			fmt.Printf("Split '%s' into forward and reverse rules\n", name)
			for _, w := range warnings {
				fmt.Println(yellow("WARNING: " + w))
			}
		}
		return commitTree(eng)
	},
}

func init() {
	natCmd.PersistentFlags().StringVar(&policyRulebase, "rulebase", "", "Rulebase (pre, post; firewall default is local)")
	natSplitCmd.Flags().BoolVar(&natAll, "all", false, "Split every bidirectional NAT rule in the context")
	natSplitCmd.Flags().StringVar(&natSuffix, "suffix", natsplit.DefaultSuffix, "Reverse rule name suffix")
	natSplitCmd.Flags().BoolVar(&natNoZoneSwap, "no-zone-swap", false, "Do not swap zones in the reverse rule")
	natSplitCmd.Flags().BoolVar(&natNoAddrSwap, "no-address-swap", false, "Do not swap addresses in the reverse rule")
	natSplitCmd.Flags().BoolVar(&natAnyAny, "return-any-any", false, "Build the reverse rule with any source and zone")
	natSplitCmd.Flags().BoolVar(&natKeepBiDir, "keep-bidirectional", false, "Leave the bi-directional flag on the original rule")
	natSplitCmd.Flags().StringVar(&natFilter, "filter", "", "Only split rules whose name contains this substring")
	addWriteFlags(natSplitCmd)

	natCmd.AddCommand(natSplitCmd)
}
