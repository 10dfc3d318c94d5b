package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Configuration analysis reports",
	Long: `Read-only analysis reports over the loaded configuration.

Examples:
  panflow -c fw.xml report unused address
  panflow -c fw.xml report duplicates service
  panflow -c fw.xml report coverage
  panflow -c fw.xml report overlaps
  panflow -c fw.xml report hitcount --hits hits.json`,
}

var reportUnusedCmd = &cobra.Command{
	Use:   "unused <kind>",
	Short: "List objects nothing references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		unused, err := eng.UnusedObjects(pan.Kind(args[0]), ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(unused)
		}
		if len(unused) == 0 {
			fmt.Println("No unused objects")
			return nil
		}
		for _, name := range unused {
			fmt.Println(name)
		}
		fmt.Printf("\n%d unused %s object(s)\n", len(unused), args[0])
		return nil
	},
}

var reportDuplicatesCmd = &cobra.Command{
	Use:   "duplicates <kind>",
	Short: "List value-equivalent object groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		dups, err := eng.DuplicateObjects(pan.Kind(args[0]), ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(dups)
		}
		if len(dups) == 0 {
			fmt.Println("No duplicates found")
			return nil
		}
		t := cli.NewTable("VALUE", "OBJECTS")
		for key, names := range dups {
			t.Row(key, strings.Join(names, ", "))
		}
		t.Flush()
		return nil
	},
}

var reportCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Summarize rulebases across every context",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine()
		if err != nil {
			return err
		}
		entries, err := eng.RuleCoverage()
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No rules found")
			return nil
		}
		t := cli.NewTable("CONTEXT", "RULEBASE", "KIND", "TOTAL", "DISABLED", "ANY-ANY", "NO-LOG")
		for _, e := range entries {
			t.Row(e.Context, e.Rulebase, e.RuleKind,
				strconv.Itoa(e.Total), strconv.Itoa(e.Disabled),
				strconv.Itoa(e.AnyAny), strconv.Itoa(e.NoLog))
		}
		t.Flush()
		return nil
	},
}

var reportOverlapsCmd = &cobra.Command{
	Use:   "overlaps",
	Short: "Find address objects covered by wider prefixes",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		overlaps, err := eng.AddressOverlaps(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(overlaps)
		}
		if len(overlaps) == 0 {
			fmt.Println("No overlapping address prefixes")
			return nil
		}
		t := cli.NewTable("NAME", "PREFIX", "COVERED BY", "COVERING PREFIX")
		for _, o := range overlaps {
			t.Row(o.Name, o.Prefix, o.Covers, o.Covered)
		}
		t.Flush()
		return nil
	},
}

var reportHitsFile string

var reportHitcountCmd = &cobra.Command{
	Use:   "hitcount --hits <file>",
	Short: "Classify security rules against a hit-count sample",
	Long: `Classify security rules against an externally collected sample.

The --hits file is a JSON object mapping rule names to hit counts, as
collected from the device (e.g. via 'show rule-hit-count').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportHitsFile == "" {
			return fmt.Errorf("--hits <file> required")
		}
		data, err := os.ReadFile(reportHitsFile)
		if err != nil {
			return err
		}
		hits := map[string]int{}
		if err := json.Unmarshal(data, &hits); err != nil {
			return fmt.Errorf("parsing %s: %w", reportHitsFile, err)
		}

		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		report, err := eng.HitCountAnalysis(ctx, rulebaseFor(eng.DeviceType()), hits)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(report)
		}
		fmt.Printf("Total rules:    %d\n", report.Total)
		fmt.Printf("With traffic:   %d\n", report.Hit)
		fmt.Printf("Zero hits:      %d\n", len(report.ZeroHit))
		fmt.Printf("Not in sample:  %d\n", len(report.Unknown))
		for _, name := range report.ZeroHit {
			fmt.Println("  zero-hit: " + name)
		}
		return nil
	},
}

func init() {
	reportHitcountCmd.Flags().StringVar(&reportHitsFile, "hits", "", "JSON file of rule-name to hit-count")
	reportHitcountCmd.Flags().StringVar(&policyRulebase, "rulebase", "", "Rulebase (pre, post; firewall default is local)")

	for _, cmd := range []*cobra.Command{
		reportUnusedCmd, reportDuplicatesCmd, reportCoverageCmd,
		reportOverlapsCmd, reportHitcountCmd,
	} {
		addOutputFlags(cmd)
		reportCmd.AddCommand(cmd)
	}
}
