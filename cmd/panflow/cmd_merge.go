package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/conflict"
	"github.com/panflow-net/panflow/pkg/panflow/engine"
	"github.com/panflow-net/panflow/pkg/panflow/merge"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge objects and policies between contexts",
	Long: `Merge objects and policies between contexts or configurations.

The source defaults to the same configuration (-c); use --from-config
to pull from a second file. Referenced tags always travel with an
object; --with-refs carries the full dependency closure.

Conflict strategies: skip (default), overwrite, keep_target, merge,
rename, keep_newer, interactive.

Examples:
  panflow -c panorama.xml merge object address web --from shared --to dg:branch -x
  panflow -c dst.xml merge object address web --from-config src.xml --from vsys:vsys1 --to shared -x
  panflow -c panorama.xml merge policy security allow-web --from dg:a --to dg:b -x
  panflow -c panorama.xml merge all --from dg:a --to dg:b --include-policies --conflict rename -x`,
}

var (
	mergeFromConfig string
	mergeFrom       string
	mergeTo         string
	mergeConflict   string
	mergeSuffix     string
	mergeWithRefs   bool
	mergeNoRefs     bool
	mergeRefBy      bool
	mergeValidate   bool
	mergeTolerant   bool
	mergePolicies   bool
	mergePosition   string
	mergeRef        string
	mergeKinds      []string
)

var mergeObjectCmd = &cobra.Command{
	Use:   "object <kind> <name> [name ...]",
	Short: "Merge one or more objects",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, src, srcCtx, dstCtx, err := mergeSetup()
		if err != nil {
			return err
		}
		opts, err := mergeOptions()
		if err != nil {
			return err
		}

		kind := pan.Kind(args[0])
		merger := dst.MergeFrom(src)
		total := &merge.Summary{}
		for _, name := range args[1:] {
			var sum *merge.Summary
			if mergeWithRefs {
				_, sum, err = merger.CopyObjectWithDependencies(kind, name, srcCtx, dstCtx, opts)
			} else {
				_, sum, err = merger.CopyObject(kind, name, srcCtx, dstCtx, opts)
			}
			auditEvent("merge.object", string(kind), name, dstCtx, err)
			if err != nil {
				return err
			}
			appendSummary(total, sum)
		}
		printSummary(total)
		return commitTree(dst)
	},
}

var mergePolicyCmd = &cobra.Command{
	Use:   "policy <rule-kind> <name> [name ...]",
	Short: "Merge one or more policy rules with their objects",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, src, srcCtx, dstCtx, err := mergeSetup()
		if err != nil {
			return err
		}
		opts, err := mergeOptions()
		if err != nil {
			return err
		}
		pos := merge.Position(mergePosition)
		if !pos.Valid() {
			return fmt.Errorf("invalid position %q (valid: top, bottom, before, after)", mergePosition)
		}

		rk := pan.RuleKind(args[0])
		rb := rulebaseFor(src.DeviceType())
		merger := dst.MergeFrom(src)
		total := &merge.Summary{}
		for _, name := range args[1:] {
			_, sum, err := merger.CopyPolicy(rk, rb, name, srcCtx, dstCtx, pos, mergeRef, opts)
			auditEvent("merge.policy", "rule:"+string(rk), name, dstCtx, err)
			if err != nil {
				return err
			}
			appendSummary(total, sum)
		}
		printSummary(total)
		return commitTree(dst)
	},
}

var mergeAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Merge every object (and optionally every rule) between contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, src, srcCtx, dstCtx, err := mergeSetup()
		if err != nil {
			return err
		}
		opts, err := mergeOptions()
		if err != nil {
			return err
		}

		var kinds []pan.Kind
		for _, k := range mergeKinds {
			kinds = append(kinds, pan.Kind(k))
		}

		merger := dst.MergeFrom(src)
		total, err := merger.MergeAllObjects(kinds, srcCtx, dstCtx, opts)
		auditEvent("merge.all", "objects", "", dstCtx, err)
		if err != nil {
			return err
		}
		if mergePolicies {
			polSum, err := merger.MergeAllPolicies(nil, srcCtx, dstCtx, opts)
			auditEvent("merge.all", "policies", "", dstCtx, err)
			if polSum != nil {
				appendSummary(total, polSum)
			}
			if err != nil {
				return err
			}
		}
		printSummary(total)
		return commitTree(dst)
	},
}

func init() {
	mergeCmd.PersistentFlags().StringVar(&mergeFromConfig, "from-config", "", "Source configuration file (default: same as -c)")
	mergeCmd.PersistentFlags().StringVar(&mergeFrom, "from", "shared", "Source context")
	mergeCmd.PersistentFlags().StringVar(&mergeTo, "to", "shared", "Target context")
	mergeCmd.PersistentFlags().StringVar(&mergeConflict, "conflict", "", "Conflict strategy (skip, overwrite, keep_target, merge, rename, keep_newer, interactive)")
	mergeCmd.PersistentFlags().StringVar(&mergeSuffix, "rename-suffix", "", "Suffix for the rename strategy")
	mergeCmd.PersistentFlags().BoolVar(&mergeNoRefs, "no-refs", false, "Do not follow references beyond tags")
	mergeCmd.PersistentFlags().BoolVar(&mergeValidate, "validate", false, "Validate objects before merging")
	mergeCmd.PersistentFlags().BoolVar(&mergeTolerant, "tolerant", false, "Warn instead of failing on version-incompatible fields")
	addWriteFlags(mergeCmd)

	mergeObjectCmd.Flags().BoolVar(&mergeWithRefs, "with-deps", false, "Copy the full dependency closure first")
	mergeObjectCmd.Flags().BoolVar(&mergeRefBy, "include-referenced-by", false, "Also copy objects and rules that reference the target")

	mergePolicyCmd.Flags().StringVar(&policyRulebase, "rulebase", "", "Rulebase (pre, post; firewall default is local)")
	mergePolicyCmd.Flags().StringVar(&mergePosition, "position", "bottom", "Insert position (top, bottom, before, after)")
	mergePolicyCmd.Flags().StringVar(&mergeRef, "ref", "", "Reference rule for before/after")

	mergeAllCmd.Flags().BoolVar(&mergePolicies, "include-policies", false, "Also merge every rulebase")
	mergeAllCmd.Flags().StringSliceVar(&mergeKinds, "kind", nil, "Restrict to specific object kinds (repeatable)")

	mergeCmd.AddCommand(mergeObjectCmd)
	mergeCmd.AddCommand(mergePolicyCmd)
	mergeCmd.AddCommand(mergeAllCmd)
}

// mergeSetup loads destination and source engines and parses contexts.
// Source and destination are the same engine unless --from-config names
// a second file.
func mergeSetup() (dst, src *engine.Engine, srcCtx, dstCtx pan.Context, err error) {
	srcCtx, err = parseContext(mergeFrom)
	if err != nil {
		return
	}
	dstCtx, err = parseContext(mergeTo)
	if err != nil {
		return
	}
	dst, err = loadEngine()
	if err != nil {
		return
	}
	src = dst
	if mergeFromConfig != "" {
		src, err = loadEngineAt(mergeFromConfig)
	}
	return
}

// mergeOptions translates flags into merge options, wiring the
// interactive prompt when requested.
func mergeOptions() (merge.Options, error) {
	strategy := mergeConflict
	if strategy == "" {
		strategy = userSettings.GetConflictStrategy()
	}
	cs := conflict.Strategy(strategy)
	if !cs.Valid() {
		return merge.Options{}, fmt.Errorf("invalid conflict strategy %q (valid: %v)", strategy, conflict.Strategies())
	}

	opts := merge.Options{
		CopyReferences:      !mergeNoRefs,
		IncludeReferencedBy: mergeRefBy,
		IncludePolicies:     mergePolicies || mergeRefBy,
		Validate:            mergeValidate,
		ConflictStrategy:    cs,
		RenameSuffix:        mergeSuffix,
		TolerantVersion:     mergeTolerant,
	}
	if cs == conflict.Interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return merge.Options{}, fmt.Errorf("interactive conflict resolution requires a terminal (stdin is not a tty)")
		}
		opts.Prompt = promptConflict
	}
	return opts, nil
}

// promptConflict asks the user to pick a strategy for one conflict.
func promptConflict(kind, name string) (conflict.Strategy, error) {
	fmt.Printf("%s %s '%s' already exists in target.\n", yellow("CONFLICT:"), kind, name)
	fmt.Printf("  [s]kip  [o]verwrite  [m]erge  [r]ename  [k]eep target: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return conflict.Skip, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "o", "overwrite":
		return conflict.Overwrite, nil
	case "m", "merge":
		return conflict.Merge, nil
	case "r", "rename":
		return conflict.Rename, nil
	case "k", "keep":
		return conflict.KeepTarget, nil
	default:
		return conflict.Skip, nil
	}
}

// appendSummary folds one summary into a running total.
func appendSummary(total, sum *merge.Summary) {
	if sum == nil {
		return
	}
	total.Merged = append(total.Merged, sum.Merged...)
	total.Skipped = append(total.Skipped, sum.Skipped...)
	total.Warnings = append(total.Warnings, sum.Warnings...)
}

// printSummary renders a merge summary as a table plus warnings.
func printSummary(sum *merge.Summary) {
	if sum == nil {
		return
	}
	if len(sum.Merged) > 0 {
		t := cli.NewTable("MERGED", "NAME")
		for _, item := range sum.Merged {
			t.Row(item.Kind, item.Name)
		}
		t.Flush()
	}
	if len(sum.Skipped) > 0 {
		t := cli.NewTable("SKIPPED", "NAME", "REASON")
		for _, item := range sum.Skipped {
			t.Row(item.Kind, item.Name, item.Reason)
		}
		t.Flush()
	}
	for _, warning := range sum.Warnings {
		fmt.Println(yellow("WARNING: " + warning))
	}
	merged, skipped := sum.Counts()
	fmt.Printf("\n%s\n", bold(fmt.Sprintf("merged=%d skipped=%d warnings=%d", merged, skipped, len(sum.Warnings))))
}
