package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/dedup"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

var (
	dedupeStrategy string
	dedupeValidate bool
	dedupeAll      bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [kind ...]",
	Short: "Collapse value-equivalent objects",
	Long: `Collapse objects with identical values into a single primary,
rewriting every reference to the removed duplicates.

Dedupable kinds: address, service, tag, address-group, service-group.

Primary selection strategies:
  first         first definition in document order (default)
  shortest      shortest name
  longest       longest name
  alphabetical  lexically smallest name

Without -x the plan is printed and nothing changes.

Examples:
  panflow -c fw.xml dedupe address
  panflow -c fw.xml dedupe address service --strategy shortest -x
  panflow -c fw.xml dedupe --all -x -o fw-clean.xml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}

		strategy := dedup.Strategy(dedupeStrategy)
		if !strategy.Valid() {
			return fmt.Errorf("invalid strategy %q (valid: first, shortest, longest, alphabetical)", dedupeStrategy)
		}

		var kinds []pan.Kind
		switch {
		case dedupeAll:
			kinds = []pan.Kind{pan.KindAddress, pan.KindService, pan.KindTag, pan.KindAddressGroup, pan.KindServiceGroup}
		case len(args) > 0:
			for _, arg := range args {
				kinds = append(kinds, pan.Kind(arg))
			}
		default:
			return fmt.Errorf("name at least one kind or use --all")
		}

		totalRemoved, totalRefs, totalClasses := 0, 0, 0
		for _, kind := range kinds {
			res, err := eng.Deduplicate(kind, ctx, strategy, !executeMode, dedupeValidate)
			auditEvent("dedupe.run", string(kind), "", ctx, err)
			if err != nil {
				return err
			}
			if len(res.Classes) == 0 {
				continue
			}
			fmt.Println(bold(string(kind) + ":"))
			t := cli.NewTable("PRIMARY", "DUPLICATES")
			for _, class := range res.Classes {
				t.Row(class.Primary, fmt.Sprintf("%v", class.Duplicates))
			}
			t.Flush()
			totalRemoved += res.Removed
			totalRefs += res.RewrittenRefs
			totalClasses += len(res.Classes)
		}

		if totalClasses == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}
		if executeMode {
			fmt.Printf("\nRemoved %d duplicate(s), rewrote %d reference(s)\n", totalRemoved, totalRefs)
		}
		return commitTree(eng)
	},
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeStrategy, "strategy", "first", "Primary selection strategy")
	dedupeCmd.Flags().BoolVar(&dedupeValidate, "validate", false, "Verify no references survive to removed names")
	dedupeCmd.Flags().BoolVar(&dedupeAll, "all", false, "Deduplicate every dedupable kind")
	addWriteFlags(dedupeCmd)
}
