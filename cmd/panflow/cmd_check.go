package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reference and consistency checks",
	Long: `Check reference integrity of objects.

Examples:
  panflow -c fw.xml check refs address web-server
  panflow -c fw.xml check dangling address`,
}

var checkRefsCmd = &cobra.Command{
	Use:   "refs <kind> <name>",
	Short: "Show what an object references and what references it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ctx, err := engineAndContext()
		if err != nil {
			return err
		}
		report, err := eng.ReferenceCheck(pan.Kind(args[0]), args[1], ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(report)
		}

		if len(report.DependsOn) > 0 {
			fmt.Println(bold("Depends on:"))
			t := cli.NewTable("KIND", "NAME")
			for _, ref := range report.DependsOn {
				t.Row(string(ref.Kind), ref.Name)
			}
			t.Flush()
		}
		if len(report.ReferencedBy) > 0 {
			fmt.Println(bold("Referenced by:"))
			t := cli.NewTable("KIND", "NAME", "CONTEXT")
			for _, ref := range report.ReferencedBy {
				t.Row(ref.RefKind, ref.Name, ref.Context.String())
			}
			t.Flush()
		}
		if len(report.Dangling) > 0 {
			fmt.Println(red("Dangling references:"))
			for _, ref := range report.Dangling {
				fmt.Printf("  %s '%s' resolves nowhere\n", ref.Kind, ref.Name)
			}
			return fmt.Errorf("%d dangling reference(s)", len(report.Dangling))
		}
		if len(report.DependsOn) == 0 && len(report.ReferencedBy) == 0 {
			fmt.Println("No references either way")
		}
		return nil
	},
}

var checkDanglingCmd = &cobra.Command{
	Use:   "dangling <kind>",
	Short: "Find objects of a kind with dangling references",
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

		broken := 0
		for _, el := range entries {
			name := el.SelectAttrValue("name", "")
			if name == "" {
				continue
			}
			report, err := eng.ReferenceCheck(kind, name, ctx)
			if err != nil {
				return err
			}
			for _, ref := range report.Dangling {
				fmt.Printf("%s '%s' references missing %s '%s'\n", kind, name, ref.Kind, ref.Name)
				broken++
			}
		}
		if broken == 0 {
			fmt.Println(green("No dangling references"))
			return nil
		}
		return fmt.Errorf("%d dangling reference(s)", broken)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{checkRefsCmd, checkDanglingCmd} {
		addOutputFlags(cmd)
		checkCmd.AddCommand(cmd)
	}
}
