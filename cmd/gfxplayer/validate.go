package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-gfx/engine/document"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/spf13/cobra"
)

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := document.Drop(args[0])
	if err != nil {
		return err
	}
	if doc.Kind == node.KindVideo.String() {
		return fmt.Errorf("%s is a media file, not a shader", args[0])
	}

	n, err := doc.Restore(document.Env{})
	if err != nil {
		return err
	}
	defer n.Release()

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(out, "%s\t%s\n", doc.Kind, doc.Label)
	for i, p := range n.Inputs() {
		fmt.Fprintf(out, "  in %d\t%s\t%s\t%v\n", i, p.Name, p.Type, document.Components(p.Type, p.Value))
	}
	for i, p := range n.Outputs() {
		fmt.Fprintf(out, "  out %d\t%s\t%s\t\n", i, p.Name, p.Type)
	}
	return out.Flush()
}
