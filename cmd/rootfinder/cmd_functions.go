package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/catalog"
)

var functionsFlags struct {
	table bool
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the built-in test functions",
	Args:  cobra.NoArgs,
	RunE:  runFunctions,
}

func init() {
	functionsCmd.Flags().BoolVar(&functionsFlags.table, "table", false, "Print a table instead of JSON")
}

func runFunctions(cmd *cobra.Command, _ []string) error {
	fns := catalog.All()
	if !functionsFlags.table {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"functions": fns})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFUNCTION\tROOTS\tDOMAIN")
	for _, f := range fns {
		roots := make([]string, len(f.Roots))
		for i, r := range f.Roots {
			roots[i] = strconv.FormatFloat(r, 'g', 10, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t[%g, %g]\n", f.Name, f.Expression, strings.Join(roots, ", "), f.Domain[0], f.Domain[1])
	}
	return tw.Flush()
}
