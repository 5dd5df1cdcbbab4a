package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

func newTableCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the transition table",
		Long:  `Print every (state, input) row of the transition table with its action and target state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := statemachine.State(state)
			if filter != "" && !filter.IsValid() {
				return fmt.Errorf("unknown state %q", state)
			}

			table, err := statemachine.DefaultTable()
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), table, filter)
		},
	}

	cmd.Flags().StringVarP(&state, "state", "s", "", "only print rows leaving this state")
	return cmd
}

func printTable(out io.Writer, table *statemachine.Table, filter statemachine.State) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FROM\tINPUT\tACTION\tTO")
	for _, t := range table.Rows() {
		if filter != "" && t.From != filter {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.From, t.Input, t.Action, t.To)
	}
	return w.Flush()
}
