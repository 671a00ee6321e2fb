package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cat.All()))
			for _, t := range cat.All() {
				rows = append(rows, []string{t.Name, strconv.Itoa(t.Width), strconv.Itoa(t.Height)})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Template", "Width", "Height"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
