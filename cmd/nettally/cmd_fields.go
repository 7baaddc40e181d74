package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nettally/nettally/pkg/cli"
	"github.com/nettally/nettally/pkg/fields"
)

func newValidateFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-fields",
		Short: "Validate the field registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := fields.Default()
			if err := reg.Validate(); err != nil {
				return err
			}

			var kinds []string
			for kind := range reg {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)

			tb := cli.NewTable("Kind", "Field", "Display", "Sync", "Compare")
			for _, kind := range kinds {
				for _, field := range reg.Columns(kind) {
					spec := reg[kind][field]
					tb.Row(kind, field, spec.DisplayName,
						fmt.Sprint(spec.Sync.Syncable), fmt.Sprint(spec.Sync.Compare))
				}
			}
			tb.Flush()
			fmt.Println(cli.Green("ok"), "field registry is valid")
			return nil
		},
	}
}
