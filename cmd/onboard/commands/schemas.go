package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/schema"
)

func schemasCmd(opts *options) *cobra.Command {
	var setDefault string
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List registration forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			reg := schema.NewRegistry()
			schema.RegisterBuiltins(reg)
			if err := schema.RegisterDir(reg, cfg.SchemasDir()); err != nil {
				return err
			}
			if setDefault != "" {
				s, err := reg.Resolve(setDefault)
				if err != nil {
					return err
				}
				if err := cfg.SetDefaultSchema(s.ID); err != nil {
					return err
				}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTEPS\tFIELDS\tDEFAULT")
			for _, id := range reg.IDs() {
				s, err := reg.Resolve(id)
				if err != nil {
					return err
				}
				mark := ""
				if s.ID == cfg.DefaultSchema() {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.DisplayName(), s.StepCount(), len(s.Fields()), mark)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&setDefault, "set-default", "", "persist the form opened by onboard register")
	return cmd
}
