package commands

import (
	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/tui"
)

func registerCmd(opts *options) *cobra.Command {
	var schemaID string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Open the registration wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts,
				tui.WithSchema(schemaID),
				tui.WithStartTarget(routes.Target{Screen: routes.ScreenRegister}),
			)
		},
	}
	cmd.Flags().StringVar(&schemaID, "schema", "", "form to open (default wizard.default_schema)")
	return cmd
}
