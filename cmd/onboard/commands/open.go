package commands

import (
	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/tui"
)

func openCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path-or-link>",
		Short: "Open the screen addressed by a path such as /approval/<token>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := routes.Resolve(args[0])
			if err != nil {
				return err
			}
			return runTUI(opts, tui.WithStartTarget(target))
		},
	}
}
