package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/approval"
	"github.com/kingrea/onboard/internal/notify"
	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/tui"
)

func approveCmd(opts *options) *cobra.Command {
	var (
		approve bool
		reject  string
	)
	cmd := &cobra.Command{
		Use:   "approve <token-or-link>",
		Short: "Review a pending registration",
		Long: "Review a pending registration.\n\n" +
			"Without flags the approval screen opens in the TUI. With --yes or --reject\n" +
			"the decision is sent directly and the server's message is printed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := tokenArg(args[0])
			if token == "" {
				return errors.New(approval.MsgInvalidToken)
			}
			if approve && cmd.Flags().Changed("reject") {
				return errors.New("--yes and --reject are mutually exclusive")
			}
			if !approve && !cmd.Flags().Changed("reject") {
				return runTUI(opts, tui.WithStartTarget(routes.Target{Screen: routes.ScreenApproval, Token: token}))
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			lb := openLogbook(cfg, cmd.ErrOrStderr())
			client := api.NewClient(cfg.APIBaseURL(), api.WithTimeout(cfg.APITimeout()), api.WithLogger(lb.Scoped("api")))
			gate := approval.New(token, approval.WithLogger(lb.Scoped("approval")))
			out := cmd.OutOrStdout()
			if n := gate.LoadClaim(); n != nil {
				fmt.Fprintf(out, "warning: %s\n", n.Message)
			} else {
				claim := gate.Claim()
				fmt.Fprintf(out, "Name:     %s\nEmail:    %s\nBusiness: %s\n", claim.Name, claim.Email, claim.BusinessName)
			}

			var notice notify.Notice
			if approve {
				notice = gate.Approve(cmd.Context(), client)
			} else {
				gate.RequestReject()
				notice = gate.Reject(cmd.Context(), client, reject)
			}
			if notice.Kind == notify.KindError {
				return errors.New(notice.Message)
			}
			fmt.Fprintln(out, notice.Message)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&approve, "yes", "y", false, "approve without opening the TUI")
	cmd.Flags().StringVar(&reject, "reject", "", "reject with this reason without opening the TUI")
	return cmd
}

// tokenArg accepts a bare token or an approval link.
func tokenArg(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/") {
		return raw
	}
	target, err := routes.Resolve(raw)
	if err != nil || target.Screen != routes.ScreenApproval {
		return ""
	}
	return target.Token
}
