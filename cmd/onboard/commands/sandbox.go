package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/sandbox"
	"github.com/kingrea/onboard/internal/schema"
)

func sandboxCmd(opts *options) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run the local registration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			settings := sandbox.SettingsFromConfig(cfg)
			if port > 0 {
				settings.Port = port
			}
			if !settings.Enabled {
				return errors.New("sandbox is disabled (sandbox.enabled or " + sandbox.EnvEnabled + ")")
			}
			lb := openLogbook(cfg, cmd.ErrOrStderr())

			reg := schema.NewRegistry()
			schema.RegisterBuiltins(reg)
			if err := schema.RegisterDir(reg, cfg.SchemasDir()); err != nil {
				return err
			}
			var forms []schema.Schema
			for _, id := range reg.IDs() {
				s, err := reg.Resolve(id)
				if err != nil {
					return err
				}
				forms = append(forms, s)
			}

			out := cmd.OutOrStdout()
			srv := sandbox.NewServer(settings,
				sandbox.WithLogger(lb.Scoped("sandbox")),
				sandbox.WithSchemas(forms...),
				sandbox.WithApprovalHook(func(r sandbox.Registration, _ string, link string) {
					fmt.Fprintf(out, "registration %s (%s) pending · onboard open %s\n", r.ID, r.SchemaID, link)
				}),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "sandbox listening on %s (ctrl+c to stop)\n", srv.BaseURL())
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("sandbox shutdown: %w", err)
			}
			fmt.Fprintln(out, "sandbox stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config and "+sandbox.EnvPort+")")
	return cmd
}
