package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/onboard/internal/config"
	"github.com/kingrea/onboard/internal/logbook"
	"github.com/kingrea/onboard/internal/tui"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	dir    string
	apiURL string
}

// Execute runs the root command against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "onboard",
		Short:        "Business registration and approval client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				opts.dir = cwd
			}
			abs, err := filepath.Abs(opts.dir)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", opts.dir, err)
			}
			opts.dir = abs
			if err := config.InitOnboardDir(opts.dir); err != nil {
				return fmt.Errorf("initialize %s directory: %w", config.OnboardDir, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "working directory holding .onboard/ (default current directory)")
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "registration API base URL (overrides config and "+config.EnvAPIURL+")")

	root.AddCommand(
		registerCmd(opts),
		approveCmd(opts),
		openCmd(opts),
		sandboxCmd(opts),
		schemasCmd(opts),
	)
	return root
}

// loadConfig reads .onboard/config.yaml and applies the --api override.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.NewConfig(opts.dir)
	if err != nil {
		return nil, err
	}
	if opts.apiURL != "" {
		if err := cfg.SetAPIBaseURL(opts.apiURL); err != nil {
			return nil, fmt.Errorf("--api: %w", err)
		}
	}
	return cfg, nil
}

// openLogbook opens the activity log. A log that cannot be opened is reported
// on w and the command continues without one.
func openLogbook(cfg *config.Config, w io.Writer) *logbook.Logbook {
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		fmt.Fprintf(w, "warning: activity log disabled: %v\n", err)
		return nil
	}
	return lb
}

// runTUI starts the terminal application in the alternate screen.
func runTUI(opts *options, appOpts ...tui.AppOption) error {
	if opts.apiURL != "" {
		appOpts = append(appOpts, tui.WithAPIBaseURL(opts.apiURL))
	}
	app, err := tui.NewApp(opts.dir, appOpts...)
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
