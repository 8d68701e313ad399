package main

import (
	"fmt"

	"github.com/copyleftdev/scryshot/internal/browser"
	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/observability"
	"github.com/copyleftdev/scryshot/internal/readiness"
	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	cfgFile       string
	scenariosFile string
	baseURL       string
	outDir        string
	headed        bool
}

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	fs     afero.Fs
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{fs: afero.NewOsFs()}

	rootCmd := &cobra.Command{
		Use:           "scryshot",
		Short:         "Visual verification harness for browser-rendered applications",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.apply(cfg)
			a.cfg = cfg
			a.logger = observability.InitializeLogger(cfg.Log)
			a.logger.Debug("Configuration loaded",
				zap.String("base_url", cfg.Target.BaseURL),
				zap.String("output_dir", cfg.Output.Dir),
				zap.Bool("headless", cfg.Browser.Headless))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./scryshot.yaml)")
	flags.StringVar(&opts.scenariosFile, "scenarios", "", "YAML file with additional scenarios")
	flags.StringVar(&opts.baseURL, "base-url", "", "address of the application under test")
	flags.StringVarP(&opts.outDir, "out", "o", "", "directory screenshots are written to")
	flags.BoolVar(&opts.headed, "headed", false, "show the browser window")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newServeCmd(a),
		newDoctorCmd(a),
	)
	return rootCmd
}

// apply lets command-line flags override file and environment settings.
func (o *rootOptions) apply(cfg *config.Config) {
	if o.scenariosFile != "" {
		cfg.Scenarios.File = o.scenariosFile
	}
	if o.baseURL != "" {
		cfg.Target.BaseURL = o.baseURL
	}
	if o.outDir != "" {
		cfg.Output.Dir = o.outDir
	}
	if o.headed {
		cfg.Browser.Headless = false
	}
}

func (a *app) catalog() (*scenario.Catalog, error) {
	return scenario.LoadCatalog(a.fs, a.cfg.Scenarios.File)
}

// harness wires the browser session manager to a scenario runner.
func (a *app) harness() (*browser.Manager, *scenario.Runner) {
	sessions := browser.NewManager(a.cfg, a.fs, a.logger)
	detector := readiness.NewDetector(a.cfg.Readiness, a.logger)
	return sessions, scenario.NewRunner(sessions, detector, scenario.OptionsFromConfig(a.cfg), a.logger)
}
