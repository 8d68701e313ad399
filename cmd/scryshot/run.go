package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run verification scenarios and capture screenshots",
		Long: `Runs each named scenario in its own browser session, one after another,
and prints a report per scenario. The exit code is 0 when every scenario
succeeded, 1 when any was partially failed and 2 when any failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			selected, err := selectScenarios(catalog, args, all)
			if err != nil {
				return err
			}

			sessions, runner := a.harness()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := sessions.Shutdown(ctx); err != nil {
					a.logger.Warn("Browser shutdown incomplete", zap.Error(err))
				}
			}()

			out := cmd.OutOrStdout()
			results := make([]*scenariotypes.Result, 0, len(selected))
			for _, sc := range selected {
				res := runner.Run(cmd.Context(), sc)
				scenario.PrintReport(out, res)
				results = append(results, res)
			}

			overall := scenario.PrintSummary(out, results)
			if code := overall.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every known scenario")
	return cmd
}

func selectScenarios(catalog *scenario.Catalog, names []string, all bool) ([]scenariotypes.Scenario, error) {
	if all {
		if len(names) > 0 {
			return nil, errors.New("--all cannot be combined with scenario names")
		}
		return catalog.List(), nil
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("name at least one scenario or pass --all (known: %v)", catalog.Names())
	}

	out := make([]scenariotypes.Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (known: %v)", name, catalog.Names())
		}
		out = append(out, sc)
	}
	return out, nil
}
