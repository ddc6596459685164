// File: cmd/simulate.go
package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/contextgraph"
	"github.com/xkilldash9x/wayfinder/internal/exposure"
	"github.com/xkilldash9x/wayfinder/internal/journal"
	"github.com/xkilldash9x/wayfinder/internal/loader"
	"github.com/xkilldash9x/wayfinder/internal/navigator"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/pathfinder"
)

var simulateScenarioFile string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a navigation attempt against a scripted scenario.",
	Long: `Loads a scenario file (a context graph plus a timeline of exposure
observations) and runs the navigator against it with a scripted invoker.
Every edge invocation moves the scripted UI along that edge. This exercises
the full readiness-and-navigation sequence without a browser.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateScenarioFile, "scenario", "", "scenario file (required)")
	_ = simulateCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(simulateCmd)
}

// scriptedInvoker drives the scripted UI: invoking a navigation control
// follows the matching edge out of the current context.
type scriptedInvoker struct {
	graph  *contextgraph.Graph
	logger *zap.Logger
}

func (s *scriptedInvoker) Invoke(ctx context.Context, toolID string) error {
	current := s.graph.CurrentContext()
	for _, e := range s.graph.Edges() {
		if e.From == current && e.NavigationToolID == toolID {
			s.logger.Info("Invoking navigation control",
				zap.String("tool", toolID), zap.String("to", e.To))
			s.graph.SetCurrentContext(e.To)
			return nil
		}
	}
	return fmt.Errorf("no edge out of %q is triggered by %q", current, toolID)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	scenario, err := loader.LoadScenario(simulateScenarioFile)
	if err != nil {
		return err
	}

	graph := contextgraph.New(logger)
	scenario.Graph.Apply(graph)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	var jnl schemas.Journal
	if cfg.Journal.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Journal.URL)
		if err != nil {
			return fmt.Errorf("failed to connect journal database: %w", err)
		}
		defer pool.Close()

		j, err := journal.New(ctx, pool, logger)
		if err != nil {
			return err
		}
		if err := j.EnsureSchema(ctx); err != nil {
			return err
		}
		jnl = j
	}

	registry := exposure.NewRegistry(logger, jnl)
	defer registry.Close()

	finder := pathfinder.New(logger, cfg.Navigation.StepEstimate)
	invoker := &scriptedInvoker{graph: graph, logger: logger.Named("scripted_ui")}

	nav, err := navigator.New(cfg.Navigation, logger, graph, finder, registry, invoker, jnl)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Feed the scripted observations in timeline order.
	group.Go(func() error {
		steps := append([]loader.ObservationStep(nil), scenario.Timeline...)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].AtMs < steps[j].AtMs })

		monitors := make(map[string]*exposure.Monitor)
		start := time.Now()
		for _, step := range steps {
			due := time.Duration(step.AtMs) * time.Millisecond
			if wait := due - time.Since(start); wait > 0 {
				select {
				case <-time.After(wait):
				case <-groupCtx.Done():
					return nil
				}
			}
			m, ok := monitors[step.ToolID]
			if !ok {
				m = exposure.NewMonitor(logger, step.ToolID, nil, registry, cfg.Exposure.ObstructionThreshold)
				monitors[step.ToolID] = m
			}
			m.Apply(step.Observation.ToObservation())
		}
		return nil
	})

	var navErr error
	group.Go(func() error {
		navErr = nav.EnsureReady(groupCtx, scenario.Target)
		cancel()
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if navErr != nil {
		fmt.Fprintf(out, "FAILED: %v\n", navErr)
	} else {
		fmt.Fprintf(out, "READY: %s is interactable in context %s\n", scenario.Target, graph.CurrentContext())
	}

	fmt.Fprintln(out, "final exposure states:")
	snapshot := registry.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ToolID < snapshot[j].ToolID })
	for _, event := range snapshot {
		fmt.Fprintf(out, "  %-24s %s (%s)\n", event.ToolID, event.State, event.Metadata.Reason)
	}

	if navErr != nil {
		return fmt.Errorf("simulation failed")
	}
	return nil
}
