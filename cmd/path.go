// File: cmd/path.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/internal/contextgraph"
	"github.com/xkilldash9x/wayfinder/internal/loader"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/pathfinder"
)

var (
	pathGraphFile string
	pathFrom      string
	pathTo        string
	pathTool      string
	pathAvoid     []string
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Compute the lowest-cost navigation path through a context graph.",
	Long: `Loads a context graph definition and computes the cheapest sequence of
navigation steps between two contexts, or from the current context to the
context a given tool lives in.`,
	RunE: runPath,
}

func init() {
	pathCmd.Flags().StringVar(&pathGraphFile, "graph", "", "graph definition file (required)")
	pathCmd.Flags().StringVar(&pathFrom, "from", "", "source context (defaults to the definition's current context)")
	pathCmd.Flags().StringVar(&pathTo, "to", "", "target context")
	pathCmd.Flags().StringVar(&pathTool, "tool", "", "target tool; its context becomes the destination")
	pathCmd.Flags().StringSliceVar(&pathAvoid, "avoid", nil, "context ids to route around")
	_ = pathCmd.MarkFlagRequired("graph")
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	def, err := loader.LoadGraph(pathGraphFile)
	if err != nil {
		return err
	}

	graph := contextgraph.New(logger)
	def.Apply(graph)

	from := pathFrom
	if from == "" {
		from = graph.CurrentContext()
	}

	to := pathTo
	if to == "" {
		if pathTool == "" {
			return fmt.Errorf("either --to or --tool is required")
		}
		contextID, ok := graph.ToolContext(pathTool)
		if !ok {
			return fmt.Errorf("tool %q is not registered in any context", pathTool)
		}
		to = contextID
	}

	finder := pathfinder.New(logger, cfg.Navigation.StepEstimate)
	path := finder.ComputePath(graph, from, to, pathfinder.Options{
		MaxDepth:      cfg.Navigation.MaxDepth,
		AvoidContexts: pathAvoid,
	})
	if path == nil {
		logger.Warn("No path exists", zap.String("from", from), zap.String("to", to))
		return fmt.Errorf("no path from %q to %q", from, to)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s (cost %.1f, ~%s)\n", path.From, path.To, path.TotalCost, path.EstimatedDuration)
	for i, step := range path.Steps {
		fmt.Fprintf(out, "  %d. %s -> %s via %s (cost %.1f)\n", i+1, step.From, step.To, step.NavigationToolID, step.Cost)
	}
	if len(path.Steps) == 0 {
		fmt.Fprintln(out, "  already there")
	}
	return nil
}
