package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/workflow"
)

func newStagesCmd() *cobra.Command {
	var graphFile string
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the stage graph in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := specialist.DefaultRegistry()
			g, err := loadGraph(graphFile, reg, 0)
			if err != nil {
				return err
			}
			printStages(cmd.OutOrStdout(), g, reg)
			return nil
		},
	}
	cmd.Flags().StringVar(&graphFile, "graph", "", "stage graph YAML file (default: embedded graph)")
	return cmd
}

func loadGraph(path string, reg *specialist.Registry, maxNodes int) (*workflow.Graph, error) {
	if path == "" {
		return workflow.DefaultGraph(reg, maxNodes)
	}
	return workflow.LoadGraphFile(path, reg, maxNodes)
}

func printStages(w io.Writer, g *workflow.Graph, reg *specialist.Registry) {
	for i, n := range g.Nodes {
		name := string(n.Specialist)
		if def, ok := reg.Get(n.Specialist); ok {
			name = def.DisplayName
		}
		line := fmt.Sprintf("%2d. %-18s %s", i+1, n.Stage, name)
		if n.PerPlatform {
			line += " (per platform)"
		}
		fmt.Fprintln(w, line)

		if len(n.Inputs) == 0 {
			continue
		}
		ins := make([]string, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			sel := in.Select
			if sel == "" {
				sel = workflow.SelectResult
			}
			ins = append(ins, fmt.Sprintf("%s=%s.%s", in.As, in.From, sel))
		}
		fmt.Fprintf(w, "    inputs: %s\n", strings.Join(ins, ", "))
	}
}
