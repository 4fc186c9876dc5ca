package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/appforge/internal/specialist"
)

//go:embed graph.yaml
var defaultGraphYAML []byte

// Input selectors.
const (
	SelectResult    = "result"
	SelectEndpoints = "endpoints"
	SelectFeatures  = "features"
)

// Input binds an upstream artifact to a task context key.
type Input struct {
	From   string `yaml:"from"`
	As     string `yaml:"as"`
	Select string `yaml:"select"`
}

// Node is one stage of the graph.
type Node struct {
	Stage       string          `yaml:"stage"`
	Specialist  specialist.Kind `yaml:"specialist"`
	PerPlatform bool            `yaml:"per_platform"`
	Inputs      []Input         `yaml:"inputs"`
}

// Graph is the ordered stage list.
type Graph struct {
	Nodes []Node `yaml:"nodes"`
}

// DefaultGraph returns the embedded stage graph validated against reg.
func DefaultGraph(reg *specialist.Registry, maxNodes int) (*Graph, error) {
	return ParseGraph(defaultGraphYAML, reg, maxNodes)
}

// LoadGraphFile reads a stage graph from path.
func LoadGraphFile(path string, reg *specialist.Registry, maxNodes int) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", path, err)
	}
	g, err := ParseGraph(raw, reg, maxNodes)
	if err != nil {
		return nil, fmt.Errorf("graph: %s: %w", path, err)
	}
	return g, nil
}

// ParseGraph decodes and validates a YAML stage graph. A maxNodes of zero
// or less disables the size check.
func ParseGraph(raw []byte, reg *specialist.Registry, maxNodes int) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("graph: parse: %w", err)
	}
	for i := range g.Nodes {
		for j := range g.Nodes[i].Inputs {
			if g.Nodes[i].Inputs[j].Select == "" {
				g.Nodes[i].Inputs[j].Select = SelectResult
			}
		}
	}
	if err := g.validate(reg, maxNodes); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Graph) validate(reg *specialist.Registry, maxNodes int) error {
	if len(g.Nodes) == 0 {
		return errors.New("graph has no nodes")
	}
	if maxNodes > 0 && len(g.Nodes) > maxNodes {
		return fmt.Errorf("graph has %d nodes, limit is %d", len(g.Nodes), maxNodes)
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Stage == "" {
			return errors.New("node without stage name")
		}
		if seen[n.Stage] {
			return fmt.Errorf("duplicate stage %q", n.Stage)
		}
		if _, ok := reg.Get(n.Specialist); !ok {
			return fmt.Errorf("stage %q: unknown specialist %q", n.Stage, n.Specialist)
		}

		keys := make(map[string]bool, len(n.Inputs))
		for _, in := range n.Inputs {
			if in.As == "" {
				return fmt.Errorf("stage %q: input without a context key", n.Stage)
			}
			if keys[in.As] {
				return fmt.Errorf("stage %q: context key %q bound twice", n.Stage, in.As)
			}
			keys[in.As] = true

			switch in.Select {
			case SelectFeatures:
				continue
			case SelectResult, SelectEndpoints:
			default:
				return fmt.Errorf("stage %q: unknown select %q", n.Stage, in.Select)
			}
			if !seen[in.From] {
				return fmt.Errorf("stage %q: input %q must name an earlier stage", n.Stage, in.From)
			}
		}
		seen[n.Stage] = true
	}
	return nil
}

// Node returns the node for stage.
func (g *Graph) Node(stage string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Stage == stage {
			return n, true
		}
	}
	return Node{}, false
}

// Executions returns the number of specialist calls the graph makes for
// the given platform count.
func (g *Graph) Executions(platforms int) int {
	if platforms < 1 {
		platforms = 1
	}
	n := 0
	for _, node := range g.Nodes {
		if node.PerPlatform {
			n += platforms
		} else {
			n++
		}
	}
	return n
}
