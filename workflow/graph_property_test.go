package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomDAG builds a workflow whose edges only point from lower to higher
// node indices, which is acyclic by construction.
func randomDAG(nodeCount int, edgePairs [][2]int) *Workflow {
	nodes := make([]Node, nodeCount)
	for i := range nodes {
		nodes[i] = Node{
			ID:        fmt.Sprintf("n%d", i),
			Type:      NodeProcessing,
			Processor: &stubProcessor{result: i},
		}
	}
	var edges []Edge
	for _, pair := range edgePairs {
		from, to := pair[0], pair[1]
		if from >= to || to >= nodeCount {
			continue
		}
		edges = append(edges, Edge{
			From: fmt.Sprintf("n%d", from),
			To:   fmt.Sprintf("n%d", to),
		})
	}
	return graphWorkflow(nodes, edges)
}

func TestProperty_TopologicalOrderRespectsEdges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every edge points from an earlier to a later path position", prop.ForAll(
		func(nodeCount int, rawEdges [][2]int) bool {
			wf := randomDAG(nodeCount, rawEdges)
			engine, _ := newGraphFixture(t)

			out, err := engine.Execute(context.Background(), wf, "exec-prop", nil, nil)
			if err != nil {
				return false
			}
			if len(out.Path) != nodeCount {
				return false
			}

			position := make(map[string]int, len(out.Path))
			for i, id := range out.Path {
				position[id] = i
			}
			for _, edge := range wf.Edges {
				if position[edge.From] >= position[edge.To] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.SliceOfN(2, gen.IntRange(0, 7)).Map(func(s []int) [2]int {
			return [2]int{s[0], s[1]}
		})),
	))

	properties.TestingRun(t)
}

func TestProperty_CyclesAlwaysRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("a ring of any size plus an entry node fails as invalid", prop.ForAll(
		func(ringSize int) bool {
			// entry feeds the ring so entry detection passes; the ring
			// itself can never be fully ordered.
			nodes := []Node{{ID: "entry", Type: NodeInput, Processor: &stubProcessor{}}}
			var edges []Edge
			for i := 0; i < ringSize; i++ {
				nodes = append(nodes, Node{
					ID:        fmt.Sprintf("r%d", i),
					Type:      NodeProcessing,
					Processor: &stubProcessor{},
				})
				edges = append(edges, Edge{
					From: fmt.Sprintf("r%d", i),
					To:   fmt.Sprintf("r%d", (i+1)%ringSize),
				})
			}
			edges = append(edges, Edge{From: "entry", To: "r0"})

			engine, _ := newGraphFixture(t)
			_, err := engine.Execute(context.Background(), graphWorkflow(nodes, edges), "exec-prop", nil, nil)
			return err != nil
		},
		gen.IntRange(2, 6),
	))

	properties.TestingRun(t)
}
