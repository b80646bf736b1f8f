package planner

import (
	stderrors "errors"

	"relocate/internal/core/errors"
	"relocate/internal/core/ports"

	"github.com/dominikbraun/graph"
)

const tempSuffix = ".relocate-tmp"

// orderMoves sorts file moves so that no move lands on a file another move
// has yet to vacate. Moves that form a cycle go through a temporary name.
func orderMoves(moves []ports.FileMove) ([]ports.FileMove, error) {
	if len(moves) < 2 {
		return moves, nil
	}
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	byFrom := make(map[string]ports.FileMove, len(moves))
	for _, m := range moves {
		byFrom[m.From] = m
		if err := g.AddVertex(m.From); err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInvariant, "duplicate file move"), errors.CtxPath, m.From)
		}
	}

	var deferred []ports.FileMove
	for _, m := range moves {
		occupant, ok := byFrom[m.To]
		if !ok || occupant.From == m.From {
			continue
		}
		err := g.AddEdge(occupant.From, m.From)
		switch {
		case err == nil, stderrors.Is(err, graph.ErrEdgeAlreadyExists):
		case stderrors.Is(err, graph.ErrEdgeCreatesCycle):
			tmp := m.From + tempSuffix
			byFrom[m.From] = ports.FileMove{From: m.From, To: tmp}
			deferred = append(deferred, ports.FileMove{From: tmp, To: m.To})
		default:
			return nil, errors.Wrap(err, errors.CodeInternal, "ordering file moves")
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "ordering file moves")
	}
	out := make([]ports.FileMove, 0, len(moves)+len(deferred))
	for _, from := range order {
		out = append(out, byFrom[from])
	}
	return append(out, deferred...), nil
}
