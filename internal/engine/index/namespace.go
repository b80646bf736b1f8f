package index

import (
	"sort"

	"relocate/internal/shared/util"
)

// SharedNamespace maps each package root to the submodule tails imported
// anywhere in the project. Importing a.b.c in any file makes a.b and a.b.c
// attributes of the process-wide `a` object, so any file holding `a` can
// reach them. Built once after indexing and read-only afterwards.
type SharedNamespace struct {
	tails map[string]map[string]bool
}

func NewSharedNamespace() *SharedNamespace {
	return &SharedNamespace{tails: make(map[string]map[string]bool)}
}

// Add records module and all its parents as loaded.
func (n *SharedNamespace) Add(module string) {
	if module == "" {
		return
	}
	root := util.DottedRoot(module)
	set := n.tails[root]
	if set == nil {
		set = make(map[string]bool)
		n.tails[root] = set
	}
	for _, prefix := range util.DottedPrefixes(module) {
		if prefix == root {
			continue
		}
		set[prefix[len(root)+1:]] = true
	}
}

// Loaded reports whether some file imports module or one of its children.
// A bare root counts as loaded once anything under it is imported.
func (n *SharedNamespace) Loaded(module string) bool {
	root := util.DottedRoot(module)
	set, ok := n.tails[root]
	if !ok {
		return false
	}
	if module == root {
		return true
	}
	return set[module[len(root)+1:]]
}

// Tails lists the imported tails under root, sorted.
func (n *SharedNamespace) Tails(root string) []string {
	out := make([]string, 0, len(n.tails[root]))
	for tail := range n.tails[root] {
		out = append(out, tail)
	}
	sort.Strings(out)
	return out
}
