package trainer

import (
	"sort"

	drain3 "github.com/jaeyo/go-drain3"
)

// templateCluster is one log/text template shape mined from the corpus,
// reported purely for debugging (spec.md §6's debug file is silent on this
// and it never influences training state).
type templateCluster struct {
	template string
	size     int
}

// templateMiner wraps go-drain3's online template-mining tree. It is only
// constructed when a debug sink is configured, since mining every sample
// has a real per-sample cost.
type templateMiner struct {
	tree *drain3.DrainTree
}

func newTemplateMiner() *templateMiner {
	return &templateMiner{tree: drain3.NewDrainTree()}
}

// add feeds one sample's text into the miner. Mining errors are swallowed:
// the template section of the debug file is an enrichment, never a reason
// to fail training.
func (m *templateMiner) add(text string) {
	if m == nil || m.tree == nil {
		return
	}
	_, _ = m.tree.Add(text)
}

// topClusters returns up to n clusters, largest first.
func (m *templateMiner) topClusters(n int) []templateCluster {
	if m == nil || m.tree == nil {
		return nil
	}
	clusters := m.tree.Clusters()
	out := make([]templateCluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, templateCluster{template: c.Template(), size: c.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].size > out[j].size })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
