package deps

import (
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// DepGraph is the directed dependency graph of a resolution.
type DepGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []Link      `json:"links"`
}

// GraphNode is a crate in the graph. Attr is the edge that first reached it,
// nil for the root.
type GraphNode struct {
	ID   string             `json:"id"`
	Attr *crates.Dependency `json:"attr"`
}

// Link is a dependency from Source to Target. Distance is the number of hops
// from the root to Target.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Distance int    `json:"distance"`
}

// DepGraph builds the graph view of the tree rooted at rootID.
//
// Links are discovered breadth first over each crate's declared dependencies
// in manifest order. A link is added only for a target present in the tree
// that has not been reached before, so every crate has exactly one incoming
// link and its distance is the shortest hop count from the root. With more
// than one node, nodes that appear in no link are dropped.
func (t *Tree) DepGraph(rootID string) *DepGraph {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := &DepGraph{
		Nodes: make([]GraphNode, 0, len(t.linkOrder)),
		Links: []Link{},
	}
	for _, id := range t.linkOrder {
		n := GraphNode{ID: id}
		if d, ok := t.deps[id]; ok && id != rootID {
			n.Attr = &d
		}
		g.Nodes = append(g.Nodes, n)
	}

	if _, ok := t.links[rootID]; ok {
		g.Links = t.walkLinks(rootID)
	}

	if len(g.Nodes) > 1 {
		linked := make(map[string]bool, 2*len(g.Links))
		for _, l := range g.Links {
			linked[l.Source] = true
			linked[l.Target] = true
		}
		kept := g.Nodes[:0]
		for _, n := range g.Nodes {
			if linked[n.ID] {
				kept = append(kept, n)
			}
		}
		g.Nodes = kept
	}
	return g
}

// walkLinks runs the breadth-first link discovery. Caller holds t.mu.
func (t *Tree) walkLinks(rootID string) []Link {
	links := []Link{}
	distance := map[string]int{rootID: 0}

	queue := []string{rootID}
	for len(queue) > 0 {
		source := queue[0]
		queue = queue[1:]

		resp := t.links[source]
		if resp == nil {
			continue
		}
		for _, d := range resp.Dependencies {
			target := d.CrateID
			if _, ok := t.links[target]; !ok {
				continue
			}
			if _, reached := distance[target]; reached {
				continue
			}
			distance[target] = distance[source] + 1
			links = append(links, Link{Source: source, Target: target, Distance: distance[target]})
			queue = append(queue, target)
		}
	}
	return links
}

// NodeIDs returns the ids of the graph's nodes in order.
func (g *DepGraph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
