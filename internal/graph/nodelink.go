package graph

import (
	"encoding/json"
	"fmt"
)

// nodeLink is the node-link serialisation of a graph, compatible with
// networkx.node_link_data
type nodeLink struct {
	Directed   bool                   `json:"directed"`
	Multigraph bool                   `json:"multigraph"`
	Graph      map[string]interface{} `json:"graph"`
	Nodes      []nodeLinkNode         `json:"nodes"`
	Links      []nodeLinkLink         `json:"links"`
}

type nodeLinkNode struct {
	ID string `json:"id"`
}

type nodeLinkLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`

	// nil for edges without assets, an empty list is kept as []
	RequiredAssets *[]string `json:"required_assets,omitempty"`
}

// MarshalJSON encodes the graph in node-link form
func (g *LogicalGraph) MarshalJSON() ([]byte, error) {
	nl := nodeLink{
		Graph: map[string]interface{}{},
		Nodes: []nodeLinkNode{},
		Links: []nodeLinkLink{},
	}
	for _, n := range g.Nodes() {
		nl.Nodes = append(nl.Nodes, nodeLinkNode{ID: n})
	}
	for _, e := range g.Edges() {
		link := nodeLinkLink{Source: e.A, Target: e.B, Weight: e.Weight}
		if e.RequiredAssets != nil {
			assets := e.RequiredAssets
			link.RequiredAssets = &assets
		}
		nl.Links = append(nl.Links, link)
	}
	return json.Marshal(nl)
}

// UnmarshalJSON decodes a graph in node-link form
func (g *LogicalGraph) UnmarshalJSON(data []byte) error {
	var nl nodeLink
	if err := json.Unmarshal(data, &nl); err != nil {
		return err
	}
	if nl.Directed {
		return fmt.Errorf("directed graphs are not supported")
	}

	*g = *New()
	for _, n := range nl.Nodes {
		g.AddNode(n.ID)
	}
	for _, l := range nl.Links {
		var assets []string
		if l.RequiredAssets != nil {
			assets = *l.RequiredAssets
			if assets == nil {
				assets = []string{}
			}
		}
		if err := g.AddEdge(l.Source, l.Target, l.Weight, assets); err != nil {
			return fmt.Errorf("invalid link: %w", err)
		}
	}
	return nil
}
