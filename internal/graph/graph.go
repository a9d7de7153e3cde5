// Package graph renders the resource dependency graph of a template
// builder in DOT or Mermaid format.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	"github.com/lex00/wetwire-site-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// LocalNode is a step that happens outside CloudFormation but belongs in
// the picture, such as generating the bucket suffix or uploading objects.
type LocalNode struct {
	Name  string
	Label string
	// DependsOn lists resources the step needs.
	DependsOn []string
	// RequiredBy lists resources that need the step.
	RequiredBy []string
}

// Generator creates dependency graphs.
type Generator struct {
	// IncludeParameters adds template parameters and the edges to them.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool

	// Local nodes are drawn dashed next to the resources.
	Local []LocalNode
}

// Generate writes the graph of b to w.
func (g *Generator) Generate(b *template.Builder, w io.Writer) error {
	graph, err := g.buildGraph(b)
	if err != nil {
		return err
	}

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err = io.WriteString(w, output)
	return err
}

// GenerateString returns the graph as a string.
func (g *Generator) GenerateString(b *template.Builder) (string, error) {
	var sb strings.Builder
	if err := g.Generate(b, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(b *template.Builder) (*dot.Graph, error) {
	order, err := b.Order()
	if err != nil {
		return nil, err
	}
	edges, err := b.Edges()
	if err != nil {
		return nil, err
	}

	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")
	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	nodes := make(map[string]dot.Node)
	resources := b.Resources()
	clusters := make(map[string]*dot.Graph)
	if g.ClusterByType {
		count := make(map[string]int)
		for _, name := range order {
			count[service(resources[name].Value.ResourceType())]++
		}
		services := make([]string, 0, len(count))
		for svc := range count {
			services = append(services, svc)
		}
		sort.Strings(services)
		for _, svc := range services {
			if count[svc] > 1 {
				c := graph.Subgraph("cluster_"+svc, dot.ClusterOption{})
				c.Attr("label", svc)
				c.Attr("style", "rounded")
				c.Attr("bgcolor", "lightyellow")
				clusters[svc] = c
			}
		}
	}
	for _, name := range order {
		cfType := resources[name].Value.ResourceType()
		parent := graph
		if c, ok := clusters[service(cfType)]; ok {
			parent = c
		}
		n := parent.Node(name)
		n.Label(name + "\\n[" + cfType + "]")
		nodes[name] = n
	}

	if g.IncludeParameters {
		for _, p := range b.Parameters() {
			n := graph.Node(p)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(p)
			nodes[p] = n
		}
	}

	for _, l := range g.Local {
		n := graph.Node(l.Name)
		n.Attr("shape", "note")
		n.Attr("style", "dashed")
		label := l.Label
		if label == "" {
			label = l.Name
		}
		n.Label(label)
		nodes[l.Name] = n
	}

	// One edge per pair, styled by the strongest reference kind.
	kinds := make(map[[2]string]map[template.EdgeKind]bool)
	var pairs [][2]string
	for _, e := range edges {
		pair := [2]string{e.From, e.To}
		if kinds[pair] == nil {
			kinds[pair] = make(map[template.EdgeKind]bool)
			pairs = append(pairs, pair)
		}
		kinds[pair][e.Kind] = true
	}
	for _, pair := range pairs {
		e := graph.Edge(nodes[pair[0]], nodes[pair[1]])
		k := kinds[pair]
		switch {
		case k[template.EdgeGetAtt]:
			e.Attr("color", "blue")
		case k[template.EdgeDependsOn] && !k[template.EdgeRef]:
			e.Attr("style", "dashed")
		}
	}

	if g.IncludeParameters {
		paramEdges, err := b.ParameterEdges()
		if err != nil {
			return nil, err
		}
		for _, e := range paramEdges {
			edge := graph.Edge(nodes[e.From], nodes[e.To])
			edge.Attr("color", "gray")
		}
	}

	for _, l := range g.Local {
		for _, dep := range l.DependsOn {
			if to, ok := nodes[dep]; ok {
				graph.Edge(nodes[l.Name], to).Attr("style", "dashed")
			}
		}
		for _, dep := range l.RequiredBy {
			if from, ok := nodes[dep]; ok {
				graph.Edge(from, nodes[l.Name]).Attr("style", "dashed")
			}
		}
	}

	return graph, nil
}

// service extracts the service from a CloudFormation type.
// e.g., "AWS::S3::Bucket" -> "S3"
func service(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}
