package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/graph"
	"github.com/lex00/wetwire-site-go/internal/site"
)

// Steps outside CloudFormation shown next to the resources.
var localNodes = []graph.LocalNode{
	{Name: "RandomSuffix", Label: "RandomSuffix\\n[local state]", RequiredBy: []string{site.BucketID}},
	{Name: "WebsiteObjects", Label: "WebsiteObjects\\n[asset upload]", DependsOn: []string{site.BucketID, site.BucketPolicyID}},
}

func newGraphCmd() *cobra.Command {
	var (
		outputFormat      string
		includeParameters bool
		clusterByType     bool
		resourcesOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate a graph of resource dependencies",
		Long: `Generate a DOT or Mermaid graph of the stack's dependencies.

Blue edges are attribute references, dashed edges are explicit DependsOn
ordering. The bucket suffix and the asset upload appear as dashed local
steps.

The output can be rendered with Graphviz:
    wetwire-site graph | dot -Tpng -o deps.png

Examples:
    wetwire-site graph
    wetwire-site graph -p              # include parameters
    wetwire-site graph -c              # cluster by service
    wetwire-site graph -f mermaid      # mermaid format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			var graphFormat graph.Format
			switch outputFormat {
			case "dot":
				graphFormat = graph.FormatDOT
			case "mermaid":
				graphFormat = graph.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", outputFormat)
			}
			gen := &graph.Generator{
				Format:            graphFormat,
				IncludeParameters: includeParameters,
				ClusterByType:     clusterByType,
			}
			if !resourcesOnly {
				gen.Local = localNodes
			}
			return a.runGraph(gen)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service")
	cmd.Flags().BoolVar(&resourcesOnly, "resources-only", false, "Omit the local suffix and upload steps")

	return cmd
}

func (a *app) runGraph(gen *graph.Generator) error {
	_, b, _, err := a.render(false)
	if err != nil {
		return err
	}
	return gen.Generate(b, a.out)
}
