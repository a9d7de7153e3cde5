package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
)

func newListCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stack resources in dependency order",
		Long: `List shows every declared resource, its CloudFormation type and the
resources it waits for, in the order CloudFormation applies them.

Examples:
    wetwire-site list
    wetwire-site list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.runList(outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func (a *app) runList(format string) error {
	_, b, _, err := a.render(false)
	if err != nil {
		return err
	}
	order, err := b.Order()
	if err != nil {
		return err
	}

	resources := b.Resources()
	result := wetwire.ListResult{Resources: make([]wetwire.ListResource, 0, len(order))}
	for _, name := range order {
		deps, err := b.Dependencies(name)
		if err != nil {
			return err
		}
		result.Resources = append(result.Resources, wetwire.ListResource{
			Name:      name,
			Type:      resources[name].Value.ResourceType(),
			DependsOn: deps,
		})
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	case "text":
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tDEPENDS ON")
		for _, r := range result.Resources {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Type, strings.Join(r.DependsOn, ", "))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
