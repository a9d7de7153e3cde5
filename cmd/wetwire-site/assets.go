package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-site-go/internal/assets"
)

func newAssetsCmd() *cobra.Command {
	var (
		asJSON  bool
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List the files sync would publish",
		Long: `Assets scans the asset directory and prints each object key with its size
and content type. Files matched by .siteignore or --exclude are left out.

Examples:
    wetwire-site assets
    wetwire-site assets --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			objs, err := a.scan(exclude)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(objs, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			printAssets(a, objs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Extra gitignore-style patterns to skip")

	return cmd
}

func printAssets(a *app, objs []assets.Object) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tCONTENT TYPE")
	for _, obj := range objs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", obj.Key, humanize.Bytes(uint64(obj.Size)), obj.ContentType)
	}
	_ = w.Flush()
	fmt.Fprintf(a.out, "%d files, %s\n", len(objs), humanize.Bytes(uint64(assets.TotalSize(objs))))
}
