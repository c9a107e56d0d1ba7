package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/cli/ui"
	"github.com/conduit-lang/apiorm/pkg/apiorm"
	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command
func NewDescribeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [resource]",
		Short: "List resources, or the operations and filters of one resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			api, err := apiorm.Load(cfg)
			if err != nil {
				return err
			}
			defer api.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				describeResources(out, api, opts.noColor)
				return nil
			}

			res, ok := api.Resources().Resource(args[0])
			if !ok {
				return ui.NotFound("resource", args[0], api.Resources().Names(),
					[]string{"List resources: apiorm describe"}, opts.noColor)
			}
			return describeResource(cmd, api, res, opts.noColor)
		},
	}
}

func describeResources(out io.Writer, api *apiorm.API, noColor bool) {
	table := ui.NewTable(out, noColor, "RESOURCE", "ENTITY", "TABLE", "OPERATIONS")
	for _, name := range api.Resources().Names() {
		res, _ := api.Resources().Resource(name)
		tableName := "-"
		if meta, ok := api.Entities().Metadata(res.EntityFor()); ok {
			tableName = meta.TableName()
		}
		table.AddRow(name, res.EntityFor(), tableName, fmt.Sprint(len(res.Operations)+len(res.GraphQLOperations)))
	}
	table.Render()
}

func describeResource(cmd *cobra.Command, api *apiorm.API, res *metadata.Resource, noColor bool) error {
	out := cmd.OutOrStdout()

	ui.Title(out, res.Name, noColor)
	ops := ui.NewTable(out, noColor, "OPERATION", "KIND", "PROVIDER", "PROCESSOR", "URI VARIABLES", "FILTERS")
	var filtered []*metadata.Operation
	for _, list := range [][]*metadata.Operation{res.Operations, res.GraphQLOperations} {
		for _, op := range list {
			ops.AddRow(op.Name, op.Kind.String(), orDash(op.Provider), orDash(op.Processor),
				joinOrDash(linkParameters(op.OperationLinks())), joinOrDash(op.Filters))
			if len(op.Filters) > 0 {
				filtered = append(filtered, op)
			}
		}
	}
	ops.Render()

	for _, op := range filtered {
		desc, err := api.FilterDescriptions(cmd.Context(), op)
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		ui.Title(out, fmt.Sprintf("Parameters of %s", op.Name), noColor)
		table := ui.NewTable(out, noColor, "PARAMETER", "PROPERTY", "TYPE", "STRATEGY", "VALUES")
		names := make([]string, 0, len(desc))
		for name := range desc {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d := desc[name]
			values := "-"
			if d.Schema != nil && len(d.Schema.Enum) > 0 {
				values = strings.Join(d.Schema.Enum, "|")
			}
			table.AddRow(name, d.Property, d.Type, orDash(d.Strategy), values)
		}
		table.Render()
	}
	return nil
}

func linkParameters(links []metadata.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Parameter)
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
