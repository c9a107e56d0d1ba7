package commands

import (
	"fmt"
	"net/url"

	"github.com/conduit-lang/apiorm/internal/cli/ui"
	"github.com/conduit-lang/apiorm/pkg/apiorm"
	"github.com/spf13/cobra"
)

// NewSQLCommand creates the sql command
func NewSQLCommand(opts *globalOptions) *cobra.Command {
	var (
		vars     map[string]string
		rawQuery string
	)

	cmd := &cobra.Command{
		Use:   "sql <resource> <operation>",
		Short: "Print the SQL an operation runs",
		Long: `Render the statement and parameters the provider of an operation would run,
without connecting to the database. Request parameters are given as a query string.`,
		Example: `  apiorm sql Book books --query "title=dune&order[id]=desc&page=2"
  apiorm sql Review book_reviews --var bookId=7`,
		Args: cobra.ExactArgs(2),
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

			op, err := findOperation(api, args[0], args[1], opts.noColor)
			if err != nil {
				return err
			}

			values, err := url.ParseQuery(rawQuery)
			if err != nil {
				return fmt.Errorf("invalid --query: %w", err)
			}

			stmt, params, err := api.SQL(cmd.Context(), op, uriVariables(vars), apiorm.RequestContext(values))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stmt)
			if len(params) > 0 {
				fmt.Fprintln(out)
				table := ui.NewTable(out, opts.noColor, "#", "VALUE")
				for i, p := range params {
					table.AddRow(fmt.Sprint(i+1), fmt.Sprintf("%v", p))
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "URI variable as name=value (repeatable)")
	cmd.Flags().StringVarP(&rawQuery, "query", "q", "", "request query string")
	return cmd
}
