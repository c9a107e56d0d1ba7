package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/pkg/apiorm"
	"github.com/spf13/cobra"
)

// page is the JSON shape of a collection result
type page struct {
	Items        []apiorm.Record `json:"items"`
	CurrentPage  float64         `json:"currentPage"`
	ItemsPerPage float64         `json:"itemsPerPage"`
	TotalItems   *float64        `json:"totalItems,omitempty"`
	LastPage     *float64        `json:"lastPage,omitempty"`
}

// NewQueryCommand creates the query command
func NewQueryCommand(opts *globalOptions) *cobra.Command {
	var (
		vars     map[string]string
		rawQuery string
		data     string
	)

	cmd := &cobra.Command{
		Use:   "query <resource> <operation>",
		Short: "Run an operation against the database and print the result as JSON",
		Long: `Run the provider of an operation and print its result as JSON.
With --data, the processor of the operation runs on the given record instead.`,
		Example: `  apiorm query Book books --query "author.name=Herbert"
  apiorm query Book book --var id=1
  apiorm query Country country_create --data '{"id":"fr","name":"France"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			api, err := apiorm.Open(cmd.Context(), cfg)
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
			rc := apiorm.RequestContext(values)

			var result interface{}
			if data != "" {
				var record apiorm.Record
				if err := json.Unmarshal([]byte(data), &record); err != nil {
					return fmt.Errorf("invalid --data: %w", err)
				}
				result, err = api.Process(cmd.Context(), record, op, uriVariables(vars), rc)
			} else {
				result, err = api.Provide(cmd.Context(), op, uriVariables(vars), rc)
			}
			if err != nil {
				return err
			}

			if p, ok := result.(apiorm.Paginator); ok {
				if result, err = pageOf(cmd.Context(), p); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "URI variable as name=value (repeatable)")
	cmd.Flags().StringVarP(&rawQuery, "query", "q", "", "request query string")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON record to process")
	return cmd
}

func pageOf(ctx context.Context, p apiorm.Paginator) (*page, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := &page{Items: items, CurrentPage: p.CurrentPage(), ItemsPerPage: p.ItemsPerPage()}

	if counted, ok := p.(pagination.Paginator); ok {
		total, err := counted.TotalItems(ctx)
		if err != nil {
			return nil, err
		}
		last, err := counted.LastPage(ctx)
		if err != nil {
			return nil, err
		}
		out.TotalItems, out.LastPage = &total, &last
	}
	return out, nil
}
