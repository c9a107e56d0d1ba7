// Package pagination computes page, offset and limit for collection operations and
// wraps query results into paginators.
package pagination

// Options are the application-wide pagination defaults. Operations override most of them.
type Options struct {
	Enabled             bool
	ClientEnabled       bool
	ClientItemsPerPage  bool
	ItemsPerPage        int
	MaximumItemsPerPage *int

	PageParameterName         string
	EnabledParameterName      string
	ItemsPerPageParameterName string
	PartialParameterName      string

	Partial       bool
	ClientPartial bool

	GraphQLEnabled bool
}

// DefaultOptions returns pagination enabled at 30 items per page
func DefaultOptions() Options {
	return Options{
		Enabled:                   true,
		ItemsPerPage:              30,
		PageParameterName:         "page",
		EnabledParameterName:      "pagination",
		ItemsPerPageParameterName: "itemsPerPage",
		PartialParameterName:      "partial",
		GraphQLEnabled:            true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageParameterName == "" {
		o.PageParameterName = d.PageParameterName
	}
	if o.EnabledParameterName == "" {
		o.EnabledParameterName = d.EnabledParameterName
	}
	if o.ItemsPerPageParameterName == "" {
		o.ItemsPerPageParameterName = d.ItemsPerPageParameterName
	}
	if o.PartialParameterName == "" {
		o.PartialParameterName = d.PartialParameterName
	}
	return o
}
