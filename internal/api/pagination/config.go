package pagination

import (
	"github.com/conduit-lang/apiorm/internal/api/metadata"
)

// Window is the limit and offset applied to one resource
type Window struct {
	Limit  int
	Offset int
}

// Config resolves the pagination window of every resource taking part in a request:
// the requested page for HTTP, the arguments of each nested collection for GraphQL.
// An unservable page leaves the resource on its first page.
type Config struct {
	enabled      bool
	itemsPerPage int
	windows      map[string]Window
	// ParentResource is the resource the operation belongs to
	ParentResource string
}

// NewConfig reads the request state of op
func NewConfig(options Options, op *metadata.Operation, ctx *metadata.Context, parentResource string) *Config {
	options = options.withDefaults()
	c := &Config{
		enabled:        boolOr(op.PaginationEnabled, options.Enabled),
		windows:        make(map[string]Window),
		ParentResource: parentResource,
	}
	if !c.enabled {
		return c
	}

	c.itemsPerPage = options.ItemsPerPage
	if op.PaginationItemsPerPage != nil {
		c.itemsPerPage = *op.PaginationItemsPerPage
	}
	maximum := options.MaximumItemsPerPage
	if op.PaginationMaximumItemsPerPage != nil {
		maximum = op.PaginationMaximumItemsPerPage
	}
	if maximum != nil && *maximum > c.itemsPerPage {
		c.itemsPerPage = *maximum
	}

	if !ctx.IsGraphQL() {
		page := 1
		if v, ok := ctx.Filter(options.PageParameterName); ok {
			page = intValue(v)
		}
		if offset, err := pageOffset(page, c.itemsPerPage); err == nil {
			c.windows[parentResource] = Window{Limit: c.itemsPerPage, Offset: offset}
		}
		return c
	}

	for resource, args := range ctx.GraphQLArgs {
		switch op.PaginationType {
		case metadata.PaginationTypeCursor:
			w := Window{Limit: c.itemsPerPage}
			if first, ok := args[First].(int); ok {
				w.Limit = first
			}
			if offset, ok := args["offset"].(int); ok {
				w.Offset = offset
			}
			c.windows[resource] = w
		case metadata.PaginationTypePage:
			page := 1
			if v, ok := args["page"].(int); ok {
				page = v
			}
			if offset, err := pageOffset(page, c.itemsPerPage); err == nil {
				c.windows[resource] = Window{Limit: c.itemsPerPage, Offset: offset}
			}
		}
	}
	return c
}

// Enabled reports whether the operation is paginated
func (c *Config) Enabled() bool {
	return c.enabled
}

// ItemsPerPage returns the page size
func (c *Config) ItemsPerPage() int {
	return c.itemsPerPage
}

// ByResource returns the window of resource, the first page when the request set none
func (c *Config) ByResource(resource string) Window {
	if w, ok := c.windows[resource]; ok {
		return w
	}
	return Window{Limit: c.itemsPerPage}
}
