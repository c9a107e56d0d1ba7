package metadata

// Context carries the per-request state handed to providers, extensions and filters
type Context struct {
	// Filters holds the parsed query string (nested maps for a[b]=c, slices for a[]=x)
	Filters map[string]interface{}

	GraphQLOperationName string
	// GraphQLArgs holds the GraphQL arguments keyed by resource
	GraphQLArgs map[string]map[string]interface{}

	LinkClass    string
	LinkProperty string

	// Attributes restricts serialization to a tree of property names; nil means unrestricted
	Attributes map[string]interface{}
	Groups     []string

	Denormalize    bool
	EnableMaxDepth bool

	// Count is the total item count, set for GraphQL backward cursor pagination
	Count *int
}

// IsGraphQL reports whether the request is a GraphQL operation
func (c *Context) IsGraphQL() bool {
	return c != nil && c.GraphQLOperationName != ""
}

// Filter returns a filter value by name
func (c *Context) Filter(name string) (interface{}, bool) {
	if c == nil || c.Filters == nil {
		return nil, false
	}
	v, ok := c.Filters[name]
	return v, ok
}

// HasFilters reports whether the request carried a filter map at all
func (c *Context) HasFilters() bool {
	return c != nil && c.Filters != nil
}

// Clone returns a shallow copy, safe to extend without touching the caller's context
func (c *Context) Clone() *Context {
	if c == nil {
		return &Context{}
	}
	clone := *c
	return &clone
}
