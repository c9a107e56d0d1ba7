// Package metadata describes API resources: their operations, links between
// resources, per-request context and property metadata. It is the input every
// provider, extension and filter works from.
package metadata

import (
	"fmt"
	"strings"
)

// OperationKind identifies what an operation does
type OperationKind int

const (
	GetCollection OperationKind = iota
	Get
	Post
	Put
	Patch
	Delete
	GraphQLQuery
	GraphQLCollectionQuery
	GraphQLMutation
)

var operationKindNames = map[OperationKind]string{
	GetCollection:          "get_collection",
	Get:                    "get",
	Post:                   "post",
	Put:                    "put",
	Patch:                  "patch",
	Delete:                 "delete",
	GraphQLQuery:           "graphql_query",
	GraphQLCollectionQuery: "graphql_collection_query",
	GraphQLMutation:        "graphql_mutation",
}

func (k OperationKind) String() string {
	if name, ok := operationKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OperationKind(%d)", int(k))
}

// ParseOperationKind converts the name used in resource files into a kind
func ParseOperationKind(s string) (OperationKind, error) {
	for kind, name := range operationKindNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// IsGraphQL reports whether the kind belongs to the GraphQL surface
func (k OperationKind) IsGraphQL() bool {
	return k == GraphQLQuery || k == GraphQLCollectionQuery || k == GraphQLMutation
}

// IsCollection reports whether the kind returns a collection
func (k OperationKind) IsCollection() bool {
	return k == GetCollection || k == GraphQLCollectionQuery
}

// Pagination types of GraphQL operations
const (
	PaginationTypePage   = "page"
	PaginationTypeCursor = "cursor"
)

// Provider and processor names assigned by ResourceRegistry.AddDefaults
const (
	ProviderCollection = "collection"
	ProviderItem       = "item"
	ProcessorPersist   = "persist"
	ProcessorRemove    = "remove"
)

// OrderField is one default sort of a collection operation
type OrderField struct {
	Property  string `yaml:"property"`
	Direction string `yaml:"direction"`
}

// SerializerContext is the (de)normalization context declared on an operation
type SerializerContext struct {
	Groups         []string `yaml:"groups"`
	EnableMaxDepth bool     `yaml:"enable_max_depth"`
}

// Link relates the resource of an operation to another resource through a URI variable
// or a GraphQL argument.
type Link struct {
	Parameter     string   `yaml:"parameter"`
	FromClass     string   `yaml:"from_class"`
	FromProperty  string   `yaml:"from_property"`
	ToClass       string   `yaml:"to_class"`
	ToProperty    string   `yaml:"to_property"`
	Identifiers   []string `yaml:"identifiers"`
	ExpandedValue string   `yaml:"expanded_value"`
}

// Operation is one action exposed on a resource. Pointer fields are unset when nil
// and fall back to the global options of the component reading them.
type Operation struct {
	Name     string
	Kind     OperationKind
	Resource string

	Provider  string
	Processor string

	Filters []string
	Order   []OrderField

	PaginationEnabled             *bool
	PaginationClientEnabled       *bool
	PaginationItemsPerPage        *int
	PaginationMaximumItemsPerPage *int
	PaginationClientItemsPerPage  *bool
	PaginationPartial             *bool
	PaginationClientPartial       *bool
	PaginationType                string

	ForceEager   *bool
	FetchPartial *bool

	NormalizationContext   *SerializerContext
	DenormalizationContext *SerializerContext

	URIVariables []Link
	Links        []Link
}

// IsGraphQL reports whether the operation is a GraphQL one
func (o *Operation) IsGraphQL() bool {
	return o != nil && o.Kind.IsGraphQL()
}

// IsCollection reports whether the operation returns a collection
func (o *Operation) IsCollection() bool {
	return o != nil && o.Kind.IsCollection()
}

// OperationLinks returns the links of a GraphQL operation, or the URI variables of an HTTP one
func (o *Operation) OperationLinks() []Link {
	if o == nil {
		return nil
	}
	if o.IsGraphQL() {
		return o.Links
	}
	return o.URIVariables
}

// NormalizationGroups returns the groups of the normalization context, if any
func (o *Operation) NormalizationGroups() []string {
	if o == nil || o.NormalizationContext == nil {
		return nil
	}
	return o.NormalizationContext.Groups
}

// DenormalizationGroups returns the groups of the denormalization context, if any
func (o *Operation) DenormalizationGroups() []string {
	if o == nil || o.DenormalizationContext == nil {
		return nil
	}
	return o.DenormalizationContext.Groups
}

// Bool returns a pointer to b, for the optional operation settings
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to n, for the optional operation settings
func Int(n int) *int {
	return &n
}
