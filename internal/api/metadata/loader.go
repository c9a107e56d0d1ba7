package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FilterDefinition declares one filter service: its id (referenced by operations),
// its type and its per-property configuration.
type FilterDefinition struct {
	ID         string                 `yaml:"id"`
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties"`
	Options    map[string]string      `yaml:"options"`
}

// Definitions is the content of a resource file
type Definitions struct {
	Resources *ResourceRegistry
	Filters   []FilterDefinition
}

type fileResources struct {
	Filters   []FilterDefinition `yaml:"filters"`
	Resources []fileResource     `yaml:"resources"`
}

type fileResource struct {
	Name              string          `yaml:"name"`
	Entity            string          `yaml:"entity"`
	Properties        []fileProperty  `yaml:"properties"`
	Operations        []fileOperation `yaml:"operations"`
	GraphQLOperations []fileOperation `yaml:"graphql_operations"`
}

type fileProperty struct {
	Name         string   `yaml:"name"`
	Identifier   *bool    `yaml:"identifier"`
	Readable     *bool    `yaml:"readable"`
	Writable     *bool    `yaml:"writable"`
	ReadableLink bool     `yaml:"readable_link"`
	Fetchable    bool     `yaml:"fetchable"`
	FetchEager   *bool    `yaml:"fetch_eager"`
	MaxDepth     *int     `yaml:"max_depth"`
	Groups       []string `yaml:"groups"`
}

type filePagination struct {
	Enabled             *bool  `yaml:"enabled"`
	ClientEnabled       *bool  `yaml:"client_enabled"`
	ItemsPerPage        *int   `yaml:"items_per_page"`
	MaximumItemsPerPage *int   `yaml:"maximum_items_per_page"`
	ClientItemsPerPage  *bool  `yaml:"client_items_per_page"`
	Partial             *bool  `yaml:"partial"`
	ClientPartial       *bool  `yaml:"client_partial"`
	Type                string `yaml:"type"`
}

type fileOperation struct {
	Name                   string             `yaml:"name"`
	Kind                   string             `yaml:"kind"`
	Provider               string             `yaml:"provider"`
	Processor              string             `yaml:"processor"`
	Filters                []string           `yaml:"filters"`
	Order                  []OrderField       `yaml:"order"`
	Pagination             filePagination     `yaml:"pagination"`
	ForceEager             *bool              `yaml:"force_eager"`
	FetchPartial           *bool              `yaml:"fetch_partial"`
	NormalizationContext   *SerializerContext `yaml:"normalization_context"`
	DenormalizationContext *SerializerContext `yaml:"denormalization_context"`
	URIVariables           []Link             `yaml:"uri_variables"`
	Links                  []Link             `yaml:"links"`
}

// LoadFile reads a YAML resource file
func LoadFile(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads YAML resource documents
func Load(r io.Reader) (*Definitions, error) {
	var doc fileResources
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	defs := &Definitions{
		Resources: NewResourceRegistry(),
		Filters:   doc.Filters,
	}

	ids := make(map[string]bool, len(doc.Filters))
	for _, fd := range doc.Filters {
		if fd.ID == "" || fd.Type == "" {
			return nil, errors.New("filter definitions need an id and a type")
		}
		if ids[fd.ID] {
			return nil, fmt.Errorf("duplicate filter %s", fd.ID)
		}
		ids[fd.ID] = true
	}

	for _, fr := range doc.Resources {
		res, err := fr.toResource()
		if err != nil {
			return nil, err
		}
		for _, op := range append(append([]*Operation{}, res.Operations...), res.GraphQLOperations...) {
			for _, id := range op.Filters {
				if !ids[id] {
					return nil, fmt.Errorf("operation %s.%s uses undeclared filter %s", res.Name, op.Name, id)
				}
			}
		}
		if err := defs.Resources.Register(res); err != nil {
			return nil, err
		}
	}

	return defs, nil
}

func (fr fileResource) toResource() (*Resource, error) {
	res := &Resource{Name: fr.Name, Entity: fr.Entity}

	for _, fp := range fr.Properties {
		readable := true
		if fp.Readable != nil {
			readable = *fp.Readable
		}
		res.Properties = append(res.Properties, PropertyMetadata{
			Name:         fp.Name,
			Identifier:   fp.Identifier,
			Readable:     readable,
			Writable:     fp.Writable,
			ReadableLink: fp.ReadableLink,
			Fetchable:    fp.Fetchable,
			FetchEager:   fp.FetchEager,
			MaxDepth:     fp.MaxDepth,
			Groups:       fp.Groups,
		})
	}

	for _, fo := range fr.Operations {
		op, err := fo.toOperation(fr.Name)
		if err != nil {
			return nil, err
		}
		if op.IsGraphQL() {
			return nil, fmt.Errorf("operation %s.%s: GraphQL operations belong under graphql_operations", fr.Name, fo.Name)
		}
		res.Operations = append(res.Operations, op)
	}
	for _, fo := range fr.GraphQLOperations {
		op, err := fo.toOperation(fr.Name)
		if err != nil {
			return nil, err
		}
		if !op.IsGraphQL() {
			return nil, fmt.Errorf("operation %s.%s is not a GraphQL operation", fr.Name, fo.Name)
		}
		res.GraphQLOperations = append(res.GraphQLOperations, op)
	}

	return res, nil
}

func (fo fileOperation) toOperation(resource string) (*Operation, error) {
	kind, err := ParseOperationKind(fo.Kind)
	if err != nil {
		return nil, fmt.Errorf("operation %s.%s: %w", resource, fo.Name, err)
	}

	switch fo.Pagination.Type {
	case "", PaginationTypePage, PaginationTypeCursor:
	default:
		return nil, fmt.Errorf("operation %s.%s: unknown pagination type %q", resource, fo.Name, fo.Pagination.Type)
	}

	return &Operation{
		Name:                          fo.Name,
		Kind:                          kind,
		Resource:                      resource,
		Provider:                      fo.Provider,
		Processor:                     fo.Processor,
		Filters:                       fo.Filters,
		Order:                         fo.Order,
		PaginationEnabled:             fo.Pagination.Enabled,
		PaginationClientEnabled:       fo.Pagination.ClientEnabled,
		PaginationItemsPerPage:        fo.Pagination.ItemsPerPage,
		PaginationMaximumItemsPerPage: fo.Pagination.MaximumItemsPerPage,
		PaginationClientItemsPerPage:  fo.Pagination.ClientItemsPerPage,
		PaginationPartial:             fo.Pagination.Partial,
		PaginationClientPartial:       fo.Pagination.ClientPartial,
		PaginationType:                fo.Pagination.Type,
		ForceEager:                    fo.ForceEager,
		FetchPartial:                  fo.FetchPartial,
		NormalizationContext:          fo.NormalizationContext,
		DenormalizationContext:        fo.DenormalizationContext,
		URIVariables:                  fo.URIVariables,
		Links:                         fo.Links,
	}, nil
}
