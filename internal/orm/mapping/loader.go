package mapping

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileMapping struct {
	Entities []fileEntity `yaml:"entities"`
}

type fileEntity struct {
	Name         string            `yaml:"name"`
	Table        string            `yaml:"table"`
	Fields       []Field           `yaml:"fields"`
	Associations []fileAssociation `yaml:"associations"`
}

type fileAssociation struct {
	Name        string       `yaml:"name"`
	Target      string       `yaml:"target"`
	TargetTable string       `yaml:"target_table"`
	Type        string       `yaml:"type"`
	JoinColumns []JoinColumn `yaml:"join_columns"`
	Nullable    bool         `yaml:"nullable"`
	MappedBy    string       `yaml:"mapped_by"`
	InversedBy  string       `yaml:"inversed_by"`
	Fetch       string       `yaml:"fetch"`
}

// LoadFile reads a YAML mapping file into a new registry
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads YAML mapping documents into a new registry and validates cross references
func Load(r io.Reader) (*Registry, error) {
	var doc fileMapping
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}

	registry := NewRegistry()
	for _, fe := range doc.Entities {
		entity, err := fe.toEntity()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(entity); err != nil {
			return nil, err
		}
	}

	if err := registry.Validate(); err != nil {
		return nil, err
	}

	return registry, nil
}

func (fe fileEntity) toEntity() (*Entity, error) {
	entity := &Entity{
		Name:   fe.Name,
		Table:  fe.Table,
		Fields: fe.Fields,
	}

	for _, fa := range fe.Associations {
		typ, err := parseAssociationType(fa.Type)
		if err != nil {
			return nil, fmt.Errorf("association %s.%s: %w", fe.Name, fa.Name, err)
		}
		fetch, err := parseFetchMode(fa.Fetch)
		if err != nil {
			return nil, fmt.Errorf("association %s.%s: %w", fe.Name, fa.Name, err)
		}
		entity.Associations = append(entity.Associations, &Association{
			FieldName:    fa.Name,
			SourceEntity: fe.Name,
			TargetEntity: fa.Target,
			TargetTable:  fa.TargetTable,
			JoinColumns:  fa.JoinColumns,
			Type:         typ,
			Nullable:     fa.Nullable,
			MappedBy:     fa.MappedBy,
			InversedBy:   fa.InversedBy,
			Fetch:        fetch,
		})
	}

	return entity, nil
}

func parseAssociationType(s string) (AssociationType, error) {
	switch strings.ToLower(s) {
	case "", "to_one", "one":
		return ToOne, nil
	case "to_many", "many":
		return ToMany, nil
	}
	return ToOne, fmt.Errorf("unknown association type %q", s)
}

func parseFetchMode(s string) (FetchMode, error) {
	switch strings.ToLower(s) {
	case "":
		return FetchDefault, nil
	case "lazy":
		return FetchLazy, nil
	case "eager":
		return FetchEager, nil
	case "extra_lazy":
		return FetchExtraLazy, nil
	}
	return FetchDefault, fmt.Errorf("unknown fetch mode %q", s)
}
