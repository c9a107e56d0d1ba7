package metadata

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

var (
	// ErrPropertyNotFound is returned for a property the resource does not declare
	ErrPropertyNotFound = errors.New("property not found")

	// ErrResourceClassNotFound is returned for an unknown resource
	ErrResourceClassNotFound = errors.New("resource class not found")
)

// PropertyMetadata describes how one resource property is exposed.
// Identifier, Writable and FetchEager are tri-state: nil means undecided.
type PropertyMetadata struct {
	Name         string
	Identifier   *bool
	Readable     bool
	Writable     *bool
	ReadableLink bool
	Fetchable    bool
	FetchEager   *bool
	MaxDepth     *int
	Groups       []string
}

// IsIdentifier reports whether the property is known to be an identifier
func (p PropertyMetadata) IsIdentifier() bool {
	return p.Identifier != nil && *p.Identifier
}

// IsWritable reports whether the property is known to be writable
func (p PropertyMetadata) IsWritable() bool {
	return p.Writable != nil && *p.Writable
}

// PropertyOptions narrows property metadata to the serializer groups of a request
type PropertyOptions struct {
	SerializerGroups      []string
	NormalizationGroups   []string
	DenormalizationGroups []string
}

// PropertyNameCollectionFactory lists the properties of a resource
type PropertyNameCollectionFactory interface {
	PropertyNames(resource string) ([]string, error)
}

// PropertyMetadataFactory builds the metadata of one property
type PropertyMetadataFactory interface {
	PropertyMetadata(resource, property string, opts PropertyOptions) (PropertyMetadata, error)
}

// ResourceClassResolver tells resources apart from plain entities
type ResourceClassResolver interface {
	IsResourceClass(name string) bool
}

// ClassMetadataProvider returns the entity metadata behind a resource.
// *repository.Registry implements it.
type ClassMetadataProvider interface {
	ClassMetadata(resource string) (*mapping.ClassMetadata, bool)
}

// MappingPropertyFactory decorates a property factory with what the entity mapping
// knows: identifier fields become identifiers, writable unless auto-incremented.
type MappingPropertyFactory struct {
	managers  ClassMetadataProvider
	decorated PropertyMetadataFactory
}

// NewMappingPropertyFactory decorates inner with entity metadata from managers
func NewMappingPropertyFactory(managers ClassMetadataProvider, inner PropertyMetadataFactory) *MappingPropertyFactory {
	return &MappingPropertyFactory{managers: managers, decorated: inner}
}

// PropertyMetadata implements PropertyMetadataFactory
func (f *MappingPropertyFactory) PropertyMetadata(resource, property string, opts PropertyOptions) (PropertyMetadata, error) {
	pm, err := f.decorated.PropertyMetadata(resource, property, opts)
	if err != nil {
		return pm, err
	}
	if pm.Identifier != nil {
		return pm, nil
	}

	cm, ok := f.managers.ClassMetadata(resource)
	if !ok {
		return pm, nil
	}

	for _, id := range cm.Identifiers() {
		if id.Name != property {
			continue
		}
		pm.Identifier = Bool(true)
		if pm.Writable == nil {
			pm.Writable = Bool(!id.AutoIncrement)
		}
		break
	}
	return pm, nil
}

// filterGroups applies serializer groups: when groups are requested, only properties
// sharing one of them stay readable and writable.
func filterGroups(pm PropertyMetadata, opts PropertyOptions) PropertyMetadata {
	if len(opts.SerializerGroups) > 0 {
		in := intersects(pm.Groups, opts.SerializerGroups)
		pm.Readable = pm.Readable && in
		if !in {
			pm.Writable = Bool(false)
		}
		return pm
	}
	if len(opts.NormalizationGroups) > 0 && !intersects(pm.Groups, opts.NormalizationGroups) {
		pm.Readable = false
	}
	if len(opts.DenormalizationGroups) > 0 && !intersects(pm.Groups, opts.DenormalizationGroups) {
		pm.Writable = Bool(false)
	}
	return pm
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func propertyNotFound(resource, property string) error {
	return fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, resource, property)
}
