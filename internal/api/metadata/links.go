package metadata

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

// LinkFactory builds the links of an operation
type LinkFactory interface {
	LinkFromProperty(op *Operation, property string) (Link, error)
	LinksFromIdentifiers(op *Operation) []Link
	LinksFromRelations(op *Operation) ([]Link, error)
	CompleteLink(link Link) Link
}

// IdentifierLinkFactory derives links from entity identifiers and associations
type IdentifierLinkFactory struct {
	managers ClassMetadataProvider
}

// NewIdentifierLinkFactory creates a link factory reading entity metadata from managers
func NewIdentifierLinkFactory(managers ClassMetadataProvider) *IdentifierLinkFactory {
	return &IdentifierLinkFactory{managers: managers}
}

// LinkFromProperty links the operation resource to the target of one of its associations
func (f *IdentifierLinkFactory) LinkFromProperty(op *Operation, property string) (Link, error) {
	cm, ok := f.managers.ClassMetadata(op.Resource)
	if !ok {
		return Link{}, fmt.Errorf("%w: %s", ErrResourceClassNotFound, op.Resource)
	}
	assoc, err := cm.AssociationMapping(property)
	if err != nil {
		return Link{}, err
	}
	return f.CompleteLink(Link{
		Parameter:    property,
		FromClass:    op.Resource,
		FromProperty: property,
		ToClass:      assoc.TargetEntity,
	}), nil
}

// LinksFromIdentifiers returns the single link identifying an item of the operation resource
func (f *IdentifierLinkFactory) LinksFromIdentifiers(op *Operation) []Link {
	cm, ok := f.managers.ClassMetadata(op.Resource)
	if !ok {
		return nil
	}
	ids := cm.IdentifierFieldNames()
	if len(ids) == 0 {
		return nil
	}
	parameter := ids[0]
	if len(ids) > 1 {
		parameter = "id"
	}
	return []Link{{
		Parameter:   parameter,
		FromClass:   op.Resource,
		Identifiers: ids,
	}}
}

// LinksFromRelations has nothing to add without entity knowledge; see RelationLinkFactory
func (f *IdentifierLinkFactory) LinksFromRelations(*Operation) ([]Link, error) {
	return nil, nil
}

// CompleteLink fills in the identifiers of the class the link points from
func (f *IdentifierLinkFactory) CompleteLink(link Link) Link {
	if len(link.Identifiers) > 0 {
		return link
	}
	class := link.FromClass
	if class == "" {
		class = link.ToClass
	}
	if cm, ok := f.managers.ClassMetadata(class); ok {
		link.Identifiers = cm.IdentifierFieldNames()
	}
	return link
}

// RelationLinkFactory decorates a LinkFactory with links for inverse associations:
// every association of the resource mapped by a property of another resource links
// to that resource.
type RelationLinkFactory struct {
	managers  ClassMetadataProvider
	names     PropertyNameCollectionFactory
	resources ResourceClassResolver
	decorated LinkFactory
}

// NewRelationLinkFactory creates the decorator
func NewRelationLinkFactory(managers ClassMetadataProvider, names PropertyNameCollectionFactory, resources ResourceClassResolver, inner LinkFactory) *RelationLinkFactory {
	return &RelationLinkFactory{
		managers:  managers,
		names:     names,
		resources: resources,
		decorated: inner,
	}
}

func (f *RelationLinkFactory) LinkFromProperty(op *Operation, property string) (Link, error) {
	return f.decorated.LinkFromProperty(op, property)
}

func (f *RelationLinkFactory) LinksFromIdentifiers(op *Operation) []Link {
	return f.decorated.LinksFromIdentifiers(op)
}

func (f *RelationLinkFactory) CompleteLink(link Link) Link {
	return f.decorated.CompleteLink(link)
}

// LinksFromRelations appends one link per inverse association of the operation resource
func (f *RelationLinkFactory) LinksFromRelations(op *Operation) ([]Link, error) {
	links, err := f.decorated.LinksFromRelations(op)
	if err != nil {
		return nil, err
	}
	if op == nil || op.Resource == "" {
		return links, nil
	}

	cm, ok := f.managers.ClassMetadata(op.Resource)
	if !ok {
		return links, nil
	}

	properties, err := f.names.PropertyNames(op.Resource)
	if err != nil {
		return nil, err
	}

	for _, property := range properties {
		if !cm.HasAssociation(property) {
			continue
		}
		assoc, err := cm.AssociationMapping(property)
		if err != nil {
			return nil, err
		}
		if !isInverse(assoc) || !f.resources.IsResourceClass(assoc.TargetEntity) {
			continue
		}

		links = append(links, f.CompleteLink(Link{
			FromProperty: property,
			ToProperty:   assoc.MappedBy,
			FromClass:    op.Resource,
			ToClass:      assoc.TargetEntity,
		}))
	}
	return links, nil
}

func isInverse(assoc *mapping.Association) bool {
	return assoc.MappedBy != ""
}
