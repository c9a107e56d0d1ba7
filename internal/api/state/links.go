package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

var (
	// ErrMissingURIVariable is returned when a link needs a value the request did not carry
	ErrMissingURIVariable = errors.New("missing uri variable")

	// ErrUnreachableLink is returned when no link leads from the linked class to the resource
	ErrUnreachableLink = errors.New("resource cannot be retrieved from the linked class")
)

// OperationResolver finds the operation of a linked resource
type OperationResolver interface {
	LinkedOperation(resource string, op *metadata.Operation) (*metadata.Operation, error)
}

// LinksHandler turns URI variables and GraphQL link arguments into restrictions of the
// root query: identifier conditions, joins to the linked resource or sub-queries for
// to-many links.
type LinksHandler struct {
	managers   metadata.ClassMetadataProvider
	operations OperationResolver
}

// NewLinksHandler creates a handler. operations may be nil; links to other resources
// are then only found on the operation itself.
func NewLinksHandler(managers metadata.ClassMetadataProvider, operations OperationResolver) *LinksHandler {
	return &LinksHandler{managers: managers, operations: operations}
}

// HandleLinks restricts qb to the records identified by uriVariables. Links are
// walked from the last one, so each restriction hangs off the alias of the previous.
func (h *LinksHandler) HandleLinks(qb *query.SelectBuilder, uriVariables map[string]interface{}, names query.NameGenerator, rc *metadata.Context, resource string, op *metadata.Operation) error {
	if len(uriVariables) == 0 {
		return nil
	}
	cm, ok := h.managers.ClassMetadata(resource)
	if !ok {
		return nil
	}
	alias, err := qb.RootAlias()
	if err != nil {
		return err
	}

	links, err := h.links(resource, op, rc)
	if err != nil {
		return err
	}

	previousAlias := alias
	for i := len(links) - 1; i >= 0; i-- {
		link := links[i]
		if link.ExpandedValue != "" || link.FromClass == "" {
			continue
		}

		from, ok := h.managers.ClassMetadata(link.FromClass)
		if !ok {
			return fmt.Errorf("%w: %s", metadata.ErrResourceClassNotFound, link.FromClass)
		}
		if len(link.Identifiers) == 0 {
			link.Identifiers = from.IdentifierFieldNames()
		}

		composite := len(link.Identifiers) > 1
		restrict := func(target string) ([]string, error) {
			var conds []string
			for _, property := range link.Identifiers {
				value, err := identifierValue(uriVariables, link, property, composite)
				if err != nil {
					return nil, err
				}
				placeholder := names.ParameterName(property)
				qb.BindValue(placeholder, value)
				conds = append(conds, fmt.Sprintf("%s.%s = :%s", target, property, placeholder))
			}
			return conds, nil
		}

		switch {
		case link.FromProperty == "" && link.ToProperty == "":
			currentAlias := alias
			if link.FromClass != resource {
				currentAlias = names.JoinAlias(alias)
			}
			conds, err := restrict(currentAlias)
			if err != nil {
				return err
			}
			for _, c := range conds {
				qb.Where(c)
			}
			previousAlias = currentAlias

		case link.FromProperty != "" && link.ToProperty == "":
			joinAlias := names.JoinAlias("m")
			assoc, err := from.AssociationMapping(link.FromProperty)
			if err != nil {
				return err
			}

			if assoc.Type == mapping.ToMany {
				nextAlias := names.JoinAlias(alias)
				conds, err := restrict(nextAlias)
				if err != nil {
					return err
				}

				property := firstIdentifier(cm)
				if assoc.MappedBy != "" {
					if target, ok := h.managers.ClassMetadata(assoc.TargetEntity); ok {
						property = firstIdentifier(target)
					}
				}

				sub := query.NewSelectBuilder(qb.Resolver()).
					Select(joinAlias+"."+property).
					From(from.Name(), nextAlias).
					InnerJoin(nextAlias+"."+assoc.FieldName, joinAlias).
					Where("(" + strings.Join(conds, " AND ") + ")")
				qb.WhereInSubquery(previousAlias+"."+property, sub)
				previousAlias = nextAlias
				continue
			}

			if assoc.MappedBy != "" {
				qb.InnerJoin(previousAlias+"."+assoc.MappedBy, joinAlias)
			} else {
				qb.JoinWith(query.InnerJoin, from.Name(), joinAlias, query.On, joinCondition(assoc, joinAlias, previousAlias))
			}
			conds, err := restrict(joinAlias)
			if err != nil {
				return err
			}
			for _, c := range conds {
				qb.Where(c)
			}
			previousAlias = joinAlias

		default:
			joinAlias := names.JoinAlias(alias)
			qb.InnerJoin(previousAlias+"."+link.ToProperty, joinAlias)
			conds, err := restrict(joinAlias)
			if err != nil {
				return err
			}
			for _, c := range conds {
				qb.Where(c)
			}
			previousAlias = joinAlias
		}
	}
	return nil
}

// links returns the links to follow. When the request comes through a link from
// another resource (GraphQL nested fields), only that link applies.
func (h *LinksHandler) links(resource string, op *metadata.Operation, rc *metadata.Context) ([]metadata.Link, error) {
	links := op.OperationLinks()
	if rc == nil || rc.LinkClass == "" {
		return links, nil
	}

	for _, link := range links {
		if link.FromClass == rc.LinkClass && link.FromProperty == rc.LinkProperty {
			return []metadata.Link{link}, nil
		}
	}
	if h.operations == nil {
		return nil, nil
	}

	linked, err := h.operations.LinkedOperation(rc.LinkClass, op)
	if err != nil {
		return nil, err
	}
	for _, link := range linked.OperationLinks() {
		if link.ToClass == resource && link.FromProperty == rc.LinkProperty {
			return []metadata.Link{link}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q from %q", ErrUnreachableLink, resource, rc.LinkClass)
}

// identifierValue picks the value of one identifier: by property for composite
// identifiers, by link parameter otherwise, or the only variable there is.
func identifierValue(vars map[string]interface{}, link metadata.Link, property string, composite bool) (interface{}, error) {
	name := link.Parameter
	if composite || name == "" {
		name = property
	}
	if v, ok := vars[name]; ok {
		return v, nil
	}
	if !composite && len(vars) == 1 {
		for _, v := range vars {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingURIVariable, name)
}

// joinCondition relates the owning side of a to-one association to the current alias
func joinCondition(assoc *mapping.Association, ownerAlias, targetAlias string) string {
	parts := make([]string, len(assoc.JoinColumns))
	for i, jc := range assoc.JoinColumns {
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", ownerAlias, jc.Source, targetAlias, jc.Target)
	}
	return strings.Join(parts, " AND ")
}

func firstIdentifier(cm *mapping.ClassMetadata) string {
	ids := cm.IdentifierFieldNames()
	if len(ids) == 0 {
		return "id"
	}
	return ids[0]
}
