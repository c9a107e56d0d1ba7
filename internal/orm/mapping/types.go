// Package mapping describes how entities map onto tables: fields, identifiers and associations.
package mapping

import (
	"errors"
	"fmt"
)

// FieldType is the storage type of a mapped field
type FieldType string

const (
	TypeInt      FieldType = "int"
	TypeDouble   FieldType = "double"
	TypeBool     FieldType = "bool"
	TypeString   FieldType = "string"
	TypeDateTime FieldType = "datetime"
	TypeDate     FieldType = "date"
	TypeTime     FieldType = "time"
	TypeJSON     FieldType = "json"
	TypeUUID     FieldType = "uuid"
)

// IsValid reports whether the field type is one of the known types
func (t FieldType) IsValid() bool {
	switch t {
	case TypeInt, TypeDouble, TypeBool, TypeString, TypeDateTime, TypeDate, TypeTime, TypeJSON, TypeUUID:
		return true
	}
	return false
}

// Field maps an entity property to a column
type Field struct {
	Name          string    `yaml:"name"`
	Column        string    `yaml:"column"`
	Type          FieldType `yaml:"type"`
	Primary       bool      `yaml:"primary"`
	AutoIncrement bool      `yaml:"autoincrement"`
	Nullable      bool      `yaml:"nullable"`
}

// AssociationType is the cardinality of an association seen from its source
type AssociationType int

const (
	ToOne AssociationType = iota
	ToMany
)

// String returns the string representation of the association type
func (t AssociationType) String() string {
	if t == ToMany {
		return "to_many"
	}
	return "to_one"
}

// FetchMode tells eager loading how eagerly an association wants to be fetched
type FetchMode int

const (
	FetchDefault FetchMode = iota
	FetchLazy
	FetchEager
	FetchExtraLazy
)

// JoinColumn pairs a source column with the matching target column
type JoinColumn struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Association describes a relation between two entities
type Association struct {
	FieldName    string
	SourceEntity string
	TargetEntity string
	TargetTable  string
	JoinColumns  []JoinColumn
	Type         AssociationType
	Nullable     bool
	MappedBy     string
	InversedBy   string
	Fetch        FetchMode
}

// ErrNotAnAssociation is returned when a property is looked up as an association but is not one
var ErrNotAnAssociation = errors.New("not an association")

// AssociationSource exposes the associations of one entity
type AssociationSource interface {
	HasAssociation(property string) bool
	Association(property string) (*Association, error)
	Associations() []*Association
}

type noAssociations struct{}

// NoAssociations returns a source for entities that declare no associations
func NoAssociations() AssociationSource {
	return noAssociations{}
}

func (noAssociations) HasAssociation(string) bool { return false }

func (noAssociations) Association(property string) (*Association, error) {
	return nil, fmt.Errorf("%w: Association name expected, '%s' is not an association.", ErrNotAnAssociation, property)
}

func (noAssociations) Associations() []*Association { return nil }

// associationList is the AssociationSource built from an entity definition
type associationList struct {
	byName map[string]*Association
	order  []*Association
}

func newAssociationList(associations []*Association) *associationList {
	l := &associationList{byName: make(map[string]*Association, len(associations))}
	for _, a := range associations {
		l.byName[a.FieldName] = a
		l.order = append(l.order, a)
	}
	return l
}

func (l *associationList) HasAssociation(property string) bool {
	_, ok := l.byName[property]
	return ok
}

func (l *associationList) Association(property string) (*Association, error) {
	a, ok := l.byName[property]
	if !ok {
		return nil, fmt.Errorf("%w: Association name expected, '%s' is not an association.", ErrNotAnAssociation, property)
	}
	return a, nil
}

func (l *associationList) Associations() []*Association {
	out := make([]*Association, len(l.order))
	copy(out, l.order)
	return out
}
