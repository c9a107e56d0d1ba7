package mapping

// Entity is the declarative definition of a mapped entity
type Entity struct {
	Name         string
	Table        string
	Fields       []Field
	Associations []*Association
}

// ClassMetadata is the read side of an entity mapping
type ClassMetadata struct {
	name         string
	table        string
	fields       []Field
	byName       map[string]int
	byColumn     map[string]int
	identifiers  []Field
	associations AssociationSource
}

// NewClassMetadata builds metadata for an entity, using source for its associations.
// A nil source means the entity has no associations.
func NewClassMetadata(entity *Entity, source AssociationSource) *ClassMetadata {
	if source == nil {
		source = NoAssociations()
	}

	cm := &ClassMetadata{
		name:         entity.Name,
		table:        entity.Table,
		fields:       make([]Field, 0, len(entity.Fields)),
		byName:       make(map[string]int, len(entity.Fields)),
		byColumn:     make(map[string]int, len(entity.Fields)),
		associations: source,
	}

	for _, f := range entity.Fields {
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		cm.byName[f.Name] = len(cm.fields)
		cm.byColumn[f.Column] = len(cm.fields)
		cm.fields = append(cm.fields, f)
		if f.Primary {
			cm.identifiers = append(cm.identifiers, f)
		}
	}

	return cm
}

// Name returns the entity name
func (cm *ClassMetadata) Name() string {
	return cm.name
}

// TableName returns the table the entity is stored in
func (cm *ClassMetadata) TableName() string {
	return cm.table
}

// Identifiers returns the primary fields in declaration order
func (cm *ClassMetadata) Identifiers() []Field {
	out := make([]Field, len(cm.identifiers))
	copy(out, cm.identifiers)
	return out
}

// IdentifierFieldNames returns the names of the primary fields
func (cm *ClassMetadata) IdentifierFieldNames() []string {
	names := make([]string, len(cm.identifiers))
	for i, f := range cm.identifiers {
		names[i] = f.Name
	}
	return names
}

// IdentifierColumnNames returns the columns of the primary fields
func (cm *ClassMetadata) IdentifierColumnNames() []string {
	columns := make([]string, len(cm.identifiers))
	for i, f := range cm.identifiers {
		columns[i] = f.Column
	}
	return columns
}

// HasField reports whether the entity maps a field with this name
func (cm *ClassMetadata) HasField(name string) bool {
	_, ok := cm.byName[name]
	return ok
}

// Field returns the field with this name
func (cm *ClassMetadata) Field(name string) (Field, bool) {
	i, ok := cm.byName[name]
	if !ok {
		return Field{}, false
	}
	return cm.fields[i], true
}

// FieldForColumn returns the field stored in column
func (cm *ClassMetadata) FieldForColumn(column string) (Field, bool) {
	i, ok := cm.byColumn[column]
	if !ok {
		return Field{}, false
	}
	return cm.fields[i], true
}

// FieldNames returns every field name in declaration order
func (cm *ClassMetadata) FieldNames() []string {
	names := make([]string, len(cm.fields))
	for i, f := range cm.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns every field in declaration order
func (cm *ClassMetadata) Fields() []Field {
	out := make([]Field, len(cm.fields))
	copy(out, cm.fields)
	return out
}

// ColumnName returns the column of a field, or the name itself when it is not a field
func (cm *ClassMetadata) ColumnName(name string) string {
	if f, ok := cm.Field(name); ok {
		return f.Column
	}
	return name
}

// ColumnNames returns every column in declaration order
func (cm *ClassMetadata) ColumnNames() []string {
	columns := make([]string, len(cm.fields))
	for i, f := range cm.fields {
		columns[i] = f.Column
	}
	return columns
}

// TypeOfField returns the storage type of a field, empty when the field is unknown
func (cm *ClassMetadata) TypeOfField(name string) FieldType {
	if f, ok := cm.Field(name); ok {
		return f.Type
	}
	return ""
}

// HasAssociation reports whether property is an association
func (cm *ClassMetadata) HasAssociation(property string) bool {
	return cm.associations.HasAssociation(property)
}

// AssociationMapping returns the association named property
func (cm *ClassMetadata) AssociationMapping(property string) (*Association, error) {
	return cm.associations.Association(property)
}

// AssociationMappings returns every association of the entity
func (cm *ClassMetadata) AssociationMappings() []*Association {
	return cm.associations.Associations()
}
