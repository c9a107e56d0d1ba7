// Package hydrate turns flat joined rows into nested records.
package hydrate

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

// Record is one hydrated entity: field name to value, associations to nested records
type Record = map[string]interface{}

// Relation attaches the records of alias From to the property of the records of alias To
type Relation struct {
	From     string
	To       string
	Property string
	Many     bool
}

// RelationOne returns a to-one relation
func RelationOne(parent, child, property string) Relation {
	return Relation{From: child, To: parent, Property: property}
}

// RelationMany returns a to-many relation
func RelationMany(parent, child, property string) Relation {
	return Relation{From: child, To: parent, Property: property, Many: true}
}

// RelationalHydrator aggregates joined rows into root records with nested relations
type RelationalHydrator struct {
	relations []Relation
}

// NewRelationalHydrator creates a hydrator without relations
func NewRelationalHydrator() *RelationalHydrator {
	return &RelationalHydrator{}
}

// AddRelation registers a relation; a second relation for the same child alias is ignored
func (h *RelationalHydrator) AddRelation(r Relation) {
	for _, existing := range h.relations {
		if existing.From == r.From {
			return
		}
	}
	h.relations = append(h.relations, r)
}

// Relations returns the registered relations
func (h *RelationalHydrator) Relations() []Relation {
	return append([]Relation(nil), h.relations...)
}

// Hydrate groups rows keyed "alias__field" into records of the root alias.
// Root records keep the order in which they first appear.
func (h *RelationalHydrator) Hydrate(root string, rows []map[string]interface{}, aliases map[string]*mapping.ClassMetadata) ([]Record, error) {
	if _, ok := aliases[root]; !ok {
		return nil, fmt.Errorf("root alias %s is not part of the query", root)
	}

	instances := make(map[string]map[string]Record)
	attached := make(map[string]bool)
	var roots []Record

	for _, row := range rows {
		parts := split(row)

		keys := make(map[string]string, len(parts))
		for alias, values := range parts {
			key, ok := identity(values, aliases[alias])
			if !ok {
				continue
			}
			keys[alias] = key

			byKey, ok := instances[alias]
			if !ok {
				byKey = make(map[string]Record)
				instances[alias] = byKey
			}
			if _, seen := byKey[key]; !seen {
				byKey[key] = values
				if alias == root {
					roots = append(roots, values)
				}
			}
		}

		for _, rel := range h.relations {
			parentKey, ok := keys[rel.To]
			if !ok {
				continue
			}
			parent := instances[rel.To][parentKey]

			childKey, hasChild := keys[rel.From]
			if rel.Many {
				list, _ := parent[rel.Property].([]Record)
				if list == nil {
					list = []Record{}
				}
				marker := rel.To + "\x00" + parentKey + "\x00" + rel.Property + "\x00" + childKey
				if hasChild && !attached[marker] {
					attached[marker] = true
					list = append(list, instances[rel.From][childKey])
				}
				parent[rel.Property] = list
				continue
			}

			if hasChild {
				parent[rel.Property] = instances[rel.From][childKey]
			} else if _, set := parent[rel.Property]; !set {
				parent[rel.Property] = nil
			}
		}
	}

	if roots == nil {
		roots = []Record{}
	}
	return roots, nil
}

// split groups the "alias__field" columns of a row per alias
func split(row map[string]interface{}) map[string]Record {
	parts := make(map[string]Record)
	for key, value := range row {
		pos := strings.Index(key, "__")
		if pos <= 0 {
			continue
		}
		alias, field := key[:pos], key[pos+2:]
		part, ok := parts[alias]
		if !ok {
			part = make(Record)
			parts[alias] = part
		}
		part[field] = value
	}
	return parts
}

// identity builds the identity key of a record. A record whose selected
// values are all NULL comes from an unmatched left join and has no identity.
func identity(values Record, cm *mapping.ClassMetadata) (string, bool) {
	var fields []string
	if cm != nil {
		for _, name := range cm.IdentifierFieldNames() {
			if _, ok := values[name]; ok {
				fields = append(fields, name)
			}
		}
	}
	if len(fields) == 0 {
		for name := range values {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}

	var sb strings.Builder
	allNull := true
	for _, name := range fields {
		v := values[name]
		if v != nil {
			allNull = false
		}
		fmt.Fprintf(&sb, "%s=%v;", name, v)
	}
	if allNull {
		return "", false
	}
	return sb.String(), true
}

// ScanRows scans every row into a map keyed by result column name.
// Driver []byte values are converted to strings.
func ScanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
