package filter

import (
	"strings"

	"github.com/ettle/strcase"
)

// NameConverter maps property names to the names exposed in query parameters
type NameConverter interface {
	Normalize(property string) string
	Denormalize(name string) string
}

// CamelCaseToSnakeCase exposes camelCase properties as snake_case parameters
type CamelCaseToSnakeCase struct{}

func (CamelCaseToSnakeCase) Normalize(property string) string {
	return strcase.ToSnake(property)
}

func (CamelCaseToSnakeCase) Denormalize(name string) string {
	return strcase.ToCamel(name)
}

func convertSegments(property string, c NameConverter, normalize bool) string {
	if c == nil {
		return property
	}
	parts := strings.Split(property, ".")
	for i, p := range parts {
		if normalize {
			parts[i] = c.Normalize(p)
		} else {
			parts[i] = c.Denormalize(p)
		}
	}
	return strings.Join(parts, ".")
}
