package query

import (
	"fmt"
	"strings"
)

// NameGenerator produces unique join aliases and parameter names within one query
type NameGenerator interface {
	JoinAlias(association string) string
	ParameterName(name string) string
}

// IncrementedNameGenerator numbers aliases and parameters with independent counters
type IncrementedNameGenerator struct {
	association int
	parameter   int
}

// NewNameGenerator creates a generator starting both counters at 1
func NewNameGenerator() *IncrementedNameGenerator {
	return &IncrementedNameGenerator{association: 1, parameter: 1}
}

// JoinAlias returns "<association>_a<N>"
func (g *IncrementedNameGenerator) JoinAlias(association string) string {
	alias := fmt.Sprintf("%s_a%d", association, g.association)
	g.association++
	return alias
}

// ParameterName returns "<name>_p<N>" with dots replaced by underscores
func (g *IncrementedNameGenerator) ParameterName(name string) string {
	param := fmt.Sprintf("%s_p%d", strings.ReplaceAll(name, ".", "_"), g.parameter)
	g.parameter++
	return param
}
