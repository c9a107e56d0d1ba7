package filter

import (
	"net/url"
	"regexp"
	"sort"
)

// keyPattern matches a parameter name followed by bracketed segments: order[title], tags[]
var keyPattern = regexp.MustCompile(`^([^\[\]]+)((?:\[[^\[\]]*\])*)$`)

// segmentPattern extracts the bracketed segments of a parameter name
var segmentPattern = regexp.MustCompile(`\[([^\[\]]*)\]`)

// ParseQuery builds the nested filter map from a query string.
// Example: ?order[title]=desc&tags[]=a&tags[]=b&isbn=1
// Returns: {"order": {"title": "desc"}, "tags": ["a", "b"], "isbn": "1"}
// A repeated plain parameter keeps its last value.
func ParseQuery(values url.Values) map[string]interface{} {
	result := make(map[string]interface{})

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name, path := splitKey(key)
		for _, v := range values[key] {
			assign(result, name, path, v)
		}
	}
	return result
}

func splitKey(key string) (string, []string) {
	matches := keyPattern.FindStringSubmatch(key)
	if len(matches) != 3 {
		return key, nil
	}
	var path []string
	for _, m := range segmentPattern.FindAllStringSubmatch(matches[2], -1) {
		path = append(path, m[1])
	}
	return matches[1], path
}

func assign(container map[string]interface{}, name string, path []string, value string) {
	if len(path) == 0 {
		container[name] = value
		return
	}

	if path[0] == "" {
		list, _ := container[name].([]interface{})
		if len(path) == 1 {
			container[name] = append(list, value)
			return
		}
		child := make(map[string]interface{})
		assign(child, path[1], path[2:], value)
		container[name] = append(list, child)
		return
	}

	child, ok := container[name].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		container[name] = child
	}
	assign(child, path[0], path[1:], value)
}
