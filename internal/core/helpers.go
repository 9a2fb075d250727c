package core

import (
	"regexp"
	"sort"
	"strings"
)

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var collectionUnsafe = regexp.MustCompile(`[^a-z0-9_]+`)

// collectionName derives a storage-safe collection name from a template
// name and id: lowercase snake case with the id's first block as suffix so
// two templates with the same name never share records.
func collectionName(templateName, id string) string {
	base := collectionUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(templateName)), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "template"
	}
	if len(base) > 40 {
		base = base[:40]
	}
	suffix := id
	if i := strings.IndexByte(id, '-'); i > 0 {
		suffix = id[:i]
	}
	return "records_" + base + "_" + strings.ToLower(suffix)
}
