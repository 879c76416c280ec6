package cache

import (
	"sort"
	"strings"
)

// CountiesKey holds the full counties listing.
const CountiesKey = "all_counties"

// RecordKey is the key of an assembled county record: the raw entity id.
// Callers must validate the id so it cannot collide with the prefixed namespaces.
func RecordKey(entityID string) string {
	return entityID
}

// LabelKey is the key of a resolved entity label.
func LabelKey(entityID string) string {
	return "label_" + entityID
}

// PropertiesKey is the key of a property batch. The property ids are
// deduplicated and sorted so the same set always maps to the same key.
func PropertiesKey(entityID string, propertyIDs []string) string {
	return "props_" + entityID + "_" + strings.Join(NormalizeIDs(propertyIDs), "_")
}

// NormalizeIDs returns a sorted copy of ids with duplicates and empties removed.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
