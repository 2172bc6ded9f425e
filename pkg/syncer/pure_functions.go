package syncer

import (
	"sort"
	"strings"
)

// NormalizePrefix appends a trailing slash if missing, so "rel" and "rel/"
// address the same prefix and never collide with siblings like "rel2/".
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// StaleKeys computes the remote keys under prefix that are not backed by a
// staged key. Remote keys are compared fully qualified, staged keys are
// prefix-qualified before the comparison. The result is sorted so runs on
// identical inputs delete in the same order.
func StaleKeys(remoteKeys, stagedKeys []string, prefix string) []string {
	staged := make(map[string]struct{}, len(stagedKeys))
	for _, key := range stagedKeys {
		staged[prefix+key] = struct{}{}
	}

	var stale []string
	for _, key := range remoteKeys {
		if _, ok := staged[key]; !ok {
			stale = append(stale, key)
		}
	}

	sort.Strings(stale)
	return stale
}
