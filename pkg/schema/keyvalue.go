package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

func (i *Introspector) inspectKeyValue(ctx context.Context, inst *storage.Instance) (*Schema, error) {
	rdb := query.OpenRedis(inst)
	defer rdb.Close()

	keys, err := rdb.Keys(ctx, "*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	schema := &Schema{DatabaseName: inst.Database}
	for _, group := range GroupKeys(keys) {
		count := group.Count
		schema.Tables = append(schema.Tables, Table{
			Name:     group.Pattern,
			Type:     "KEY PATTERN",
			RowCount: &count,
		})
	}
	return schema, nil
}

// KeyGroup is a set of keys sharing the prefix before their first colon.
type KeyGroup struct {
	Pattern string
	Count   int64
}

// GroupKeys buckets keys by the prefix before the first ":". Keys without
// a colon form their own single-key group. Groups come back sorted by
// pattern.
func GroupKeys(keys []string) []KeyGroup {
	counts := map[string]int64{}
	for _, key := range keys {
		pattern := key
		if idx := strings.Index(key, ":"); idx > 0 {
			pattern = key[:idx] + ":*"
		}
		counts[pattern]++
	}

	patterns := make([]string, 0, len(counts))
	for p := range counts {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	groups := make([]KeyGroup, 0, len(patterns))
	for _, p := range patterns {
		groups = append(groups, KeyGroup{Pattern: p, Count: counts[p]})
	}
	return groups
}
