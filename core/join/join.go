/*
Package join resolves foreign-key references on a result set in process.

The underlying row REST interface has no server-side join, so handlers fetch a
primary result set, collect the distinct foreign keys and batch-fetch the
referenced rows once. Orphaned references are expected in real data and must
degrade to null fields, never fail the whole operation.
*/
package join

import (
	"context"

	"github.com/flowlabs-tech/labflow/core/dbrest"
)

// BatchFunc fetches the referenced rows for a set of distinct, non-null
// foreign-key values and returns them keyed by that value.
type BatchFunc func(ctx context.Context, ids []string) (map[string]dbrest.Row, error)

// Resolve merges the requested fields of the referenced rows onto each primary
// row, keyed by fkColumn. The batch fetch is invoked at most once, with the
// deduplicated key set; an empty key set issues no fetch at all. A primary row
// whose key is null or whose referenced row is missing gets nil merged fields.
func Resolve(ctx context.Context, primary []dbrest.Row, fkColumn string, fetch BatchFunc, fields []string) ([]dbrest.Row, error) {
	var ids []string
	seen := map[string]bool{}
	for _, row := range primary {
		id := dbrest.ValueString(row[fkColumn])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	referenced := map[string]dbrest.Row{}
	if len(ids) > 0 {
		var err error
		referenced, err = fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	result := make([]dbrest.Row, 0, len(primary))
	for _, row := range primary {
		merged := dbrest.Row{}
		for key, value := range row {
			merged[key] = value
		}
		reference := referenced[dbrest.ValueString(row[fkColumn])]
		for _, field := range fields {
			if reference == nil {
				merged[field] = nil
			} else {
				merged[field] = reference[field]
			}
		}
		result = append(result, merged)
	}
	return result, nil
}
