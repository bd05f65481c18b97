package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func fetchRelational(ctx context.Context, inst *storage.Instance, table string, limit int) (*dataset, error) {
	db, err := query.OpenSQL(inst)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ident := quoteSQLIdent(table, inst.Engine == "postgresql")
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	ds := &dataset{Object: table, Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(columns))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, rows.Err()
}

func fetchDocument(ctx context.Context, inst *storage.Instance, collection string, limit int) (*dataset, error) {
	client, err := query.OpenMongo(ctx, inst)
	if err != nil {
		return nil, err
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(inst.Database).Collection(collection)
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ds := &dataset{Object: collection, Columns: unionFields(docs)}
	for _, doc := range docs {
		row := make([]interface{}, len(ds.Columns))
		for i, col := range ds.Columns {
			row[i] = flattenBSON(doc[col])
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// unionFields collects field names across every sampled document so rows
// with differing shapes still line up, _id first and the rest sorted.
func unionFields(docs []bson.M) []string {
	seen := map[string]bool{}
	var names []string
	for _, doc := range docs {
		for k := range doc {
			if k != "_id" && !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	for _, doc := range docs {
		if _, ok := doc["_id"]; ok {
			return append([]string{"_id"}, names...)
		}
	}
	return names
}

func flattenBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.M, bson.D, bson.A, []interface{}, map[string]interface{}:
		data, err := bson.MarshalExtJSON(bson.M{"v": val}, false, false)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		s := string(data)
		s = strings.TrimPrefix(s, `{"v":`)
		s = strings.TrimSuffix(s, `}`)
		return s
	default:
		return v
	}
}

// fetchKeyValue reads every key matching the object pattern with a
// type-specific read, flattened to one key/type/value row each.
func fetchKeyValue(ctx context.Context, inst *storage.Instance, pattern string, limit int) (*dataset, error) {
	rdb := query.OpenRedis(inst)
	defer rdb.Close()

	keys, err := rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	ds := &dataset{Object: pattern, Columns: []string{"key", "type", "value"}}
	for _, key := range keys {
		keyType, err := rdb.Type(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		value, err := readRedisValue(ctx, rdb, key, keyType)
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, []interface{}{key, keyType, value})
	}
	return ds, nil
}

func readRedisValue(ctx context.Context, rdb *redis.Client, key, keyType string) (string, error) {
	switch keyType {
	case "string":
		return rdb.Get(ctx, key).Result()
	case "list":
		items, err := rdb.LRange(ctx, key, 0, -1).Result()
		return strings.Join(items, ", "), err
	case "set":
		items, err := rdb.SMembers(ctx, key).Result()
		sort.Strings(items)
		return strings.Join(items, ", "), err
	case "hash":
		fields, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		pairs := make([]string, 0, len(names))
		for _, f := range names {
			pairs = append(pairs, fmt.Sprintf("%s=%s", f, fields[f]))
		}
		return strings.Join(pairs, ", "), nil
	case "zset":
		members, err := rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return "", err
		}
		pairs := make([]string, 0, len(members))
		for _, m := range members {
			pairs = append(pairs, fmt.Sprintf("%v=%g", m.Member, m.Score))
		}
		return strings.Join(pairs, ", "), nil
	default:
		return "", fmt.Errorf("unsupported key type: %s", keyType)
	}
}

func quoteSQLIdent(name string, postgres bool) string {
	if postgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
