package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (i *Introspector) inspectDocument(ctx context.Context, inst *storage.Instance) (*Schema, error) {
	client, err := query.OpenMongo(ctx, inst)
	if err != nil {
		return nil, err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(inst.Database)
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)

	schema := &Schema{DatabaseName: inst.Database}
	for _, name := range names {
		coll := db.Collection(name)
		table := Table{Name: name, Type: "COLLECTION"}

		if n, err := coll.CountDocuments(ctx, bson.D{}); err == nil {
			table.RowCount = &n
		} else {
			log.Debug().Err(err).Str("collection", name).Msg("Document count failed")
		}

		// Document stores have no declared schema; approximate one from
		// the first document's fields.
		table.Columns = sampleColumns(ctx, coll)

		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

func sampleColumns(ctx context.Context, coll *mongo.Collection) []Column {
	var doc bson.M
	if err := coll.FindOne(ctx, bson.D{}).Decode(&doc); err != nil {
		return nil
	}

	names := make([]string, 0, len(doc))
	for k := range doc {
		if k != "_id" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if _, ok := doc["_id"]; ok {
		names = append([]string{"_id"}, names...)
	}

	columns := make([]Column, 0, len(names))
	for _, name := range names {
		columns = append(columns, Column{
			Name:       name,
			DataType:   bsonTypeName(doc[name]),
			Nullable:   name != "_id",
			PrimaryKey: name == "_id",
		})
	}
	return columns
}

func bsonTypeName(v interface{}) string {
	switch v.(type) {
	case primitive.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case bool:
		return "bool"
	case primitive.DateTime:
		return "date"
	case bson.M, bson.D, map[string]interface{}:
		return "object"
	case bson.A, []interface{}:
		return "array"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}
