package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirrobot01/dbforge/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// defaultFindLimit bounds find() when the caller gives no limit.
const defaultFindLimit = 100

// mongoExecutor runs shell-style commands on document instances.
type mongoExecutor struct{}

func (e *mongoExecutor) Execute(ctx context.Context, inst *storage.Instance, req *Request) *Result {
	start := time.Now()

	cmd, err := ParseMongoCommand(req.Query)
	if err != nil {
		return timed(Failure("", err.Error()), start)
	}
	queryType := strings.ToUpper(cmd.Operation)

	client, err := OpenMongo(ctx, inst)
	if err != nil {
		return timed(Failure(queryType, err.Error()), start)
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(inst.Database).Collection(cmd.Collection)

	var result *Result
	switch cmd.Operation {
	case "find":
		result = e.find(ctx, coll, req.Limit)
	case "insertOne":
		result = e.insertOne(ctx, coll, cmd.Args)
	case "insertMany":
		result = e.insertMany(ctx, coll, cmd.Args)
	case "updateOne", "updateMany":
		result = e.update(ctx, coll, cmd.Args, cmd.Operation == "updateMany")
	case "deleteOne", "deleteMany":
		result = e.delete(ctx, coll, cmd.Args, cmd.Operation == "deleteMany")
	case "count":
		result = e.count(ctx, coll)
	case "drop":
		result = e.drop(ctx, coll)
	default:
		result = Failure(queryType, fmt.Sprintf("unsupported operation: %s", cmd.Operation))
	}

	result.QueryType = queryType
	return timed(result, start)
}

func (e *mongoExecutor) find(ctx context.Context, coll *mongo.Collection, limit int) *Result {
	if limit <= 0 {
		limit = defaultFindLimit
	}

	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return Failure("FIND", err.Error())
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return Failure("FIND", err.Error())
	}

	result := &Result{
		Columns: []string{},
		Rows:    []map[string]interface{}{},
		Success: true,
	}
	if len(docs) == 0 {
		return result
	}

	result.Columns = documentColumns(docs[0])
	for _, doc := range docs {
		row := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			row[k] = renderBSONValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
	return result
}

func (e *mongoExecutor) insertOne(ctx context.Context, coll *mongo.Collection, args string) *Result {
	doc, err := parseDocument(args)
	if err != nil {
		return Failure("INSERTONE", err.Error())
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return Failure("INSERTONE", err.Error())
	}
	return &Result{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		AffectedRows: 1,
		Message:      "Inserted 1 document",
		Success:      true,
	}
}

func (e *mongoExecutor) insertMany(ctx context.Context, coll *mongo.Collection, args string) *Result {
	texts, err := SplitDocumentArray(args)
	if err != nil {
		return Failure("INSERTMANY", err.Error())
	}

	docs := make([]interface{}, 0, len(texts))
	for _, text := range texts {
		doc, err := parseDocument(text)
		if err != nil {
			return Failure("INSERTMANY", err.Error())
		}
		docs = append(docs, doc)
	}

	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return Failure("INSERTMANY", err.Error())
	}
	inserted := int64(len(res.InsertedIDs))
	return &Result{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		AffectedRows: inserted,
		Message:      fmt.Sprintf("Inserted %d document(s)", inserted),
		Success:      true,
	}
}

func (e *mongoExecutor) update(ctx context.Context, coll *mongo.Collection, args string, many bool) *Result {
	op := "UPDATEONE"
	if many {
		op = "UPDATEMANY"
	}

	parts := SplitTopLevel(args)
	if len(parts) != 2 {
		return Failure(op, "expected a filter document and an update document")
	}
	filter, err := parseDocument(parts[0])
	if err != nil {
		return Failure(op, err.Error())
	}
	change, err := parseDocument(parts[1])
	if err != nil {
		return Failure(op, err.Error())
	}

	// Shell users often pass a plain replacement document.
	if !hasOperatorKey(change) {
		change = bson.M{"$set": change}
	}

	var res *mongo.UpdateResult
	if many {
		res, err = coll.UpdateMany(ctx, filter, change)
	} else {
		res, err = coll.UpdateOne(ctx, filter, change)
	}
	if err != nil {
		return Failure(op, err.Error())
	}

	return &Result{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		AffectedRows: res.ModifiedCount,
		Message:      fmt.Sprintf("Matched %d, modified %d", res.MatchedCount, res.ModifiedCount),
		Success:      true,
	}
}

func (e *mongoExecutor) delete(ctx context.Context, coll *mongo.Collection, args string, many bool) *Result {
	op := "DELETEONE"
	if many {
		op = "DELETEMANY"
	}

	filter := bson.M{}
	if strings.TrimSpace(args) != "" {
		var err error
		filter, err = parseDocument(args)
		if err != nil {
			return Failure(op, err.Error())
		}
	}

	var (
		res *mongo.DeleteResult
		err error
	)
	if many {
		res, err = coll.DeleteMany(ctx, filter)
	} else {
		res, err = coll.DeleteOne(ctx, filter)
	}
	if err != nil {
		return Failure(op, err.Error())
	}

	return &Result{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		AffectedRows: res.DeletedCount,
		Message:      fmt.Sprintf("Deleted %d document(s)", res.DeletedCount),
		Success:      true,
	}
}

func (e *mongoExecutor) count(ctx context.Context, coll *mongo.Collection) *Result {
	n, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return Failure("COUNT", err.Error())
	}
	return &Result{
		Columns:  []string{"count"},
		Rows:     []map[string]interface{}{{"count": n}},
		RowCount: 1,
		Success:  true,
	}
}

func (e *mongoExecutor) drop(ctx context.Context, coll *mongo.Collection) *Result {
	if err := coll.Drop(ctx); err != nil {
		return Failure("DROP", err.Error())
	}
	return &Result{
		Columns: []string{},
		Rows:    []map[string]interface{}{},
		Message: fmt.Sprintf("Collection %s dropped", coll.Name()),
		Success: true,
	}
}

// parseDocument parses one JSON-ish document, rewriting ObjectId literals
// into extended JSON first.
func parseDocument(text string) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(RewriteObjectIDs(text)), false, &doc); err != nil {
		return nil, parseErrorf("invalid document: %v", err)
	}
	return doc, nil
}

func hasOperatorKey(doc bson.M) bool {
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// documentColumns derives the column order from a sample document: _id
// first, remaining fields sorted.
func documentColumns(doc bson.M) []string {
	cols := make([]string, 0, len(doc))
	for k := range doc {
		if k != "_id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	if _, ok := doc["_id"]; ok {
		cols = append([]string{"_id"}, cols...)
	}
	return cols
}

// renderBSONValue flattens driver types into display values.
func renderBSONValue(v interface{}) interface{} {
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
		// Unwrap {"v": ...}
		s = strings.TrimSuffix(strings.TrimPrefix(s, `{"v":`), "}")
		return s
	default:
		return v
	}
}

func timed(r *Result, start time.Time) *Result {
	r.ExecutionTimeMs = time.Since(start).Milliseconds()
	return r
}
