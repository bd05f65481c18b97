package query

import (
	"errors"
	"testing"
)

func TestParseMongoCommand(t *testing.T) {
	cmd, err := ParseMongoCommand(`db.users.find()`)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Collection != "users" || cmd.Operation != "find" || cmd.Args != "" {
		t.Errorf("unexpected parse: %+v", cmd)
	}

	cmd, err = ParseMongoCommand(`db.orders.insertOne({"item": "book", "qty": 2})`)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Collection != "orders" || cmd.Operation != "insertOne" {
		t.Errorf("unexpected parse: %+v", cmd)
	}
	if cmd.Args != `{"item": "book", "qty": 2}` {
		t.Errorf("unexpected args: %q", cmd.Args)
	}
}

func TestParseMongoCommandStripsComments(t *testing.T) {
	cmd, err := ParseMongoCommand("// fetch everything\ndb.users.find()")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Collection != "users" || cmd.Operation != "find" {
		t.Errorf("unexpected parse: %+v", cmd)
	}
}

func TestParseMongoCommandErrors(t *testing.T) {
	cases := []string{
		"",
		"users.find()",
		"db.users",
		"db.find()",
		"db.users.find",
	}
	for _, input := range cases {
		_, err := ParseMongoCommand(input)
		if err == nil {
			t.Errorf("expected parse error for %q", input)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("expected *ParseError for %q, got %T", input, err)
		}
	}
}

func TestRewriteObjectIDs(t *testing.T) {
	in := `{"_id": ObjectId("507f1f77bcf86cd799439011")}`
	want := `{"_id": {"$oid":"507f1f77bcf86cd799439011"}}`
	if got := RewriteObjectIDs(in); got != want {
		t.Errorf("RewriteObjectIDs = %q, want %q", got, want)
	}

	// Non-hex and wrong-length ids are left untouched
	in = `ObjectId("nothex")`
	if got := RewriteObjectIDs(in); got != in {
		t.Errorf("expected %q unchanged, got %q", in, got)
	}
}

func TestSplitTopLevel(t *testing.T) {
	parts := SplitTopLevel(`{"name": "x"}, {"$set": {"a": 1, "b": [1,2]}}`)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != `{"name": "x"}` {
		t.Errorf("unexpected filter part: %q", parts[0])
	}
	if parts[1] != `{"$set": {"a": 1, "b": [1,2]}}` {
		t.Errorf("unexpected update part: %q", parts[1])
	}
}

func TestSplitTopLevelQuotedComma(t *testing.T) {
	parts := SplitTopLevel(`{"note": "a, b"}, {"x": 1}`)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %v", len(parts), parts)
	}
}

func TestSplitDocumentArray(t *testing.T) {
	docs, err := SplitDocumentArray(`[{"a": 1}, {"b": {"c": 2}}, {"d": 3}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d: %v", len(docs), docs)
	}

	if _, err := SplitDocumentArray(`{"a": 1}`); err == nil {
		t.Error("expected error for non-array argument")
	}
	if _, err := SplitDocumentArray(`[]`); err == nil {
		t.Error("expected error for empty array")
	}
}

func TestDocumentColumnsOrder(t *testing.T) {
	cols := documentColumns(map[string]interface{}{"name": 1, "_id": 2, "age": 3})
	if len(cols) != 3 || cols[0] != "_id" || cols[1] != "age" || cols[2] != "name" {
		t.Errorf("unexpected column order: %v", cols)
	}
}
