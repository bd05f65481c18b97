package query

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports a malformed query; it reaches the caller as a failed
// result payload, never as a transport error.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return e.Msg
}

func parseErrorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// MongoCommand is a parsed shell-style document command:
// db.<collection>.<operation>(<args>).
type MongoCommand struct {
	Collection string
	Operation  string
	Args       string // raw text between the outer parentheses
}

var objectIDLiteral = regexp.MustCompile(`ObjectId\(\s*"([0-9a-fA-F]{24})"\s*\)`)

// ParseMongoCommand parses shell syntax into its collection, operation and
// raw argument text. Lines starting with "//" or "#" are comments.
func ParseMongoCommand(input string) (*MongoCommand, error) {
	var parts []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts = append(parts, trimmed)
	}
	cmd := strings.Join(parts, " ")

	if cmd == "" {
		return nil, parseErrorf("empty command")
	}
	if !strings.HasPrefix(cmd, "db.") {
		return nil, parseErrorf(`command must start with "db."`)
	}

	rest := cmd[len("db."):]
	dot := strings.Index(rest, ".")
	if dot < 1 {
		return nil, parseErrorf("expected db.<collection>.<operation>(...)")
	}
	collection := rest[:dot]
	call := rest[dot+1:]

	open := strings.Index(call, "(")
	closing := strings.LastIndex(call, ")")
	if open < 1 || closing < open {
		return nil, parseErrorf("expected db.%s.<operation>(...)", collection)
	}

	return &MongoCommand{
		Collection: collection,
		Operation:  call[:open],
		Args:       strings.TrimSpace(call[open+1 : closing]),
	}, nil
}

// RewriteObjectIDs converts shell ObjectId("...") literals into extended
// JSON so the argument text becomes parseable as JSON.
func RewriteObjectIDs(s string) string {
	return objectIDLiteral.ReplaceAllString(s, `{"$$oid":"$1"}`)
}

// SplitTopLevel splits argument text on commas at brace depth zero,
// respecting nested objects, arrays and quoted strings. An update call's
// filter and change documents come apart with this.
func SplitTopLevel(args string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	inString := false
	var quote rune
	escaped := false

	for _, r := range args {
		if inString {
			current.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == quote {
				inString = false
			}
			continue
		}
		switch r {
		case '"', '\'':
			inString = true
			quote = r
			current.WriteRune(r)
		case '{', '[':
			depth++
			current.WriteRune(r)
		case '}', ']':
			depth--
			current.WriteRune(r)
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts
}

// SplitDocumentArray breaks an insertMany-style `[{...},{...}]` argument
// into individual document texts.
func SplitDocumentArray(args string) ([]string, error) {
	trimmed := strings.TrimSpace(args)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, parseErrorf("expected an array of documents")
	}
	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if body == "" {
		return nil, parseErrorf("empty document array")
	}
	return SplitTopLevel(body), nil
}
