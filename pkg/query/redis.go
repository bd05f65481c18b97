package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// kvExecutor runs commands on key-value instances over go-redis. Multi-line
// bodies are executed as independent commands with an aggregate report.
type kvExecutor struct{}

func (e *kvExecutor) Execute(ctx context.Context, inst *storage.Instance, req *Request) *Result {
	start := time.Now()

	cmds := SplitBatch(req.Query)
	if len(cmds) == 0 {
		return timed(Failure("", "empty command"), start)
	}

	rdb := OpenRedis(inst)
	defer rdb.Close()

	if len(cmds) == 1 {
		result := e.run(ctx, rdb, cmds[0])
		return timed(result, start)
	}

	result := RunBatch(cmds, func(cmd string) *Result {
		return e.run(ctx, rdb, cmd)
	})
	return timed(result, start)
}

// RunBatch executes commands independently and aggregates the outcome: a
// failing command does not abort the rest, and the last error is retained.
func RunBatch(cmds []string, run func(string) *Result) *Result {
	succeeded, failed := 0, 0
	lastErr := ""

	for _, cmd := range cmds {
		res := run(cmd)
		if res.Success {
			succeeded++
		} else {
			failed++
			lastErr = res.Error
		}
	}

	result := &Result{
		Columns:   []string{},
		Rows:      []map[string]interface{}{},
		QueryType: "BATCH",
		Message:   fmt.Sprintf("Executed %d commands: %d succeeded, %d failed", len(cmds), succeeded, failed),
		Success:   failed == 0,
	}
	if failed > 0 {
		result.Error = lastErr
	}
	return result
}

func (e *kvExecutor) run(ctx context.Context, rdb *redis.Client, command string) *Result {
	args := TokenizeCommand(command)
	if len(args) == 0 {
		return Failure("", "empty command")
	}
	name := strings.ToUpper(args[0])
	rest := args[1:]

	result := e.dispatch(ctx, rdb, name, rest)
	result.QueryType = name
	return result
}

func (e *kvExecutor) dispatch(ctx context.Context, rdb *redis.Client, name string, args []string) *Result {
	switch name {
	case "GET":
		if len(args) != 1 {
			return Failure(name, "usage: GET key")
		}
		val, err := rdb.Get(ctx, args[0]).Result()
		if errors.Is(err, redis.Nil) {
			return messageResult("(nil)")
		}
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("value", val)

	case "SET":
		if len(args) != 2 {
			return Failure(name, "usage: SET key value")
		}
		if err := rdb.Set(ctx, args[0], args[1], 0).Err(); err != nil {
			return Failure(name, err.Error())
		}
		return messageResult("OK")

	case "DEL", "DELETE":
		if len(args) < 1 {
			return Failure(name, "usage: DEL key [key ...]")
		}
		n, err := rdb.Del(ctx, args...).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "EXISTS":
		if len(args) < 1 {
			return Failure(name, "usage: EXISTS key")
		}
		n, err := rdb.Exists(ctx, args...).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "KEYS":
		if len(args) != 1 {
			return Failure(name, "usage: KEYS pattern")
		}
		return e.keys(ctx, rdb, args[0])

	case "TYPE":
		if len(args) != 1 {
			return Failure(name, "usage: TYPE key")
		}
		typ, err := rdb.Type(ctx, args[0]).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("type", typ)

	case "TTL":
		if len(args) != 1 {
			return Failure(name, "usage: TTL key")
		}
		ttl, err := rdb.TTL(ctx, args[0]).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("ttl", int64(ttl.Seconds()))

	case "EXPIRE":
		if len(args) != 2 {
			return Failure(name, "usage: EXPIRE key seconds")
		}
		secs, err := strconv.Atoi(args[1])
		if err != nil {
			return Failure(name, "seconds must be an integer")
		}
		ok, err := rdb.Expire(ctx, args[0], time.Duration(secs)*time.Second).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		if ok {
			return countResult(1)
		}
		return countResult(0)

	case "LPUSH", "RPUSH":
		if len(args) < 2 {
			return Failure(name, fmt.Sprintf("usage: %s key value [value ...]", name))
		}
		values := toInterfaces(args[1:])
		var n int64
		var err error
		if name == "LPUSH" {
			n, err = rdb.LPush(ctx, args[0], values...).Result()
		} else {
			n, err = rdb.RPush(ctx, args[0], values...).Result()
		}
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "LPOP", "RPOP":
		if len(args) != 1 {
			return Failure(name, fmt.Sprintf("usage: %s key", name))
		}
		var val string
		var err error
		if name == "LPOP" {
			val, err = rdb.LPop(ctx, args[0]).Result()
		} else {
			val, err = rdb.RPop(ctx, args[0]).Result()
		}
		if errors.Is(err, redis.Nil) {
			return messageResult("(nil)")
		}
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("value", val)

	case "LRANGE":
		if len(args) != 3 {
			return Failure(name, "usage: LRANGE key start stop")
		}
		start, err1 := strconv.ParseInt(args[1], 10, 64)
		stop, err2 := strconv.ParseInt(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return Failure(name, "start and stop must be integers")
		}
		vals, err := rdb.LRange(ctx, args[0], start, stop).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return listResult("value", vals)

	case "SADD":
		if len(args) < 2 {
			return Failure(name, "usage: SADD key member [member ...]")
		}
		n, err := rdb.SAdd(ctx, args[0], toInterfaces(args[1:])...).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "SMEMBERS":
		if len(args) != 1 {
			return Failure(name, "usage: SMEMBERS key")
		}
		members, err := rdb.SMembers(ctx, args[0]).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return listResult("member", members)

	case "HSET":
		if len(args) < 3 || len(args[1:])%2 != 0 {
			return Failure(name, "usage: HSET key field value [field value ...]")
		}
		n, err := rdb.HSet(ctx, args[0], toInterfaces(args[1:])...).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "HGET":
		if len(args) != 2 {
			return Failure(name, "usage: HGET key field")
		}
		val, err := rdb.HGet(ctx, args[0], args[1]).Result()
		if errors.Is(err, redis.Nil) {
			return messageResult("(nil)")
		}
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("value", val)

	case "HGETALL":
		if len(args) != 1 {
			return Failure(name, "usage: HGETALL key")
		}
		fields, err := rdb.HGetAll(ctx, args[0]).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		result := &Result{
			Columns: []string{"field", "value"},
			Rows:    []map[string]interface{}{},
			Success: true,
		}
		for field, value := range fields {
			result.Rows = append(result.Rows, map[string]interface{}{"field": field, "value": value})
		}
		result.RowCount = len(result.Rows)
		return result

	case "INCR", "DECR":
		if len(args) != 1 {
			return Failure(name, fmt.Sprintf("usage: %s key", name))
		}
		var n int64
		var err error
		if name == "INCR" {
			n, err = rdb.Incr(ctx, args[0]).Result()
		} else {
			n, err = rdb.Decr(ctx, args[0]).Result()
		}
		if err != nil {
			return Failure(name, err.Error())
		}
		return valueResult("value", n)

	case "DBSIZE":
		n, err := rdb.DBSize(ctx).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return countResult(n)

	case "FLUSHDB":
		if err := rdb.FlushDB(ctx).Err(); err != nil {
			return Failure(name, err.Error())
		}
		return messageResult("OK")

	case "INFO":
		info, err := rdb.Info(ctx).Result()
		if err != nil {
			return Failure(name, err.Error())
		}
		return messageResult(info)

	default:
		return Failure(name, fmt.Sprintf("unsupported command: %s", name))
	}
}

// keys lists matching keys with their type, a type-appropriate value
// preview and remaining TTL.
func (e *kvExecutor) keys(ctx context.Context, rdb *redis.Client, pattern string) *Result {
	keys, err := rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return Failure("KEYS", err.Error())
	}

	result := &Result{
		Columns: []string{"key", "type", "value", "ttl"},
		Rows:    []map[string]interface{}{},
		Success: true,
	}
	for _, key := range keys {
		typ, err := rdb.Type(ctx, key).Result()
		if err != nil {
			typ = "unknown"
		}
		ttl := int64(-1)
		if d, err := rdb.TTL(ctx, key).Result(); err == nil {
			ttl = int64(d.Seconds())
		}
		result.Rows = append(result.Rows, map[string]interface{}{
			"key":   key,
			"type":  typ,
			"value": typedValue(ctx, rdb, key, typ),
			"ttl":   ttl,
		})
	}
	result.RowCount = len(result.Rows)
	return result
}

// typedValue reads a key with the command matching its type.
func typedValue(ctx context.Context, rdb *redis.Client, key, typ string) string {
	switch typ {
	case "string":
		val, err := rdb.Get(ctx, key).Result()
		if err != nil {
			return ""
		}
		return val
	case "list":
		vals, err := rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return ""
		}
		return strings.Join(vals, ", ")
	case "set":
		members, err := rdb.SMembers(ctx, key).Result()
		if err != nil {
			return ""
		}
		return strings.Join(members, ", ")
	case "hash":
		fields, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return ""
		}
		pairs := make([]string, 0, len(fields))
		for f, v := range fields {
			pairs = append(pairs, f+"="+v)
		}
		return strings.Join(pairs, ", ")
	case "zset":
		members, err := rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return ""
		}
		pairs := make([]string, 0, len(members))
		for _, m := range members {
			pairs = append(pairs, fmt.Sprintf("%v:%g", m.Member, m.Score))
		}
		return strings.Join(pairs, ", ")
	}
	return ""
}

func toInterfaces(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func messageResult(msg string) *Result {
	return &Result{
		Columns: []string{},
		Rows:    []map[string]interface{}{},
		Message: msg,
		Success: true,
	}
}

func valueResult(column string, v interface{}) *Result {
	return &Result{
		Columns:  []string{column},
		Rows:     []map[string]interface{}{{column: v}},
		RowCount: 1,
		Success:  true,
	}
}

func countResult(n int64) *Result {
	return &Result{
		Columns:      []string{"count"},
		Rows:         []map[string]interface{}{{"count": n}},
		RowCount:     1,
		AffectedRows: n,
		Success:      true,
	}
}

func listResult(column string, vals []string) *Result {
	result := &Result{
		Columns: []string{column},
		Rows:    []map[string]interface{}{},
		Success: true,
	}
	for _, v := range vals {
		result.Rows = append(result.Rows, map[string]interface{}{column: v})
	}
	result.RowCount = len(result.Rows)
	return result
}
