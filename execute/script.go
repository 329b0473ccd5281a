package execute

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/raniellyferreira/lrukv/lua"
	"github.com/raniellyferreira/lrukv/protocol"
	"github.com/raniellyferreira/lrukv/storage"
)

// evalCommand implements eval (script in the body) and evalsha (script
// looked up by sha)
type evalCommand struct {
	engine *lua.Engine
	sha    string
	keys   []string
	args   []string
}

func (c *evalCommand) Name() string {
	if c.sha != "" {
		return "evalsha"
	}
	return "eval"
}

func (c *evalCommand) Execute(store storage.Storage, body []byte) (string, error) {
	var (
		result interface{}
		err    error
	)

	if c.sha != "" {
		result, err = c.engine.EvalSHA(store, c.sha, c.keys, c.args)
	} else {
		script, derr := protocol.DataBlock(body)
		if derr != nil {
			return "", derr
		}
		result, err = c.engine.Eval(store, string(script), c.keys, c.args)
	}
	if err != nil {
		return "", err
	}

	return formatResult(result), nil
}

type scriptLoadCommand struct {
	engine *lua.Engine
}

func (c *scriptLoadCommand) Name() string { return "script" }

func (c *scriptLoadCommand) Execute(store storage.Storage, body []byte) (string, error) {
	script, err := protocol.DataBlock(body)
	if err != nil {
		return "", err
	}
	return c.engine.LoadScript(string(script))
}

type scriptExistsCommand struct {
	engine *lua.Engine
	hashes []string
}

func (c *scriptExistsCommand) Name() string { return "script" }

func (c *scriptExistsCommand) Execute(store storage.Storage, body []byte) (string, error) {
	results := c.engine.ScriptExists(c.hashes)
	items := make([]interface{}, len(results))
	for i, exists := range results {
		if exists {
			items[i] = int64(1)
		} else {
			items[i] = int64(0)
		}
	}
	return formatResult(items), nil
}

type scriptFlushCommand struct {
	engine *lua.Engine
}

func (c *scriptFlushCommand) Name() string { return "script" }

func (c *scriptFlushCommand) Execute(store storage.Storage, body []byte) (string, error) {
	c.engine.ScriptFlush()
	return "OK", nil
}

// formatResult renders a script result as response text:
//
//	nil, false      NIL
//	true            INTEGER 1
//	int64           INTEGER <n>
//	string, float   VALUE <len> CRLF <data>
//	array           ARRAY <n> CRLF <item> CRLF ...
//
// Maps are rendered as arrays of alternating keys and values sorted by key.
func formatResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return protocol.Nil
	case bool:
		if v {
			return "INTEGER 1"
		}
		return protocol.Nil
	case int64:
		return "INTEGER " + strconv.FormatInt(v, 10)
	case float64:
		return formatValue(strconv.FormatFloat(v, 'g', 17, 64))
	case string:
		return formatValue(v)
	case []interface{}:
		parts := make([]string, 0, len(v)+1)
		parts = append(parts, "ARRAY "+strconv.Itoa(len(v)))
		for _, item := range v {
			parts = append(parts, formatResult(item))
		}
		return strings.Join(parts, protocol.CRLF)
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]interface{}, 0, len(v)*2)
		for _, k := range keys {
			items = append(items, k, v[k])
		}
		return formatResult(items)
	default:
		return formatValue(fmt.Sprintf("%v", v))
	}
}

func formatValue(s string) string {
	return "VALUE " + strconv.Itoa(len(s)) + protocol.CRLF + s
}
