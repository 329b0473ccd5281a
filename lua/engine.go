package lua

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/lrukv/storage"
)

// ErrNoScript is returned by EvalSHA for an unknown digest
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL")

// Engine executes Lua scripts against a storage and caches loaded scripts
// by their SHA1 digest
type Engine struct {
	scripts sync.Map // map[string]string - SHA1 -> script content
	timeout time.Duration
}

// EngineOption is a function that configures an Engine
type EngineOption func(*Engine)

// WithTimeout bounds the run time of a single script. Zero disables the
// limit.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates a new Lua execution engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval executes a Lua script with the given keys and arguments
func (e *Engine) Eval(store storage.Storage, script string, keys []string, args []string) (interface{}, error) {
	L, cancel, err := e.newState(store, keys, args)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer L.Close()

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	return e.convertLuaValue(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(store storage.Storage, sha string, keys []string, args []string) (interface{}, error) {
	script, exists := e.scripts.Load(strings.ToLower(sha))
	if !exists {
		return nil, ErrNoScript
	}

	return e.Eval(store, script.(string), keys, args)
}

// LoadScript compiles a script to validate it, caches it and returns its
// SHA1 hash
func (e *Engine) LoadScript(script string) (string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	if _, err := L.LoadString(script); err != nil {
		return "", fmt.Errorf("script compile error: %w", err)
	}

	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash, nil
}

// ScriptExists checks if scripts with given SHA1 hashes exist
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		_, exists := e.scripts.Load(strings.ToLower(hash))
		results[i] = exists
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, value interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

// newState builds a sandboxed interpreter bound to store
func (e *Engine) newState(store storage.Storage, keys []string, args []string) (*lua.LState, context.CancelFunc, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, nil, fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	L.SetContext(ctx)

	e.setupCacheAPI(L, store, keys, args)
	return L, cancel, nil
}

// setupCacheAPI configures the Lua state with the cache functions
func (e *Engine) setupCacheAPI(L *lua.LState, store storage.Storage, keys []string, args []string) {
	keysTable := L.NewTable()
	for i, key := range keys {
		keysTable.RawSetInt(i+1, lua.LString(key)) // Lua arrays are 1-indexed
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, arg := range args {
		argvTable.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("ARGV", argvTable)

	cacheTable := L.NewTable()
	L.SetFuncs(cacheTable, map[string]lua.LGFunction{
		"call": func(L *lua.LState) int {
			result, err := e.executeCacheCommand(L, store)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(e.convertToLuaValue(L, result))
			return 1
		},
		"pcall": func(L *lua.LState) int {
			result, err := e.executeCacheCommand(L, store)
			if err != nil {
				// Return error as a table with 'err' field
				errTable := L.NewTable()
				errTable.RawSetString("err", lua.LString(err.Error()))
				L.Push(errTable)
				return 1
			}
			L.Push(e.convertToLuaValue(L, result))
			return 1
		},
	})
	L.SetGlobal("cache", cacheTable)
}

// executeCacheCommand runs one storage operation named by the first
// argument on the Lua stack
func (e *Engine) executeCacheCommand(L *lua.LState, store storage.Storage) (interface{}, error) {
	argc := L.GetTop()
	if argc == 0 {
		return nil, fmt.Errorf("wrong number of arguments for cache command")
	}

	cmdName := strings.ToUpper(L.ToString(1))
	if cmdName == "" {
		return nil, fmt.Errorf("command name must be a string")
	}

	args := make([]string, argc-1)
	for i := 2; i <= argc; i++ {
		args[i-2] = L.ToString(i)
	}

	return e.executeCommand(store, cmdName, args)
}

// executeCommand executes a command against the storage
func (e *Engine) executeCommand(store storage.Storage, cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "GET":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'get' command")
		}
		value, exists := store.Get(args[0])
		if !exists {
			return nil, nil
		}
		return string(value), nil

	case "PUT", "ADD", "SET":
		if len(args) != 2 {
			return nil, fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(cmd))
		}
		key, value := args[0], []byte(args[1])
		switch cmd {
		case "PUT":
			return store.Put(key, value), nil
		case "ADD":
			return store.PutIfAbsent(key, value), nil
		default:
			return store.Set(key, value), nil
		}

	case "DELETE":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'delete' command")
		}
		return store.Delete(args[0]), nil

	default:
		return nil, fmt.Errorf("unknown or unsupported command: %s", cmd)
	}
}

// convertToLuaValue converts a Go value to a Lua value
func (e *Engine) convertToLuaValue(L *lua.LState, value interface{}) lua.LValue {
	if value == nil {
		return lua.LFalse // a missing key becomes false in Lua
	}

	switch v := value.(type) {
	case string:
		return lua.LString(v)
	case int64:
		return lua.LNumber(float64(v))
	case int:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case bool:
		return lua.LBool(v)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// convertLuaValue converts a Lua value to a Go value
func (e *Engine) convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if e.isArrayLikeTable(v) {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, e.convertLuaValue(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = e.convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable checks if a Lua table is array-like (consecutive integer keys starting from 1)
func (e *Engine) isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()

	arrayLike := true
	table.ForEach(func(k, v lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			arrayLike = false
		}
	})

	return arrayLike
}
