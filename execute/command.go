package execute

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/raniellyferreira/lrukv/lua"
	"github.com/raniellyferreira/lrukv/protocol"
	"github.com/raniellyferreira/lrukv/storage"
)

var (
	// ErrTooLarge is returned when a value can never fit in the store
	ErrTooLarge = errors.New("object too large for cache")

	// ErrUnsupported is returned when the store lacks a required capability
	ErrUnsupported = errors.New("operation not supported by storage")

	// ErrScriptingDisabled is returned by script commands when no engine is
	// configured
	ErrScriptingDisabled = errors.New("scripting is disabled")
)

// Command is one executable request
type Command interface {
	// Name returns the protocol command name
	Name() string

	// Execute runs the command. body is the raw request body including its
	// terminator, or nil for commands without one.
	Execute(store storage.Storage, body []byte) (string, error)
}

// StatsFunc supplies extra counters reported by the stats command
type StatsFunc func() map[string]int64

// Builder creates commands from parsed headers
type Builder struct {
	scripts *lua.Engine
	version string
	extra   []StatsFunc
}

// BuilderOption is a function that configures a Builder
type BuilderOption func(*Builder)

// WithScripting enables eval, evalsha and script using engine
func WithScripting(engine *lua.Engine) BuilderOption {
	return func(b *Builder) {
		b.scripts = engine
	}
}

// WithVersion sets the string reported by the version command
func WithVersion(v string) BuilderOption {
	return func(b *Builder) {
		b.version = v
	}
}

// WithExtraStats adds counters to the stats command output
func WithExtraStats(fn StatsFunc) BuilderOption {
	return func(b *Builder) {
		if fn != nil {
			b.extra = append(b.extra, fn)
		}
	}
}

// NewBuilder creates a command builder
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{version: "dev"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the command described by h
func (b *Builder) Build(h *protocol.Header) (Command, error) {
	switch h.Name {
	case "set":
		return &storeCommand{name: h.Name, key: h.Key(), mode: modePut}, nil
	case "add":
		return &storeCommand{name: h.Name, key: h.Key(), mode: modeAdd}, nil
	case "replace":
		return &storeCommand{name: h.Name, key: h.Key(), mode: modeReplace}, nil
	case "append":
		return &concatCommand{name: h.Name, key: h.Key()}, nil
	case "prepend":
		return &concatCommand{name: h.Name, key: h.Key(), prepend: true}, nil
	case "cas":
		return &casCommand{key: h.Key(), unique: h.CasUnique}, nil
	case "get":
		return &getCommand{name: h.Name, keys: h.Keys}, nil
	case "gets":
		return &getCommand{name: h.Name, keys: h.Keys, withDigest: true}, nil
	case "delete":
		return &deleteCommand{key: h.Key()}, nil
	case "stats":
		return &statsCommand{extra: b.extra}, nil
	case "version":
		return &versionCommand{version: b.version}, nil
	case "eval", "evalsha", "script":
		if b.scripts == nil {
			return nil, ErrScriptingDisabled
		}
		return b.buildScript(h)
	default:
		return nil, fmt.Errorf("unknown command '%s'", h.Name)
	}
}

func (b *Builder) buildScript(h *protocol.Header) (Command, error) {
	switch h.Name {
	case "eval":
		return &evalCommand{engine: b.scripts, keys: h.Keys, args: h.Args}, nil
	case "evalsha":
		return &evalCommand{engine: b.scripts, sha: h.Sub, keys: h.Keys, args: h.Args}, nil
	}

	switch h.Sub {
	case "load":
		return &scriptLoadCommand{engine: b.scripts}, nil
	case "exists":
		return &scriptExistsCommand{engine: b.scripts, hashes: h.Args}, nil
	case "flush":
		return &scriptFlushCommand{engine: b.scripts}, nil
	default:
		return nil, fmt.Errorf("unknown script subcommand '%s'", h.Sub)
	}
}

type versionCommand struct {
	version string
}

func (c *versionCommand) Name() string { return "version" }

func (c *versionCommand) Execute(store storage.Storage, body []byte) (string, error) {
	return "VERSION " + c.version, nil
}

type statsCommand struct {
	extra []StatsFunc
}

func (c *statsCommand) Name() string { return "stats" }

func (c *statsCommand) Execute(store storage.Storage, body []byte) (string, error) {
	provider, ok := store.(storage.StatsProvider)
	if !ok {
		return "", ErrUnsupported
	}
	s := provider.Stats()

	var sb strings.Builder
	writeStat := func(name string, value int64) {
		fmt.Fprintf(&sb, "STAT %s %d%s", name, value, protocol.CRLF)
	}

	writeStat("curr_items", s.Items)
	writeStat("bytes", s.Bytes)
	writeStat("limit_maxbytes", s.Capacity)
	writeStat("evictions", s.Evictions)
	writeStat("get_hits", s.Hits)
	writeStat("get_misses", s.Misses)

	for _, fn := range c.extra {
		values := fn()
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			writeStat(name, values[name])
		}
	}

	sb.WriteString(protocol.End)
	return sb.String(), nil
}
