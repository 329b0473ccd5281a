package execute

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raniellyferreira/lrukv/protocol"
	"github.com/raniellyferreira/lrukv/storage"
)

// maxSwapAttempts bounds the compare-and-swap retry loop of append/prepend
const maxSwapAttempts = 16

var errContention = errors.New("too much contention on key")

type storeMode int

const (
	modePut storeMode = iota
	modeAdd
	modeReplace
)

// storeCommand implements set, add and replace
type storeCommand struct {
	name string
	key  string
	mode storeMode
}

func (c *storeCommand) Name() string { return c.name }

func (c *storeCommand) Execute(store storage.Storage, body []byte) (string, error) {
	data, err := protocol.DataBlock(body)
	if err != nil {
		return "", err
	}

	switch c.mode {
	case modeAdd:
		if store.PutIfAbsent(c.key, data) {
			return protocol.Stored, nil
		}
		return protocol.NotStored, nil
	case modeReplace:
		if store.Set(c.key, data) {
			return protocol.Stored, nil
		}
		return protocol.NotStored, nil
	default:
		// Put only fails when the entry can never fit.
		if !store.Put(c.key, data) {
			return "", ErrTooLarge
		}
		return protocol.Stored, nil
	}
}

// concatCommand implements append and prepend
type concatCommand struct {
	name    string
	key     string
	prepend bool
}

func (c *concatCommand) Name() string { return c.name }

func (c *concatCommand) Execute(store storage.Storage, body []byte) (string, error) {
	data, err := protocol.DataBlock(body)
	if err != nil {
		return "", err
	}

	ds, ok := store.(storage.DigestStorage)
	if !ok {
		return c.executeUnsafe(store, data)
	}

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		current, digest, found := ds.Peek(c.key)
		if !found {
			return protocol.NotStored, nil
		}

		switch ds.CompareAndSwap(c.key, digest, c.join(current, data)) {
		case storage.SwapStored:
			return protocol.Stored, nil
		case storage.SwapNotFound:
			return protocol.NotStored, nil
		case storage.SwapRejected:
			return "", ErrTooLarge
		}
	}

	return "", fmt.Errorf("%s %s: %w", c.name, c.key, errContention)
}

// executeUnsafe is the fallback for stores without compare-and-swap. A
// concurrent write between Get and Set may be lost.
func (c *concatCommand) executeUnsafe(store storage.Storage, data []byte) (string, error) {
	current, found := store.Get(c.key)
	if !found {
		return protocol.NotStored, nil
	}
	if !store.Set(c.key, c.join(current, data)) {
		return protocol.NotStored, nil
	}
	return protocol.Stored, nil
}

func (c *concatCommand) join(current, data []byte) []byte {
	out := make([]byte, 0, len(current)+len(data))
	if c.prepend {
		return append(append(out, data...), current...)
	}
	return append(append(out, current...), data...)
}

// casCommand replaces a value only if it still has the digest the client
// read with gets
type casCommand struct {
	key    string
	unique uint64
}

func (c *casCommand) Name() string { return "cas" }

func (c *casCommand) Execute(store storage.Storage, body []byte) (string, error) {
	data, err := protocol.DataBlock(body)
	if err != nil {
		return "", err
	}

	ds, ok := store.(storage.DigestStorage)
	if !ok {
		return "", ErrUnsupported
	}

	switch ds.CompareAndSwap(c.key, c.unique, data) {
	case storage.SwapStored:
		return protocol.Stored, nil
	case storage.SwapMismatch:
		return protocol.Exists, nil
	case storage.SwapNotFound:
		return protocol.NotFound, nil
	default:
		return "", ErrTooLarge
	}
}

type deleteCommand struct {
	key string
}

func (c *deleteCommand) Name() string { return "delete" }

func (c *deleteCommand) Execute(store storage.Storage, body []byte) (string, error) {
	if store.Delete(c.key) {
		return protocol.Deleted, nil
	}
	return protocol.NotFound, nil
}

// getCommand implements get and gets
type getCommand struct {
	name       string
	keys       []string
	withDigest bool
}

func (c *getCommand) Name() string { return c.name }

func (c *getCommand) Execute(store storage.Storage, body []byte) (string, error) {
	var ds storage.DigestStorage
	if c.withDigest {
		var ok bool
		if ds, ok = store.(storage.DigestStorage); !ok {
			return "", ErrUnsupported
		}
	}

	var sb strings.Builder
	for _, key := range c.keys {
		var (
			value  []byte
			digest uint64
			found  bool
		)
		if ds != nil {
			value, digest, found = ds.GetWithDigest(key)
		} else {
			value, found = store.Get(key)
		}
		if !found {
			continue
		}

		sb.WriteString("VALUE ")
		sb.WriteString(key)
		sb.WriteString(" 0 ")
		sb.WriteString(strconv.Itoa(len(value)))
		if ds != nil {
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatUint(digest, 10))
		}
		sb.WriteString(protocol.CRLF)
		sb.Write(value)
		sb.WriteString(protocol.CRLF)
	}
	sb.WriteString(protocol.End)
	return sb.String(), nil
}
