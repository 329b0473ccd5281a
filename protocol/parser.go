package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

// Parser incrementally parses request headers. It remembers how far it has
// scanned so repeated calls on a growing buffer do not rescan old bytes.
//
// A Parser is owned by a single connection and is not safe for concurrent
// use.
type Parser struct {
	scanned int
	header  *Header
}

// Parse looks for a complete header line at the front of buf.
//
// When no line terminator is present it returns complete=false; the caller
// should read more bytes and call Parse again with the grown buffer. If the
// buffer already exceeds MaxHeaderLength it returns ErrHeaderTooLong.
//
// When a line is present it returns the number of bytes the line occupies
// and complete=true. err is a *ProtocolError if the line is malformed; the
// line still counts as consumed.
func (p *Parser) Parse(buf []byte) (consumed int, complete bool, err error) {
	if p.header != nil {
		return 0, true, nil
	}

	start := p.scanned
	if start > len(buf) {
		start = 0
	}

	idx := bytes.IndexByte(buf[start:], '\n')
	if idx < 0 {
		p.scanned = len(buf)
		if len(buf) >= MaxHeaderLength {
			return 0, false, ErrHeaderTooLong
		}
		return 0, false, nil
	}

	end := start + idx
	consumed = end + 1
	if consumed > MaxHeaderLength {
		return 0, false, ErrHeaderTooLong
	}

	line := buf[:end]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	header, err := parseHeader(line)
	if err != nil {
		p.scanned = 0
		return consumed, true, err
	}

	p.header = header
	return consumed, true, nil
}

// Header returns the last successfully parsed header, or nil
func (p *Parser) Header() *Header {
	return p.header
}

// Reset prepares the parser for the next request
func (p *Parser) Reset() {
	p.scanned = 0
	p.header = nil
}

func parseHeader(line []byte) (*Header, error) {
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return nil, newProtocolError(line, "empty command")
	}

	h := &Header{
		Name:  strings.ToLower(fields[0]),
		Bytes: -1,
	}
	args := fields[1:]

	var err error
	switch h.Name {
	case "set", "add", "replace", "append", "prepend":
		err = parseStorage(h, line, args, 4)
	case "cas":
		err = parseStorage(h, line, args, 5)
	case "get", "gets":
		if len(args) == 0 {
			return nil, newProtocolError(line, "%s requires at least one key", h.Name)
		}
		err = parseKeys(h, line, args)
	case "delete":
		// Trailing "0" is accepted for compatibility with old clients.
		if len(args) != 1 && !(len(args) == 2 && args[1] == "0") {
			return nil, newProtocolError(line, "wrong number of arguments for 'delete' command")
		}
		err = parseKeys(h, line, args[:1])
	case "eval":
		if len(args) < 2 {
			return nil, newProtocolError(line, "wrong number of arguments for 'eval' command")
		}
		if h.Bytes, err = parseLength(line, args[0]); err != nil {
			return nil, err
		}
		err = parseScriptKeys(h, line, args[1:])
	case "evalsha":
		if len(args) < 2 {
			return nil, newProtocolError(line, "wrong number of arguments for 'evalsha' command")
		}
		h.Sub = strings.ToLower(args[0])
		err = parseScriptKeys(h, line, args[1:])
	case "script":
		err = parseScript(h, line, args)
	case "stats", "version":
		if len(args) != 0 {
			return nil, newProtocolError(line, "'%s' takes no arguments", h.Name)
		}
	default:
		return nil, newProtocolError(line, "unknown command '%s'", fields[0])
	}

	if err != nil {
		return nil, err
	}
	return h, nil
}

// parseStorage handles <key> <flags> <exptime> <bytes> [<cas-unique>]
func parseStorage(h *Header, line []byte, args []string, want int) error {
	if len(args) != want {
		return newProtocolError(line, "wrong number of arguments for '%s' command", h.Name)
	}
	if err := parseKeys(h, line, args[:1]); err != nil {
		return err
	}

	flags, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return newProtocolError(line, "bad command line format")
	}
	h.Flags = uint32(flags)

	if h.Exptime, err = strconv.ParseInt(args[2], 10, 64); err != nil {
		return newProtocolError(line, "bad command line format")
	}

	if h.Bytes, err = parseLength(line, args[3]); err != nil {
		return err
	}

	if want == 5 {
		if h.CasUnique, err = strconv.ParseUint(args[4], 10, 64); err != nil {
			return newProtocolError(line, "bad command line format")
		}
	}
	return nil
}

func parseLength(line []byte, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, newProtocolError(line, "bad data chunk length")
	}
	if n > MaxDataLength {
		return 0, newProtocolError(line, "object too large: %d bytes", n)
	}
	return n, nil
}

func parseKeys(h *Header, line []byte, keys []string) error {
	for _, k := range keys {
		if len(k) > MaxKeyLength {
			return newProtocolError(line, "key too long")
		}
		for i := 0; i < len(k); i++ {
			if k[i] < 0x21 || k[i] == 0x7f {
				return newProtocolError(line, "invalid key")
			}
		}
	}
	h.Keys = append(h.Keys, keys...)
	return nil
}

// parseScriptKeys handles <numkeys> [<key> ...] [<arg> ...]
func parseScriptKeys(h *Header, line []byte, args []string) error {
	numKeys, err := strconv.Atoi(args[0])
	if err != nil {
		return newProtocolError(line, "value is not an integer or out of range")
	}
	if numKeys < 0 || numKeys > len(args)-1 {
		return newProtocolError(line, "number of keys can't be negative or greater than args")
	}

	if err := parseKeys(h, line, args[1:1+numKeys]); err != nil {
		return err
	}
	h.Args = append(h.Args, args[1+numKeys:]...)
	return nil
}

func parseScript(h *Header, line []byte, args []string) error {
	if len(args) == 0 {
		return newProtocolError(line, "wrong number of arguments for 'script' command")
	}

	h.Sub = strings.ToLower(args[0])
	switch h.Sub {
	case "load":
		if len(args) != 2 {
			return newProtocolError(line, "wrong number of arguments for 'script load' command")
		}
		n, err := parseLength(line, args[1])
		if err != nil {
			return err
		}
		h.Bytes = n
	case "exists":
		if len(args) < 2 {
			return newProtocolError(line, "wrong number of arguments for 'script exists' command")
		}
		h.Args = append(h.Args, args[1:]...)
	case "flush":
		if len(args) != 1 {
			return newProtocolError(line, "wrong number of arguments for 'script flush' command")
		}
	default:
		return newProtocolError(line, "unknown script subcommand '%s'", args[0])
	}
	return nil
}
