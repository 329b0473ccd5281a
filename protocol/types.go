package protocol

import (
	"fmt"
	"strings"
)

const (
	// CRLF is the protocol line terminator
	CRLF = "\r\n"

	// MaxHeaderLength is the longest header line accepted, terminator included
	MaxHeaderLength = 2048

	// MaxKeyLength is the longest key accepted
	MaxKeyLength = 250

	// MaxDataLength is the largest data block a request may declare (32MB)
	MaxDataLength = 32 * 1024 * 1024
)

// Response lines
const (
	Stored    = "STORED"
	NotStored = "NOT_STORED"
	Exists    = "EXISTS"
	NotFound  = "NOT_FOUND"
	Deleted   = "DELETED"
	End       = "END"
	Nil       = "NIL"

	// ServerErrorPrefix marks a request that failed while executing
	ServerErrorPrefix = "SERVER_ERROR "

	// ClientErrorPrefix marks a request that could not be understood
	ClientErrorPrefix = "CLIENT_ERROR "
)

// Header is a parsed request line
type Header struct {
	// Name is the lower-case command name
	Name string

	// Keys holds every key named by the request
	Keys []string

	// Args holds script arguments (ARGV) or script subcommand operands
	Args []string

	// Sub is the script subcommand or the sha1 of evalsha
	Sub string

	Flags     uint32
	Exptime   int64
	CasUnique uint64

	// Bytes is the declared data length, or -1 when the request has no body
	Bytes int
}

// BodySize returns how many bytes follow the header: the data block plus
// its CRLF terminator, or zero for requests without a body.
func (h *Header) BodySize() int {
	if h.Bytes < 0 {
		return 0
	}
	return h.Bytes + len(CRLF)
}

// Key returns the first key, or the empty string
func (h *Header) Key() string {
	if len(h.Keys) == 0 {
		return ""
	}
	return h.Keys[0]
}

// String returns a compact representation of the header for logging
func (h *Header) String() string {
	parts := []string{h.Name}
	if h.Sub != "" {
		parts = append(parts, h.Sub)
	}
	parts = append(parts, h.Keys...)
	if h.Bytes >= 0 {
		parts = append(parts, fmt.Sprintf("(%d bytes)", h.Bytes))
	}
	return strings.Join(parts, " ")
}
