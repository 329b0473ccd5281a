package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHeaderTooLong means no line terminator was found within
	// MaxHeaderLength bytes. The stream cannot be resynchronized.
	ErrHeaderTooLong = errors.New("header line too long")

	// ErrBadDataChunk means a data block did not end with CRLF
	ErrBadDataChunk = &ProtocolError{Message: "bad data chunk"}
)

// ProtocolError represents a malformed request. The connection stays
// usable: the offending header has already been consumed.
type ProtocolError struct {
	Message string
	Line    []byte
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return e.Message
}

func newProtocolError(line []byte, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Message: fmt.Sprintf(format, args...),
		Line:    append([]byte(nil), line...),
	}
}

// ErrorResponse renders err as a single response line: CLIENT_ERROR for
// protocol errors and SERVER_ERROR for everything else. Embedded line
// breaks are replaced so the response stays one line.
func ErrorResponse(err error) string {
	prefix := ServerErrorPrefix
	var perr *ProtocolError
	if errors.As(err, &perr) {
		prefix = ClientErrorPrefix
	}

	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return prefix + msg
}
