package protocol

import "bytes"

// SplitBody splits need bytes of body off the front of available. When
// fewer than need bytes are available it returns ok=false and the input
// untouched. body and rest alias available.
func SplitBody(available []byte, need int) (body, rest []byte, ok bool) {
	if need < 0 || len(available) < need {
		return nil, available, false
	}
	return available[:need:need], available[need:], true
}

// DataBlock strips the CRLF terminator from a request body.
func DataBlock(body []byte) ([]byte, error) {
	if !bytes.HasSuffix(body, []byte(CRLF)) {
		return nil, ErrBadDataChunk
	}
	return body[:len(body)-len(CRLF)], nil
}
