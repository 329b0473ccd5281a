// Package protocol implements the memcached-style text protocol spoken by
// the cache server.
//
// A request is a header line terminated by CRLF, optionally followed by a
// data block whose length the header declares. The Parser consumes header
// bytes incrementally from a connection buffer and reports how many bytes
// the header used and how many body bytes must follow:
//
//	var p protocol.Parser
//	consumed, complete, err := p.Parse(buf)
//	if complete && err == nil {
//		header := p.Header()
//		need := header.BodySize()
//		// read need more bytes, then build and execute the command
//	}
//	p.Reset()
//
// Supported requests:
//   - set, add, replace, append, prepend <key> <flags> <exptime> <bytes>
//   - cas <key> <flags> <exptime> <bytes> <cas-unique>
//   - get, gets <key> [<key> ...]
//   - delete <key>
//   - eval <bytes> <numkeys> [<key> ...] [<arg> ...]
//   - evalsha <sha1> <numkeys> [<key> ...] [<arg> ...]
//   - script load <bytes> | script exists <sha1> [...] | script flush
//   - stats, version
package protocol
